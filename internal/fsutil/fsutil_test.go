package fsutil

import (
	"errors"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"abc123.png", "abc123.png"},
		{"My cool movie.mov", "My_cool_movie.mov"},
		{"../../../etc/passwd", "etc_passwd"},
		{`..\..\boot.ini`, "boot.ini"},
		{".hidden", "hidden"},
		{"i contain cool ümläuts.txt", "i_contain_cool_umlauts.txt"},
		{"evil.php.png", "evil.php.png"},
		{"a;b&c.gif", "abc.gif"},
		{"..", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SecureFilename(tt.in), tt.in)
	}
}

func TestResolveAccepts(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"abc123.png", "0f3c9a5e7b2d4c1a8e6f9b0d2c4a6e8f.jpg", "a-b_c.gif"} {
		p, err := Resolve(root, name)
		require.NoError(t, err, name)
		assert.Equal(t, filepath.Join(root, name), p)
	}
}

func TestResolveRejectsTampered(t *testing.T) {
	root := t.TempDir()
	decoded, err := url.PathUnescape("..%2F..%2Fetc%2Fpasswd")
	require.NoError(t, err)

	for _, name := range []string{
		"../../etc/passwd",
		decoded,
		"sub/a.png",
		`sub\a.png`,
		"/etc/passwd",
		"..",
		".",
		"",
		".env",
		"a\x00.png",
	} {
		_, err := Resolve(root, name)
		assert.True(t, errors.Is(err, ErrTamperedName), "%q: %v", name, err)
	}
}

func TestJoinWithinRoot(t *testing.T) {
	root := t.TempDir()

	p, err := JoinWithinRoot(root, "a.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a.png"), p)

	for _, rel := range []string{"../a.png", "x/../../a.png", "", "."} {
		_, err := JoinWithinRoot(root, rel)
		assert.True(t, errors.Is(err, ErrPathEscape), "%q: %v", rel, err)
	}

	// A sibling sharing the root as a string prefix is still outside.
	_, err = JoinWithinRoot(root, "../"+filepath.Base(root)+"-other/a.png")
	assert.True(t, errors.Is(err, ErrPathEscape))
}
