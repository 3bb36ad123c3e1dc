package fsutil

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrTamperedName means the requested name changed under sanitization,
	// i.e. it carried separators, traversal or other unsafe characters.
	ErrTamperedName = errors.New("invalid filename")
	// ErrPathEscape means the resolved path is not inside the root.
	ErrPathEscape = errors.New("path escapes root")
)

var reIllegalFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename reduces name to a flat ASCII filename: separators become
// underscores, other unsafe characters are dropped, and leading or trailing
// dots and underscores are trimmed. The result may be empty.
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)
	name = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		if r == '/' || r == '\\' {
			return ' '
		}
		return r
	}, name)
	name = strings.Join(strings.Fields(name), "_")
	name = reIllegalFilenameChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// Resolve maps a client supplied filename to an absolute path directly
// under rootAbs. The name must survive SecureFilename unchanged
// (ErrTamperedName) and the joined path must stay inside the root
// (ErrPathEscape).
func Resolve(rootAbs, name string) (string, error) {
	if name == "" || SecureFilename(name) != name {
		return "", ErrTamperedName
	}
	return JoinWithinRoot(rootAbs, name)
}

// JoinWithinRoot returns the absolute path of rel under rootAbs. It rejects
// anything that does not resolve strictly inside the root, including the
// root itself.
func JoinWithinRoot(rootAbs string, rel string) (string, error) {
	if strings.Contains(rel, "\x00") {
		return "", ErrTamperedName
	}
	rootClean, err := filepath.Abs(rootAbs)
	if err != nil {
		return "", err
	}
	absClean, err := filepath.Abs(filepath.Join(rootClean, rel))
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absClean, rootClean+string(filepath.Separator)) {
		return "", ErrPathEscape
	}
	return absClean, nil
}
