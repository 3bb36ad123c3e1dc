package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GALLERY_ADDR", "UPLOAD_FOLDER", "WHITELISTED_IP", "SECRET_KEY", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "0.0.0.0:5000", cfg.Addr)
	assert.Equal(t, "uploads", cfg.Root)
	assert.Equal(t, DefaultSecretKey, cfg.SecretKey)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.WhitelistedIP)
	assert.False(t, cfg.GateEnabled())
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("WHITELISTED_IP", " 10.0.0.5 ")
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("UPLOAD_FOLDER", "/srv/images")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", cfg.WhitelistedIP)
	assert.True(t, cfg.GateEnabled())
	assert.Equal(t, "s3cret", cfg.SecretKey)
	assert.Equal(t, filepath.Clean("/srv/images"), cfg.Root)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "gallery.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"addr":"127.0.0.1:8080","root":"/data/pics","whitelistedIP":"192.168.1.2"}`), 0o644))
	cfg, err := Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr)
	assert.Equal(t, filepath.Clean("/data/pics"), cfg.Root)
	assert.Equal(t, "192.168.1.2", cfg.WhitelistedIP)
	assert.Equal(t, DefaultSecretKey, cfg.SecretKey)

	yamlPath := filepath.Join(dir, "gallery.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("root: /data/yaml\nlogLevel: debug\n"), 0o644))
	t.Setenv("LOG_LEVEL", "warn")
	cfg, err = Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("/data/yaml"), cfg.Root)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "0.0.0.0:5000", cfg.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	_, err := Config{Root: "  "}.Normalize()
	assert.Error(t, err)

	cfg, err := Config{Root: "rel"}.Normalize()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.Root))
}
