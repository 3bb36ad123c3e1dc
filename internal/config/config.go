package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MaxUploadBytes caps the request body of every route.
const MaxUploadBytes = 16 << 20

const DefaultSecretKey = "1337-super-secret-key-lol"

// Config is intentionally small and JSON-friendly.
// It is built once at startup and never mutated afterwards.
type Config struct {
	// Addr is the listen address.
	Addr string `json:"addr" yaml:"addr" env:"GALLERY_ADDR" envDefault:"0.0.0.0:5000"`

	// Root is the directory holding uploaded images. Created on first upload.
	Root string `json:"root" yaml:"root" env:"UPLOAD_FOLDER" envDefault:"uploads"`

	// WhitelistedIP enables the IP gate when set.
	// If empty, the gallery is publicly accessible.
	WhitelistedIP string `json:"whitelistedIP,omitempty" yaml:"whitelistedIP,omitempty" env:"WHITELISTED_IP"`

	// SecretKey signs the flash-message cookie.
	SecretKey string `json:"secretKey,omitempty" yaml:"secretKey,omitempty" env:"SECRET_KEY" envDefault:"1337-super-secret-key-lol"`

	// LogLevel is a zerolog level name ("debug", "info", ...).
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty" env:"LOG_LEVEL" envDefault:"info"`
}

// Load builds a Config from defaults, an optional file, a .env file in the
// working directory and the process environment, in that order of increasing
// precedence.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		// yaml.v3 accepts JSON documents as well.
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}
	var ov overlay
	if err := env.Parse(&ov); err != nil {
		return Config{}, err
	}
	ov.apply(&cfg)
	return cfg.Normalize()
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	var cfg Config
	// An empty environment leaves only the envDefault values.
	_ = env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}})
	return cfg
}

// Normalize trims values and makes Root absolute.
func (c Config) Normalize() (Config, error) {
	c.WhitelistedIP = strings.TrimSpace(c.WhitelistedIP)
	if strings.TrimSpace(c.Root) == "" {
		return Config{}, errors.New("config: root is required")
	}
	abs, err := filepath.Abs(c.Root)
	if err != nil {
		return Config{}, err
	}
	c.Root = abs
	return c, nil
}

// GateEnabled reports whether requests are filtered by client IP.
func (c Config) GateEnabled() bool {
	return c.WhitelistedIP != ""
}

// overlay mirrors Config without defaults so that only variables which are
// actually set replace file values.
type overlay struct {
	Addr          string `env:"GALLERY_ADDR"`
	Root          string `env:"UPLOAD_FOLDER"`
	WhitelistedIP string `env:"WHITELISTED_IP"`
	SecretKey     string `env:"SECRET_KEY"`
	LogLevel      string `env:"LOG_LEVEL"`
}

func (o overlay) apply(c *Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Addr, o.Addr)
	set(&c.Root, o.Root)
	set(&c.WhitelistedIP, o.WhitelistedIP)
	set(&c.SecretKey, o.SecretKey)
	set(&c.LogLevel, o.LogLevel)
}
