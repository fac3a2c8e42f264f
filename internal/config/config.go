// Package config resolves client settings from a YAML file, .env and FEEDWALL_* variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the local development backend.
const DefaultBaseURL = "http://localhost:8081"

// Token storage backends.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config holds every client setting.
type Config struct {
	BaseURL      string        `yaml:"api_base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	PageSize     int           `yaml:"page_size"`
	TokenBackend string        `yaml:"token_backend"`
	TokenPath    string        `yaml:"token_path"`
	KeyPath      string        `yaml:"key_path"`
	DSN          string        `yaml:"dsn"`
	LogLevel     string        `yaml:"log_level"`
	LogFormat    string        `yaml:"log_format"`
	Trace        bool          `yaml:"trace"`
}

// Dir returns the per-user configuration directory.
func Dir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "feedwall")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "feedwall")
}

// Default returns the built-in settings.
func Default() Config {
	dir := Dir()
	return Config{
		BaseURL:      DefaultBaseURL,
		Timeout:      30 * time.Second,
		PageSize:     10,
		TokenBackend: BackendFile,
		TokenPath:    filepath.Join(dir, "token.json"),
		KeyPath:      filepath.Join(dir, "token.key"),
		LogLevel:     "warn",
		LogFormat:    "console",
	}
}

// Load layers, lowest first: defaults, YAML file at path (optional, missing is fine),
// .env in the working directory, FEEDWALL_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(Dir(), "config.yaml")
	}
	if err := cfg.mergeFile(path); err != nil {
		return Config{}, err
	}

	// .env is optional; variables already set in the environment win.
	_ = godotenv.Load()

	if err := cfg.mergeEnv(); err != nil {
		return Config{}, err
	}
	cfg.BaseURL = NormalizeBaseURL(cfg.BaseURL)
	return cfg, cfg.Validate()
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() error {
	if v := os.Getenv("FEEDWALL_API_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("FEEDWALL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FEEDWALL_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("FEEDWALL_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FEEDWALL_PAGE_SIZE: %w", err)
		}
		c.PageSize = n
	}
	if v := os.Getenv("FEEDWALL_TOKEN_BACKEND"); v != "" {
		c.TokenBackend = strings.ToLower(v)
	}
	if v := os.Getenv("FEEDWALL_TOKEN_PATH"); v != "" {
		c.TokenPath = v
	}
	if v := os.Getenv("FEEDWALL_KEY_PATH"); v != "" {
		c.KeyPath = v
	}
	if v := os.Getenv("FEEDWALL_DSN"); v != "" {
		c.DSN = v
	}
	if v := os.Getenv("FEEDWALL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("FEEDWALL_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("FEEDWALL_TRACE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FEEDWALL_TRACE: %w", err)
		}
		c.Trace = b
	}
	return nil
}

// Validate reports settings the client cannot run with.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("config: empty api base url")
	}
	if c.PageSize < 1 || c.PageSize > 50 {
		return fmt.Errorf("config: page size %d out of range [1,50]", c.PageSize)
	}
	switch c.TokenBackend {
	case BackendFile:
		if c.TokenPath == "" || c.KeyPath == "" {
			return errors.New("config: file token backend needs token and key paths")
		}
	case BackendMemory:
	case BackendPostgres:
		if c.DSN == "" || c.KeyPath == "" {
			return errors.New("config: postgres token backend needs a dsn and a key path")
		}
	default:
		return fmt.Errorf("config: unknown token backend %q", c.TokenBackend)
	}
	return nil
}

// NormalizeBaseURL trims whitespace and trailing slashes; empty falls back to DefaultBaseURL.
func NormalizeBaseURL(u string) string {
	u = strings.TrimRight(strings.TrimSpace(u), "/")
	if u == "" {
		return DefaultBaseURL
	}
	return u
}
