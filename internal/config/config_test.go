package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"FEEDWALL_API_BASE_URL", "FEEDWALL_TIMEOUT", "FEEDWALL_PAGE_SIZE",
		"FEEDWALL_TOKEN_BACKEND", "FEEDWALL_TOKEN_PATH", "FEEDWALL_KEY_PATH",
		"FEEDWALL_DSN", "FEEDWALL_LOG_LEVEL", "FEEDWALL_LOG_FORMAT", "FEEDWALL_TRACE",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DefaultBaseURL, cfg.BaseURL)
	require.Equal(t, 10, cfg.PageSize)
	require.Equal(t, BackendFile, cfg.TokenBackend)
	require.Equal(t, filepath.Join(Dir(), "token.json"), cfg.TokenPath)
	require.False(t, cfg.Trace)
}

func TestLoad_Trace(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trace: true\n"), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Trace)

	t.Setenv("FEEDWALL_TRACE", "0")
	cfg, err = Load(path)
	require.NoError(t, err)
	require.False(t, cfg.Trace)

	t.Setenv("FEEDWALL_TRACE", "sometimes")
	_, err = Load(path)
	require.Error(t, err)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := "api_base_url: https://feed.example.com//\npage_size: 20\ntimeout: 5s\ntoken_backend: memory\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://feed.example.com", cfg.BaseURL)
	require.Equal(t, 20, cfg.PageSize)
	require.Equal(t, 5*time.Second, cfg.Timeout)
	require.Equal(t, BackendMemory, cfg.TokenBackend)

	t.Setenv("FEEDWALL_API_BASE_URL", "http://api.local:9000/")
	t.Setenv("FEEDWALL_PAGE_SIZE", "5")
	cfg, err = Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://api.local:9000", cfg.BaseURL)
	require.Equal(t, 5, cfg.PageSize)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("FEEDWALL_API_BASE_URL")
	require.NoError(t, os.WriteFile(".env", []byte("FEEDWALL_API_BASE_URL=http://from-dotenv:1234\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("FEEDWALL_API_BASE_URL") })

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, "http://from-dotenv:1234", cfg.BaseURL)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	t.Setenv("FEEDWALL_PAGE_SIZE", "many")
	_, err := Load("")
	require.Error(t, err)
	t.Setenv("FEEDWALL_PAGE_SIZE", "")

	t.Setenv("FEEDWALL_TIMEOUT", "soon")
	_, err = Load("")
	require.Error(t, err)
	t.Setenv("FEEDWALL_TIMEOUT", "")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("page_size: [1,2"), 0o600))
	_, err = Load(bad)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())

	c := cfg
	c.PageSize = 0
	require.Error(t, c.Validate())

	c = cfg
	c.TokenBackend = "redis"
	require.Error(t, c.Validate())

	c = cfg
	c.TokenBackend = BackendPostgres
	require.Error(t, c.Validate())
	c.DSN = "postgres://localhost/feedwall"
	require.NoError(t, c.Validate())
	c.KeyPath = ""
	require.Error(t, c.Validate(), "postgres values are sealed with the local key")
}

func TestNormalizeBaseURL(t *testing.T) {
	t.Parallel()
	require.Equal(t, DefaultBaseURL, NormalizeBaseURL("  "))
	require.Equal(t, "http://x", NormalizeBaseURL("http://x///"))
}
