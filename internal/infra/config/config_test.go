package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  address: ":9000"
planner:
  timezone: "UTC"
sessions:
  ttl: 2h
llm:
  fallbacks:
    - name: backup
      model: gpt-4o
`), 0o600))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("HTTP_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("POI_CACHE_TTL", "30m")
	t.Setenv("SESSIONS_VALKEY_ENABLED", "true")
	t.Setenv("SESSIONS_VALKEY_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.HTTP.Address)
	require.Equal(t, "UTC", cfg.Planner.Timezone)
	require.Equal(t, 2*time.Hour, cfg.Sessions.TTL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
	require.Equal(t, 30*time.Minute, cfg.POI.CacheTTL)
	require.True(t, cfg.Sessions.Valkey.Enabled)
	require.Len(t, cfg.LLM.Fallbacks, 1)
	require.Equal(t, 40, cfg.Planner.KeepPOIs)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty address":        func(c *Config) { c.HTTP.Address = "" },
		"bad timezone":         func(c *Config) { c.Planner.Timezone = "Mars/Base" },
		"keep above limit":     func(c *Config) { c.Planner.KeepPOIs = 60 },
		"valkey without addr":  func(c *Config) { c.Sessions.Valkey.Enabled = true },
		"archive without host": func(c *Config) { c.Archive.Enabled = true },
		"empty secret":         func(c *Config) { c.Access.Secret = " " },
		"unnamed fallback":     func(c *Config) { c.LLM.Fallbacks = []LLMBackendConfig{{Model: "x"}} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := defaultConfig()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
	require.NoError(t, defaultConfig().Validate())
}
