package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWithOptions(Options{Paths: []string{t.TempDir()}})
	require.NoError(t, err)

	assert.Equal(t, ModeLocal, cfg.Backend.Mode)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "schema.json", cfg.Local.Schema)
	assert.Equal(t, "none", cfg.Cache.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "pim:", cfg.Cache.Prefix)
	assert.Equal(t, "localhost:8080", cfg.Server.Address())
	assert.Zero(t, cfg.Server.RateLimit)
	assert.Equal(t, time.Minute, cfg.Server.RateWindow)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
backend:
  mode: remote
  url: https://pim.example.com/api
  token: secret
  timeout: 5s
language: it
cache:
  driver: redis
  ttl: 1m
  redis:
    addr: cache:6379
    db: 2
server:
  port: 9090
  rate_limit: 100
  rate_window: 30s
log:
  level: debug
  development: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pim.yml"), []byte(content), 0o644))

	cfg, err := LoadWithOptions(Options{Paths: []string{dir}})
	require.NoError(t, err)

	assert.Equal(t, ModeRemote, cfg.Backend.Mode)
	assert.Equal(t, "https://pim.example.com/api", cfg.Backend.URL)
	assert.Equal(t, "secret", cfg.Backend.Token)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "it", cfg.Language)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, 2, cfg.Cache.Redis.DB)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Server.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.Server.RateWindow)
	assert.True(t, cfg.Log.Development)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PIM_BACKEND_MODE", "remote")
	t.Setenv("PIM_BACKEND_URL", "http://localhost:8080")
	t.Setenv("PIM_LOG_LEVEL", "warn")

	cfg, err := LoadWithOptions(Options{Paths: []string{t.TempDir()}})
	require.NoError(t, err)
	assert.Equal(t, ModeRemote, cfg.Backend.Mode)
	assert.Equal(t, "http://localhost:8080", cfg.Backend.URL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_ExplicitFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(file, []byte("local:\n  schema: catalog.json\n"), 0o644))

	cfg, err := LoadWithOptions(Options{File: file})
	require.NoError(t, err)
	assert.Equal(t, "catalog.json", cfg.Local.Schema)

	_, err = LoadWithOptions(Options{File: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown mode", "backend:\n  mode: ftp\n", "backend.mode"},
		{"remote without url", "backend:\n  mode: remote\n", "backend.url is required"},
		{"relative url", "backend:\n  mode: remote\n  url: pim/api\n", "absolute URL"},
		{"empty schema", "local:\n  schema: \"\"\n", "local.schema"},
		{"cache driver", "cache:\n  driver: memcached\n", "cache.driver"},
		{"port", "server:\n  port: 70000\n", "server.port"},
		{"negative rate limit", "server:\n  rate_limit: -1\n", "server.rate_limit"},
		{"rate window", "server:\n  rate_limit: 10\n  rate_window: 0s\n", "server.rate_window"},
		{"malformed yaml", "backend: [", "failed to read config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "pim.yaml"), []byte(tt.content), 0o644))

			_, err := LoadWithOptions(Options{Paths: []string{dir}})
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
