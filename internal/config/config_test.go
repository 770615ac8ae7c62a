package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.Remote())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supplyguard.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
endpoint = "ws://localhost:4000/api/v1/chat/ws"
request_timeout = "5s"

[storage]
backend = "bolt"
path = "chat.bolt"

[context]
page_path = "/suppliers"
total_suppliers = 42
recent_activity = ["viewed alerts"]

[server]
port = 8080
cache_ttl = "0s"
`), 0o644))

	t.Setenv("SUPPLYGUARD_PAGE_PATH", "/reports")
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	t.Setenv("SUPPLYGUARD_ALLOWED_ORIGINS", "http://a.example,http://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "ws://localhost:4000/api/v1/chat/ws", cfg.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "bolt", cfg.Storage.Backend)
	assert.Equal(t, "chat.bolt", cfg.Storage.Path)
	assert.Equal(t, "/reports", cfg.Context.PagePath)
	assert.Equal(t, 42, cfg.Context.TotalSuppliers)
	assert.Equal(t, []string{"viewed alerts"}, cfg.Context.RecentActivity)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.Server.APIKey)
	assert.Zero(t, cfg.Server.CacheTTL)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "deepseek-chat", cfg.Server.Model, "unset keys keep their defaults")
}

func TestZeroRequestTimeoutDisablesBound(t *testing.T) {
	assert.Equal(t, 60*time.Second, Default().RequestTimeout)

	t.Setenv("SUPPLYGUARD_REQUEST_TIMEOUT", "0s")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Zero(t, cfg.RequestTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("endpoint = "), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }, "unknown storage backend"},
		{"empty path", func(c *Config) { c.Storage.Path = "" }, "storage path cannot be empty"},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }, "request timeout"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "port must be"},
		{"zero history", func(c *Config) { c.Server.HistoryLimit = 0 }, "history limit"},
		{"key without model", func(c *Config) {
			c.Server.APIKey = "k"
			c.Server.Model = ""
		}, "base url and model"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}

	memory := Default()
	memory.Storage.Backend = "memory"
	memory.Storage.Path = ""
	assert.NoError(t, memory.Validate())
}
