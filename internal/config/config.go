// Package config loads SupplyGuard configuration from defaults, an optional
// TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"SupplyGuard/internal/storage"
)

// DefaultPath is the config file read when no --config flag is given
const DefaultPath = "supplyguard.toml"

// Config holds application configuration
type Config struct {
	Endpoint       string        `toml:"endpoint" env:"SUPPLYGUARD_ENDPOINT"`
	// RequestTimeout bounds each chat endpoint call; 0 waits as long as the endpoint takes.
	RequestTimeout time.Duration `toml:"request_timeout" env:"SUPPLYGUARD_REQUEST_TIMEOUT"`
	RulesPath      string        `toml:"rules_path" env:"SUPPLYGUARD_RULES_PATH"`
	LogDir         string        `toml:"log_dir" env:"SUPPLYGUARD_LOG_DIR"`
	Debug          bool          `toml:"debug" env:"SUPPLYGUARD_DEBUG"`
	Telemetry      bool          `toml:"telemetry" env:"SUPPLYGUARD_TELEMETRY"`

	Storage StorageConfig `toml:"storage"`
	Context ContextConfig `toml:"context"`
	Server  ServerConfig  `toml:"server"`
}

// StorageConfig selects where the conversation is persisted
type StorageConfig struct {
	Backend string `toml:"backend" env:"SUPPLYGUARD_STORAGE"`
	Path    string `toml:"path" env:"SUPPLYGUARD_STORAGE_PATH"`
}

// ContextConfig feeds the Context snapshot sent with each request
type ContextConfig struct {
	PagePath          string   `toml:"page_path" env:"SUPPLYGUARD_PAGE_PATH"`
	UserID            string   `toml:"user_id" env:"SUPPLYGUARD_USER_ID"`
	TotalSuppliers    int      `toml:"total_suppliers" env:"SUPPLYGUARD_TOTAL_SUPPLIERS"`
	CriticalSuppliers int      `toml:"critical_suppliers" env:"SUPPLYGUARD_CRITICAL_SUPPLIERS"`
	ActiveAlerts      int      `toml:"active_alerts" env:"SUPPLYGUARD_ACTIVE_ALERTS"`
	RecentActivity    []string `toml:"recent_activity" env:"SUPPLYGUARD_RECENT_ACTIVITY" envSeparator:","`
}

// ServerConfig configures the chat endpoint served by `supplyguard serve`
type ServerConfig struct {
	Port           int           `toml:"port" env:"PORT"`
	APIKey         string        `toml:"api_key" env:"DEEPSEEK_API_KEY"`
	BaseURL        string        `toml:"base_url" env:"SUPPLYGUARD_LLM_BASE_URL"`
	Model          string        `toml:"model" env:"SUPPLYGUARD_LLM_MODEL"`
	HistoryLimit   int           `toml:"history_limit" env:"SUPPLYGUARD_HISTORY_LIMIT"`
	CacheTTL       time.Duration `toml:"cache_ttl" env:"SUPPLYGUARD_CACHE_TTL"`
	AllowedOrigins []string      `toml:"allowed_origins" env:"SUPPLYGUARD_ALLOWED_ORIGINS" envSeparator:","`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Endpoint:       "http://localhost:3001/api/v1/chat",
		RequestTimeout: 60 * time.Second,
		LogDir:         "logs",
		Storage: StorageConfig{
			Backend: storage.KindSQLite,
			Path:    "supplyguard.db",
		},
		Context: ContextConfig{
			PagePath: "/dashboard",
		},
		Server: ServerConfig{
			Port:           3001,
			BaseURL:        "https://api.deepseek.com",
			Model:          "deepseek-chat",
			HistoryLimit:   10,
			CacheTTL:       5 * time.Minute,
			AllowedOrigins: []string{"*"},
		},
	}
}

// Load builds the configuration: defaults, then the TOML file at path (a
// missing file is fine), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	switch strings.ToLower(c.Storage.Backend) {
	case storage.KindSQLite, storage.KindBolt, storage.KindFile, storage.KindMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Path == "" && !strings.EqualFold(c.Storage.Backend, storage.KindMemory) {
		return fmt.Errorf("storage path cannot be empty")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must be >= 0")
	}
	if c.LogDir == "" {
		return fmt.Errorf("log dir cannot be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.Server.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be > 0")
	}
	if c.Server.CacheTTL < 0 {
		return fmt.Errorf("cache ttl must be >= 0")
	}
	if c.Server.APIKey != "" && (c.Server.BaseURL == "" || c.Server.Model == "") {
		return fmt.Errorf("base url and model are required when an api key is set")
	}
	return nil
}

// Remote reports whether an endpoint is configured; without one every reply
// comes from the local rules.
func (c *Config) Remote() bool {
	return c.Endpoint != ""
}
