package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for mdlh-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, tokens) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// Snowflake connection defaults. Credentials arrive per-session from the
	// connect endpoint; the env-only fields below exist for headless use.
	Snowflake SnowflakeConfig `yaml:"snowflake"`

	// Session lifecycle management
	Session SessionConfig `yaml:"session"`

	// Metadata and query-result cache TTLs
	Cache CacheConfig `yaml:"cache"`

	// Propagation rule configuration
	Propagation PropagationConfig `yaml:"propagation"`

	// Query history persistence
	History HistoryConfig `yaml:"history"`
}

// SnowflakeConfig holds Snowflake connection defaults.
type SnowflakeConfig struct {
	Account   string `yaml:"account" env:"SNOWFLAKE_ACCOUNT" env-default:""`
	User      string `yaml:"user" env:"SNOWFLAKE_USER" env-default:""`
	Password  string `yaml:"-" env:"SNOWFLAKE_PASSWORD"` // Secret - not in YAML
	Token     string `yaml:"-" env:"SNOWFLAKE_TOKEN"`    // Secret - not in YAML
	Warehouse string `yaml:"warehouse" env:"SNOWFLAKE_WAREHOUSE" env-default:"COMPUTE_WH"`
	Database  string `yaml:"database" env:"SNOWFLAKE_DATABASE" env-default:"ATLAN_MDLH"`
	Schema    string `yaml:"schema" env:"SNOWFLAKE_SCHEMA" env-default:"PUBLIC"`
	Role      string `yaml:"role" env:"SNOWFLAKE_ROLE" env-default:""`

	// StatementTimeoutSeconds bounds metadata discovery statements.
	StatementTimeoutSeconds int `yaml:"statement_timeout_seconds" env:"SNOWFLAKE_STATEMENT_TIMEOUT_SECONDS" env-default:"30"`
}

// SessionConfig holds session manager settings.
type SessionConfig struct {
	// IdleTTLMinutes is how long idle sessions are kept before eviction.
	IdleTTLMinutes int `yaml:"idle_ttl_minutes" env:"SESSION_IDLE_TTL_MINUTES" env-default:"30"`
	// SweepIntervalMinutes is how often the janitor scans for expired sessions.
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes" env:"SESSION_SWEEP_INTERVAL_MINUTES" env-default:"5"`
}

// CacheConfig holds TTLs (seconds) for the metadata and query-result caches.
// Defaults mirror Snowflake's own result-cache behavior: short TTLs for
// volatile table listings, longer for stable column definitions.
type CacheConfig struct {
	DatabasesTTLSeconds   int `yaml:"databases_ttl_seconds" env:"CACHE_TTL_DATABASES" env-default:"300"`
	SchemasTTLSeconds     int `yaml:"schemas_ttl_seconds" env:"CACHE_TTL_SCHEMAS" env-default:"300"`
	TablesTTLSeconds      int `yaml:"tables_ttl_seconds" env:"CACHE_TTL_TABLES" env-default:"120"`
	ColumnsTTLSeconds     int `yaml:"columns_ttl_seconds" env:"CACHE_TTL_COLUMNS" env-default:"600"`
	QueryResultTTLSeconds int `yaml:"query_result_ttl_seconds" env:"CACHE_TTL_QUERY_RESULTS" env-default:"300"`
	QueryResultMaxEntries int `yaml:"query_result_max_entries" env:"CACHE_QUERY_RESULT_MAX_ENTRIES" env-default:"1000"`
}

// PropagationConfig holds propagation engine settings.
type PropagationConfig struct {
	// RulesPath points at an optional YAML file of rule definitions merged
	// over the built-in standard set by rule_id. Empty means standard rules only.
	RulesPath string `yaml:"rules_path" env:"PROPAGATION_RULES_PATH" env-default:""`
}

// HistoryConfig holds query history persistence settings.
type HistoryConfig struct {
	// Path is the sqlite database file for query history. ":memory:" for tests.
	Path string `yaml:"path" env:"HISTORY_PATH" env-default:"mdlh_history.db"`
	// RetentionDays is how long query history is kept before pruning.
	RetentionDays int `yaml:"retention_days" env:"HISTORY_RETENTION_DAYS" env-default:"90"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// validate rejects configurations that would fail at first use instead of at startup.
func (c *Config) validate() error {
	if c.Session.IdleTTLMinutes <= 0 {
		return fmt.Errorf("session idle_ttl_minutes must be positive, got %d", c.Session.IdleTTLMinutes)
	}
	if c.Propagation.RulesPath != "" {
		if _, err := os.Stat(c.Propagation.RulesPath); err != nil {
			return fmt.Errorf("propagation rules file does not exist: %w", err)
		}
	}
	return nil
}
