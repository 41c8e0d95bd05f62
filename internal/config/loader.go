package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "finch.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "FINCH_PORT")
	setString(&cfg.Server.CORSOrigin, "FINCH_CORS_ORIGIN")

	setString(&cfg.Logging.Level, "FINCH_LOG_LEVEL")
	setString(&cfg.Logging.Service, "FINCH_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "FINCH_LOG_ASYNC")
	setInt(&cfg.Logging.Buffer, "FINCH_LOG_BUFFER")
	setInt(&cfg.Logging.Workers, "FINCH_LOG_WORKERS")

	setString(&cfg.Oracle.URL, "FINCH_ORACLE_URL")
	setString(&cfg.Oracle.APIKey, "FINCH_ORACLE_API_KEY")
	setString(&cfg.Oracle.Model, "FINCH_ORACLE_MODEL")
	setFloat64(&cfg.Oracle.Temperature, "FINCH_ORACLE_TEMPERATURE")
	setInt(&cfg.Oracle.MaxTokens, "FINCH_ORACLE_MAX_TOKENS")
	setInt(&cfg.Oracle.MaxRetries, "FINCH_ORACLE_MAX_RETRIES")
	setDuration(&cfg.Oracle.Timeout, "FINCH_ORACLE_TIMEOUT")

	setInt(&cfg.Agent.MaxIterations, "FINCH_AGENT_MAX_ITERATIONS")
	setDuration(&cfg.Agent.ToolTimeout, "FINCH_AGENT_TOOL_TIMEOUT")
	setInt(&cfg.Agent.MaxRetries, "FINCH_AGENT_MAX_RETRIES")
	setDuration(&cfg.Agent.BackoffBase, "FINCH_AGENT_BACKOFF_BASE")

	setBool(&cfg.Cache.Enabled, "FINCH_CACHE_ENABLED")
	setString(&cfg.Cache.Mode, "FINCH_CACHE_MODE")
	setDuration(&cfg.Cache.QueryTTL, "FINCH_CACHE_QUERY_TTL")
	setDuration(&cfg.Cache.ToolTTL, "FINCH_CACHE_TOOL_TTL")
	setDuration(&cfg.Cache.SweepInterval, "FINCH_CACHE_SWEEP_INTERVAL")
	setInt64(&cfg.Cache.L1MaxSizeMB, "FINCH_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "FINCH_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "FINCH_CACHE_L2_TTL")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "FINCH_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "FINCH_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "FINCH_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "FINCH_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "FINCH_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")

	setString(&cfg.MarketData.BaseURL, "FINCH_MARKET_DATA_URL")
	setDuration(&cfg.MarketData.Timeout, "FINCH_MARKET_DATA_TIMEOUT")

	setString(&cfg.Retriever.URL, "FINCH_RETRIEVER_URL")
	setString(&cfg.Retriever.APIKey, "FINCH_RETRIEVER_API_KEY")
	setDuration(&cfg.Retriever.Timeout, "FINCH_RETRIEVER_TIMEOUT")

	setInt(&cfg.Breaker.MaxFailures, "FINCH_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "FINCH_BREAKER_TIMEOUT")

	setFloat64(&cfg.Rate.RequestsPerSecond, "FINCH_RATE_RPS")
	setInt(&cfg.Rate.Burst, "FINCH_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "FINCH_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "FINCH_RATE_MAX_IDLE_TIME")

	setBool(&cfg.Telemetry.Enabled, "FINCH_TELEMETRY_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "FINCH_TELEMETRY_ENDPOINT")

	setBool(&cfg.MCP.Enabled, "FINCH_MCP_ENABLED")
	setString(&cfg.MCP.Addr, "FINCH_MCP_ADDR")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Oracle.URL == "" {
		return errors.New("oracle.url is required")
	}
	if cfg.Agent.MaxIterations < 1 {
		return errors.New("agent.max_iterations must be >= 1")
	}
	if cfg.Agent.MaxRetries < 0 {
		return errors.New("agent.max_retries must be >= 0")
	}
	if cfg.Cache.Mode != "memory" && cfg.Cache.Mode != "tiered" {
		return fmt.Errorf("cache.mode must be memory or tiered, got %q", cfg.Cache.Mode)
	}
	if cfg.Cache.Mode == "tiered" && cfg.NATS.URL == "" {
		return errors.New("nats.url is required for tiered cache mode")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
