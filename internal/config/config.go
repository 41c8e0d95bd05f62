// Package config provides hierarchical configuration loading for finchd.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the finch agent service.
type Config struct {
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
	Oracle     Oracle     `yaml:"oracle"`
	Agent      Agent      `yaml:"agent"`
	Cache      Cache      `yaml:"cache"`
	Postgres   Postgres   `yaml:"postgres"`
	NATS       NATS       `yaml:"nats"`
	MarketData MarketData `yaml:"market_data"`
	Retriever  Retriever  `yaml:"retriever"`
	Breaker    Breaker    `yaml:"breaker"`
	Rate       Rate       `yaml:"rate"`
	Telemetry  Telemetry  `yaml:"telemetry"`
	MCP        MCP        `yaml:"mcp"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Logging holds structured logging configuration. Buffer and Workers only
// apply in async mode.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
	Buffer  int    `yaml:"buffer"`  // queued record capacity
	Workers int    `yaml:"workers"` // drain goroutines
}

// Oracle holds decision oracle (LLM proxy) configuration.
type Oracle struct {
	URL         string        `yaml:"url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	// MaxRetries bounds re-consultation on unreachable or unparseable
	// oracle output. Kept small: retrying a non-deterministic oracle has
	// no correctness guarantee.
	MaxRetries int           `yaml:"max_retries"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Agent holds agent loop and tool executor configuration.
type Agent struct {
	MaxIterations int           `yaml:"max_iterations"` // DECIDING/EXECUTING cycles per run
	ToolTimeout   time.Duration `yaml:"tool_timeout"`   // default per-tool handler timeout
	MaxRetries    int           `yaml:"max_retries"`    // retry ceiling for idempotent tool failures
	BackoffBase   time.Duration `yaml:"backoff_base"`   // first retry delay, doubles per attempt
}

// Cache holds result cache configuration. Mode "memory" uses a single
// in-process cache; "tiered" layers ristretto (L1) over NATS KV (L2).
type Cache struct {
	Enabled       bool          `yaml:"enabled"`
	Mode          string        `yaml:"mode"` // "memory" | "tiered"
	QueryTTL      time.Duration `yaml:"query_ttl"`
	ToolTTL       time.Duration `yaml:"tool_ttl"` // default for tools without an explicit TTL
	SweepInterval time.Duration `yaml:"sweep_interval"`
	L1MaxSizeMB   int64         `yaml:"l1_max_size_mb"`
	L2Bucket      string        `yaml:"l2_bucket"`
	L2TTL         time.Duration `yaml:"l2_ttl"`
}

// Postgres holds run-history store configuration. An empty DSN disables
// persistence.
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	HealthCheck     time.Duration `yaml:"health_check"`
}

// NATS holds NATS configuration for the tiered cache L2.
type NATS struct {
	URL string `yaml:"url"`
}

// MarketData holds quote provider configuration for the stock price tool.
type MarketData struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Retriever holds filing retrieval service configuration. An empty URL
// disables the filings search tool.
type Retriever struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// Breaker holds circuit breaker configuration for oracle calls.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Rate holds rate limiter configuration.
type Rate struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
	MaxIdleTime       time.Duration `yaml:"max_idle_time"`
}

// Telemetry holds OpenTelemetry exporter configuration.
type Telemetry struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // OTLP gRPC endpoint, e.g. localhost:4317
}

// MCP holds Model Context Protocol server configuration.
type MCP struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8080",
			CORSOrigin: "http://localhost:3000",
		},
		Logging: Logging{
			Level:   "info",
			Service: "finchd",
			Buffer:  4096,
			Workers: 1,
		},
		Oracle: Oracle{
			URL:         "http://localhost:4000",
			Model:       "openai/gpt-4o-mini",
			Temperature: 0.1,
			MaxTokens:   1000,
			MaxRetries:  2,
			Timeout:     30 * time.Second,
		},
		Agent: Agent{
			MaxIterations: 10,
			ToolTimeout:   10 * time.Second,
			MaxRetries:    3,
			BackoffBase:   100 * time.Millisecond,
		},
		Cache: Cache{
			Enabled:       true,
			Mode:          "memory",
			QueryTTL:      5 * time.Minute,
			ToolTTL:       5 * time.Minute,
			SweepInterval: time.Minute,
			L1MaxSizeMB:   64,
			L2Bucket:      "finch-results",
			L2TTL:         5 * time.Minute,
		},
		Postgres: Postgres{
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 10 * time.Minute,
			HealthCheck:     time.Minute,
		},
		NATS: NATS{
			URL: "nats://localhost:4222",
		},
		MarketData: MarketData{
			BaseURL: "https://query1.finance.yahoo.com",
			Timeout: 10 * time.Second,
		},
		Retriever: Retriever{
			Timeout: 15 * time.Second,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Rate: Rate{
			RequestsPerSecond: 10,
			Burst:             100,
			CleanupInterval:   5 * time.Minute,
			MaxIdleTime:       15 * time.Minute,
		},
		Telemetry: Telemetry{
			Enabled:  false,
			Endpoint: "localhost:4317",
		},
		MCP: MCP{
			Enabled: false,
			Addr:    ":8090",
		},
	}
}
