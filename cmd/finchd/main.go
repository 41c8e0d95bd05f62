package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	finchhttp "github.com/finch-ai/finch/internal/adapter/http"
	"github.com/finch-ai/finch/internal/adapter/litellm"
	"github.com/finch-ai/finch/internal/adapter/mcp"
	"github.com/finch-ai/finch/internal/adapter/memcache"
	"github.com/finch-ai/finch/internal/adapter/natskv"
	"github.com/finch-ai/finch/internal/adapter/otel"
	"github.com/finch-ai/finch/internal/adapter/postgres"
	"github.com/finch-ai/finch/internal/adapter/ristretto"
	"github.com/finch-ai/finch/internal/adapter/tiered"
	"github.com/finch-ai/finch/internal/adapter/ws"
	"github.com/finch-ai/finch/internal/config"
	"github.com/finch-ai/finch/internal/logger"
	"github.com/finch-ai/finch/internal/middleware"
	"github.com/finch-ai/finch/internal/port/cache"
	"github.com/finch-ai/finch/internal/port/runstore"
	"github.com/finch-ai/finch/internal/resilience"
	"github.com/finch-ai/finch/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"cache_mode", cfg.Cache.Mode,
		"oracle_model", cfg.Oracle.Model,
		"max_iterations", cfg.Agent.MaxIterations,
	)

	ctx := context.Background()

	// --- Telemetry ---
	otelShutdown, err := otel.Setup(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelShutdown(sctx)
	}()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Result cache ---
	resultCache, cacheSize, cacheCleanup, err := buildCache(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cacheCleanup()

	// --- Run history (optional) ---
	var store runstore.Store
	if cfg.Postgres.DSN != "" {
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		store = postgres.NewRunStore(pool)
		slog.Info("postgres connected")
	} else {
		slog.Info("run history disabled: no postgres dsn configured")
	}

	// --- Oracle ---
	orc := litellm.NewOracle(cfg.Oracle, log)
	orc.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	// --- Tools ---
	registry, err := buildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("tools: %w", err)
	}
	slog.Info("tools registered", "count", registry.Len())

	// --- Services ---
	recorder := &cache.Recorder{}
	executor := service.NewExecutor(registry, resultCache, recorder, metrics,
		cfg.Agent, cfg.Cache.ToolTTL, log)

	hub := ws.NewHub()
	agentSvc := service.NewAgent(service.AgentParams{
		Oracle:       orc,
		Executor:     executor,
		Registry:     registry,
		QueryCache:   resultCache,
		Recorder:     recorder,
		Store:        store,
		Hub:          hub,
		Metrics:      metrics,
		Log:          log,
		Config:       cfg.Agent,
		QueryTTL:     cfg.Cache.QueryTTL,
		CacheEnabled: cfg.Cache.Enabled,
	})

	// --- MCP (optional) ---
	if cfg.MCP.Enabled {
		mcpServer := mcp.NewServer(mcp.ServerConfig{
			Addr:    cfg.MCP.Addr,
			Name:    cfg.Logging.Service,
			Version: "0.1.0",
		}, mcp.ServerDeps{
			Runner:    agentSvc,
			Registry:  registry,
			Recorder:  recorder,
			CacheSize: cacheSize,
			Runs:      mcpRunReader(store),
		})
		if err := mcpServer.Start(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mcpServer.Stop(sctx)
		}()
	}

	// --- HTTP ---
	handlers := finchhttp.NewHandlers(agentSvc, store, registry, recorder, cacheSize)

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	defer limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)()

	r := chi.NewRouter()
	r.Use(finchhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(finchhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(limiter.Handler)
	if cfg.Telemetry.Enabled {
		r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	}

	finchhttp.MountRoutes(r, handlers, hub)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Agent runs can legitimately take a while: many oracle round trips.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// buildCache assembles the configured result cache backend. Returns the
// cache (nil when disabled), a live-size reporter, and a cleanup func.
func buildCache(ctx context.Context, cfg *config.Config) (cache.Cache, func() int, func(), error) {
	noop := func() {}
	zero := func() int { return 0 }

	if !cfg.Cache.Enabled {
		slog.Info("result cache disabled")
		return nil, zero, noop, nil
	}

	switch cfg.Cache.Mode {
	case "memory":
		mc := memcache.New()
		stopSweep := mc.StartSweep(cfg.Cache.SweepInterval)
		return mc, mc.Len, stopSweep, nil

	case "tiered":
		l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
		if err != nil {
			return nil, zero, noop, fmt.Errorf("ristretto: %w", err)
		}
		l2, err := natskv.Connect(ctx, cfg.NATS.URL, cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
		if err != nil {
			l1.Close()
			return nil, zero, noop, fmt.Errorf("nats kv: %w", err)
		}
		cleanup := func() {
			l1.Close()
			l2.Close()
		}
		return tiered.New(l1, l2, cfg.Cache.ToolTTL), zero, cleanup, nil

	default:
		return nil, zero, noop, fmt.Errorf("unknown cache mode %q", cfg.Cache.Mode)
	}
}

// mcpRunReader adapts the optional store without handing the MCP server a
// typed-nil interface.
func mcpRunReader(store runstore.Store) mcp.RunReader {
	if store == nil {
		return nil
	}
	return store
}
