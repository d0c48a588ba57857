package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/af-corp/medullar-gateway/internal/audit"
	"github.com/af-corp/medullar-gateway/internal/config"
	"github.com/af-corp/medullar-gateway/internal/credentials"
	"github.com/af-corp/medullar-gateway/internal/filter"
	"github.com/af-corp/medullar-gateway/internal/filter/injection"
	"github.com/af-corp/medullar-gateway/internal/filter/policy"
	"github.com/af-corp/medullar-gateway/internal/filter/secrets"
	"github.com/af-corp/medullar-gateway/internal/gateway"
	"github.com/af-corp/medullar-gateway/internal/ratelimit"
	"github.com/af-corp/medullar-gateway/internal/telemetry"
	"github.com/af-corp/medullar-gateway/internal/upstream"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	// Load configuration
	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	level.Set(loader.Config().Telemetry.Level())
	if loader.Config().Telemetry.LogFormat == "text" {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	slog.SetDefault(logger)

	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	// Outbound filters read their settings through the loader on every check
	secretScanner := secrets.NewScanner(func() config.SecretsFilterConfig {
		return loader.Config().Filters.Secrets
	})
	injectionScanner := injection.NewScanner(func() config.InjectionFilterConfig {
		return loader.Config().Filters.Injection
	})
	policyEvaluator := policy.NewEvaluator(func() config.PolicyFilterConfig {
		return loader.Config().Filters.Policy
	})
	if policyEvaluator.Enabled() {
		if err := policyEvaluator.Load(); err != nil {
			logger.Error("failed to load policies", "error", err)
			os.Exit(1)
		}
	}
	filters := filter.NewChain(secretScanner, injectionScanner, policyEvaluator)

	loader.OnChange(config.SectionTelemetry, func(c *config.Config) {
		level.Set(c.Telemetry.Level())
	})
	reloadPolicies := func(c *config.Config) {
		if !c.Filters.Policy.Enabled {
			return
		}
		if err := policyEvaluator.Load(); err != nil {
			logger.Error("failed to reload policies, keeping previous set", "error", err)
		}
	}
	loader.OnChange(config.SectionFilters, reloadPolicies)
	loader.OnChange(config.SectionPolicies, reloadPolicies)

	cfg := loader.Config()
	metrics := telemetry.NewMetrics()

	// Connect to PostgreSQL for the execution audit log
	var recorder audit.Recorder = audit.Nop{}
	if cfg.Audit.Enabled {
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
		if err != nil {
			logger.Error("invalid database config", "error", err)
			os.Exit(1)
		}
		if cfg.Database.MaxOpenConns > 0 {
			poolCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
		}
		poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

		dbPool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(context.Background()); err != nil {
			logger.Warn("database not reachable (audit entries will be dropped)", "error", err)
		} else {
			logger.Info("database connected")
		}
		recorder = audit.NewPGStore(dbPool)
	}

	// Connect to Redis
	var rdb redis.UniversalClient
	if len(cfg.Redis.Addresses) > 0 && cfg.Redis.Addresses[0] != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    cfg.Redis.Addresses,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (rate limiting disabled)", "error", err)
			client.Close()
		} else {
			logger.Info("redis connected")
			rdb = client
			defer client.Close()
		}
	}

	tracker := upstream.NewTracker(cfg.Medullar.Breaker.FailureThreshold, cfg.Medullar.Breaker.RecoveryInterval, metrics)
	handler := gateway.NewHandler(loader.Config, credentials.NewHTTPClient(cfg.Medullar), tracker, filters, recorder, metrics, logger)

	opts := gateway.RouterOptions{
		Version: version,
		Metrics: promhttp.Handler(),
	}
	if cfg.RateLimit.Enabled {
		opts.RateLimit = ratelimit.Middleware(ratelimit.NewLimiter(rdb), func() int {
			return loader.Config().RateLimit.RequestsPerMinute
		}, metrics)
	}
	r := gateway.NewRouter(handler, opts)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway starting",
			"addr", addr,
			"version", version,
			"medullar_base_url", cfg.Medullar.BaseURL,
			"audit", cfg.Audit.Enabled,
			"rate_limit", cfg.RateLimit.Enabled,
			"policy", cfg.Filters.Policy.Enabled,
		)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("gateway stopped")
}
