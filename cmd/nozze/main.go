package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"nozze/internal/amqp"
	"nozze/internal/backend"
	"nozze/internal/cache"
	"nozze/internal/cli"
	"nozze/internal/core"
	apphttp "nozze/internal/http"
	applog "nozze/internal/log"
	"nozze/internal/planner"
	"nozze/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger.Logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	plans := cache.NewLRUCache[core.Plan](cfg.PlanCacheSize, cfg.PlanCacheTTL)
	caches := cache.NewManager()
	caches.Register("plans", plans)
	caches.StartCleanup(cfg.PlanCacheTTL)

	budget, cut := cfg.Defaults()
	opts := apphttp.Options{
		Catalog:           res.Store,
		Weights:           res.Store,
		Planner:           planner.New(plans),
		DefaultBudget:     budget,
		DefaultCut:        cut,
		RequestsPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:    cfg.TrustedProxyList(),
		Logger:            logger,
	}

	var amqpClient *amqp.Client
	if res.Repository != nil {
		opts.Ready = res.Repository.Ping

		var publisher services.Publisher
		if cfg.AMQPURL != "" {
			amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
			if err != nil {
				logger.Warn("Failed to initialize AMQP client, scenarios wait for the sweep", applog.FieldError, err)
			} else {
				publisher = amqpClient
				logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
			}
		}
		opts.Scenarios = services.NewScenarioService(res.Repository, publisher)
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, opts)
	if err != nil {
		logger.Error("Failed to configure server", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		caches.Stop()
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	})

	logger.Info("Starting nozze server",
		"port", cfg.Port,
		applog.FieldBackend, cfg.DataBackend,
		"scenarios", opts.Scenarios != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
