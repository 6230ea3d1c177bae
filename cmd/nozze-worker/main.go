package main

import (
	"context"
	"errors"
	"os"
	"time"

	"nozze/internal/amqp"
	"nozze/internal/backend"
	"nozze/internal/cache"
	"nozze/internal/cli"
	"nozze/internal/config"
	"nozze/internal/core"
	applog "nozze/internal/log"
	"nozze/internal/planner"
	"nozze/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger.Logger)

	logger.Info("Starting nozze-worker")

	if cfg.DataBackend != config.BackendSQLite {
		logger.Error("The worker stores scenario results and requires DATA_BACKEND=sqlite", applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err)
		os.Exit(1)
	}
	defer res.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	plans := cache.NewLRUCache[core.Plan](cfg.PlanCacheSize, cfg.PlanCacheTTL)
	caches := cache.NewManager()
	caches.Register("plans", plans)
	caches.StartCleanup(cfg.PlanCacheTTL)
	defer caches.Stop()

	scenarioWorker := worker.NewScenarioWorker(res.Repository, res.Store, planner.New(plans), cfg.SweepBatchSize)
	sweeper := worker.NewSweeper(scenarioWorker, cfg.SweepInterval)

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := sweeper.Stop(stopCtx); err != nil {
			logger.Warn("Sweeper stop", applog.FieldError, err)
		}
	})

	// The first sweep picks up scenarios submitted while no worker was running.
	if err := sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start sweeper", applog.FieldError, err)
		os.Exit(1)
	}

	go func() {
		err := amqpClient.ConsumeScenarios(ctx, scenarioWorker.HandleScenarioMessage)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", applog.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
