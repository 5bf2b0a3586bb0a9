package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/privacyops/console/internal/api"
	"github.com/privacyops/console/internal/app"
	"github.com/privacyops/console/internal/observability"
	"github.com/privacyops/console/internal/platform/cache"
	"github.com/privacyops/console/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	redisOpts := redisClient.Options()
	if err := os.MkdirAll(cfg.ExportDir, 0o750); err != nil {
		logger.Error("create export dir", slog.String("dir", cfg.ExportDir), slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	client := api.NewClient(cfg.APIBaseURL, nil, cfg.APITimeout)
	exportJob := jobs.NewExportJob(client, jobs.NewTokenStore(redisClient, jobs.DefaultTokenTTL), cfg.ExportDir, logger, metrics)
	sweepJob := jobs.NewSweepJob(cfg.ExportDir, logger, metrics)

	sweepTask, err := jobs.NewSweepTask(jobs.DefaultExportRetention)
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskExportCSV, Handler: exportJob.Handle},
			{Type: jobs.TaskExportSweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 * * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
