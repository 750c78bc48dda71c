package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"taller/internal/amqp"
	"taller/internal/cli"
	"taller/internal/config"
	"taller/internal/log"
	"taller/internal/metrics"
	"taller/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(nil)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg).WithComponent(log.ComponentWorker)

	logger.Info("Starting taller-worker")

	if cfg.DataBackend != config.BackendSQLite {
		logger.Error("The worker stores reports and needs the sqlite backend", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	eng, err := cli.InitEngine(logger, cfg)
	if err != nil {
		logger.Error("Failed to load classification tables", log.FieldError, err.Error())
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()
	backend := &cli.Backend{Source: repo, Writer: repo, Rates: repo, Repo: repo}

	reg := metrics.NewRegistry()
	w := worker.NewRecomputeWorker(cli.NewLoader(logger, cfg, backend), eng, repo,
		worker.WithMetrics(reg),
		worker.WithLocation(cfg.Location()),
		worker.WithRetention(cfg.ReportRetention),
		worker.WithLogger(logger),
	)

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
			os.Exit(1)
		}
		defer amqpClient.Close()
	} else {
		logger.Info("AMQP_URL not set, recomputing on schedule only")
	}

	var metricsSrv *http.Server
	if cfg.WorkerMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", reg.Handler())
		metricsSrv = &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics listener failed", log.FieldError, err.Error(), "addr", cfg.WorkerMetricsAddr)
			}
		}()
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(ctx)
		}
	})

	if amqpClient != nil {
		go func() {
			if err := amqpClient.ConsumeRecompute(ctx, w.HandleRecompute); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err.Error())
			}
		}()
	}

	go w.Run(ctx, cfg.RecomputeInterval)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
