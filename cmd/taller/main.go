package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"taller/internal/amqp"
	"taller/internal/cache"
	"taller/internal/cli"
	"taller/internal/engine"
	apphttp "taller/internal/http"
	"taller/internal/log"
	"taller/internal/metrics"
	"taller/internal/middleware/ratelimit"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(nil)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg)

	eng, err := cli.InitEngine(logger, cfg)
	if err != nil {
		logger.Error("Failed to load classification tables", log.FieldError, err.Error())
		os.Exit(1)
	}

	backend, err := cli.InitBackend(logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer backend.Close()

	reg := metrics.NewRegistry()
	results := cache.NewLRUCache[engine.Result](cfg.CacheSize, cfg.CacheTTL, cache.WithObserver(reg.CacheObserver()))
	cacheManager := cache.NewManager(logger.Logger)
	cacheManager.Register(results)
	cacheManager.StartCleanup(time.Minute)

	deps := apphttp.Deps{
		Engine:   eng,
		Loader:   cli.NewLoader(logger, cfg, backend),
		Cache:    results,
		Metrics:  reg,
		Ready:    backend,
		Limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		Location: cfg.Location(),
		Logger:   logger,
	}
	if backend.Repo != nil {
		deps.Reports = backend.Repo
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// The API still serves computed results without the broker.
			logger.Warn("AMQP unavailable, recompute requests will not be queued", log.FieldError, err.Error())
		} else {
			deps.Publisher = amqpClient
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps)
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		cacheManager.Stop()
		if amqpClient != nil {
			amqpClient.Close()
		}
	})

	logger.Info("Starting taller server", "port", cfg.Port, "backend", cfg.DataBackend, "timezone", cfg.Timezone)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
