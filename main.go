package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"jobscout/config"
	"jobscout/internal/bootstrap"
	"jobscout/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger.Init(logger.Config{
		Level:   logger.LevelInfo,
		Service: "jobscout",
	})

	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	mode := flag.String("mode", "all", "Run mode: api, worker, all")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}
	if cfg.IsDevelopment() {
		logger.SetLevel(logger.LevelDebug)
	}

	deps, cleanup, err := bootstrap.NewDependencies(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies: %v", err)
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	switch *mode {
	case "api":
		runAPI(ctx, cancel, deps)
	case "worker":
		runWorker(ctx, cancel, deps)
	case "all":
		go runWorker(ctx, cancel, deps)
		runAPI(ctx, cancel, deps)
	default:
		logger.Fatal("Unknown mode: %s", *mode)
	}
}

func runAPI(ctx context.Context, cancel context.CancelFunc, deps *bootstrap.Dependencies) {
	app := bootstrap.NewAPI(deps)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-sigChan:
		case <-ctx.Done():
		}
		cancel()

		logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("Error shutting down: %v", err)
		} else {
			logger.Info("API server shut down gracefully")
		}
	}()

	addr := ":" + deps.Config.Port
	logger.Info("Starting API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}

func runWorker(ctx context.Context, cancel context.CancelFunc, deps *bootstrap.Dependencies) {
	worker := bootstrap.NewWorker(deps)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-sigChan:
		case <-ctx.Done():
		}
		logger.Info("Shutting down worker (timeout: %v)...", shutdownTimeout)
		cancel()

		// An in-flight run finishes or the claim TTL unblocks the type later;
		// either way we do not hang the process.
		time.AfterFunc(shutdownTimeout, func() {
			logger.Warn("Worker shutdown timed out, forcing exit")
			os.Exit(1)
		})
	}()

	logger.Info("Starting worker...")
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatal("Worker failed: %v", err)
	}
	logger.Info("Worker shut down gracefully")
}
