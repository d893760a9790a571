package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cuongbtq/jobrunner/internal/backend"
	"github.com/cuongbtq/jobrunner/internal/config"
	"github.com/cuongbtq/jobrunner/internal/handlers"
	"github.com/cuongbtq/jobrunner/internal/jobs"
	"github.com/cuongbtq/jobrunner/internal/worker"
	"github.com/cuongbtq/jobrunner/shared/logger"
)

// processPrefix leads every derived worker name, so instances are easy to
// spot in logs and in the store's lock attribution.
const processPrefix = "jobrunner"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("JOBRUNNER_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker/config.yaml"
	}

	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	workerID := flag.Int("id", 0, "Worker id, distinguishes instances on the same host")
	queue := flag.String("queue", "", "Only claim jobs from this queue (default: any queue)")
	workOff := flag.Bool("workoff", false, "Process all currently queued jobs, then exit")
	clear := flag.Bool("clear", false, "Delete all jobs, then exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	queueName := *queue
	if queueName == "" {
		queueName = cfg.Worker.DefaultQueue
	}

	workerName := deriveWorkerName(queueName, *workerID)

	appLogger.Info("Starting worker",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("worker", workerName),
		slog.String("backend", cfg.Worker.Adapter),
	)

	store, err := backend.New(cfg, appLogger.Logger, workerName)
	if err != nil {
		return fmt.Errorf("failed to initialize %s adapter: %w", cfg.Worker.Adapter, err)
	}
	defer store.Close()

	registry := jobs.NewRegistry()
	if err := handlers.RegisterAll(registry, appLogger.Logger); err != nil {
		return err
	}

	appLogger.Info("Handlers registered",
		slog.Any("handlers", registry.Names()),
	)

	workerInstance, err := worker.New(&worker.Options{
		Adapter:          store.Store,
		Registry:         registry,
		Logger:           appLogger.Logger,
		Name:             workerName,
		Queue:            queueName,
		WorkOff:          *workOff,
		Clear:            *clear,
		SleepDelay:       cfg.Worker.SleepDelay,
		MaxAttempts:      cfg.Worker.MaxAttempts,
		DeleteFailedJobs: cfg.Worker.DeleteFailedJobs,
	})
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- workerInstance.Run(context.Background())
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case sig := <-quit:
			if sig == syscall.SIGTERM {
				// Unconditional termination: do not wait for the current
				// job; the store's claim-timeout policy will requeue it.
				appLogger.Info("Received SIGTERM, exiting immediately")
				store.Close()
				os.Exit(0)
			}

			appLogger.Info("Received SIGINT, finishing current job before exit")
			workerInstance.Stop()

		case err := <-errChan:
			if err != nil {
				appLogger.Error("Worker error", slog.Any("error", err))
				return err
			}

			appLogger.Info("Worker shutdown complete")
			return nil
		}
	}
}

// deriveWorkerName builds the operational identity for this instance,
// e.g. "jobrunner.mailers.0" or "jobrunner.*.1" when no queue is set.
func deriveWorkerName(queue string, id int) string {
	if queue == "" {
		queue = "*"
	}
	return fmt.Sprintf("%s.%s.%d", processPrefix, queue, id)
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}
