// Package main implements the detection worker: a pool of queue
// consumers that run jobs through the processing pipeline, plus the
// reconciliation sweep and a metrics endpoint.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/visionforge/detect-api/internal/config"
	"github.com/visionforge/detect-api/internal/platform/inference"
	"github.com/visionforge/detect-api/internal/platform/logger"
	"github.com/visionforge/detect-api/internal/platform/minio"
	"github.com/visionforge/detect-api/internal/platform/postgres"
	"github.com/visionforge/detect-api/internal/platform/redisq"
	"github.com/visionforge/detect-api/internal/service"
	"github.com/visionforge/detect-api/internal/worker"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker failed: %v", err)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("set up logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	artifacts, err := minio.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("connect to artifact store: %w", err)
	}

	jobQueue, err := redisq.New(ctx, cfg.Queue)
	if err != nil {
		return fmt.Errorf("connect to queue: %w", err)
	}
	defer func() { _ = jobQueue.Close() }()

	jobStore := postgres.NewPostgresJobStore(db)
	detector := inference.NewHTTPDetector(cfg.Inference)
	pipeline := worker.NewPipeline(artifacts, detector, cfg.Worker.TempDir)

	modelName, modelVersion := detector.ModelInfo()
	appLogger.Info("worker starting",
		"concurrency", cfg.Worker.Concurrency,
		"model_name", modelName,
		"model_version", modelVersion)

	metricsServer := startMetricsServer(cfg.Worker.MetricsPort, appLogger)

	reconciler := service.NewReconciler(jobStore, jobQueue, service.ReconcilerConfig{
		Interval:      cfg.Worker.ReconcileInterval,
		QueuedAge:     cfg.Worker.QueuedAge,
		ProcessingAge: cfg.Worker.ProcessTimeout,
	}, appLogger)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := reconciler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			appLogger.Error("reconciler stopped", "error", err)
		}
	}()

	for i := 0; i < cfg.Worker.Concurrency; i++ {
		w := worker.New(jobQueue, jobStore, pipeline, worker.Config{
			ProcessTimeout: cfg.Worker.ProcessTimeout,
		}, appLogger.With("consumer", i))

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				appLogger.Error("consumer stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()
	appLogger.Info("shutting down worker")
	wg.Wait()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("metrics server shutdown failed", "error", err)
	}

	appLogger.Info("worker shutdown completed")
	return nil
}

// startMetricsServer exposes Prometheus metrics on its own port.
func startMetricsServer(port int, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting metrics server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err)
		}
	}()

	return server
}
