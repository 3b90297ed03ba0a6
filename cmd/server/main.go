// Package main implements the entry point for the detection API server:
// account endpoints, job submission and queries, and artifact downloads.
// Processing itself happens in the separate worker binary.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/visionforge/detect-api/internal/config"
	"github.com/visionforge/detect-api/internal/platform/logger"
	"github.com/visionforge/detect-api/internal/platform/minio"
	"github.com/visionforge/detect-api/internal/platform/postgres"
	"github.com/visionforge/detect-api/internal/platform/redisq"
	"github.com/visionforge/detect-api/internal/service"
	"github.com/visionforge/detect-api/internal/service/auth"
	"github.com/visionforge/detect-api/migrations"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run() error {
	// A missing .env file is fine; real deployments use the environment.
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

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := migrateDatabase(db); err != nil {
		return err
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

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("set up token service: %w", err)
	}

	userService, err := service.NewUserService(
		db,
		postgres.NewPostgresUserStore(db),
		auth.NewBcryptHasher(0),
		auth.NewBcryptVerifier(),
		jwtService,
		appLogger,
	)
	if err != nil {
		return fmt.Errorf("set up user service: %w", err)
	}

	jobService, err := service.NewJobService(
		db,
		postgres.NewPostgresJobStore(db),
		artifacts,
		jobQueue,
		cfg.Inference.ModelName,
		cfg.Inference.ModelVersion,
		appLogger,
	)
	if err != nil {
		return fmt.Errorf("set up job service: %w", err)
	}

	router := newRouter(userService, jobService, jwtService, artifacts, appLogger)

	return serveHTTP(ctx, cfg.Server, router, appLogger)
}

// openDatabase connects and verifies the connection.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// migrateDatabase applies the embedded schema migrations.
func migrateDatabase(db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// serveHTTP runs the server until the context is canceled, then shuts
// down gracefully.
func serveHTTP(ctx context.Context, cfg config.ServerConfig, handler http.Handler, log *slog.Logger) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		log.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("server shutdown completed")
	return nil
}
