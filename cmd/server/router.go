package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/visionforge/detect-api/internal/api"
	apimiddleware "github.com/visionforge/detect-api/internal/api/middleware"
	"github.com/visionforge/detect-api/internal/artifact"
	"github.com/visionforge/detect-api/internal/service"
	"github.com/visionforge/detect-api/internal/service/auth"
)

// newRouter configures all routes and middleware.
func newRouter(
	users service.UserService,
	jobs service.JobService,
	jwtService auth.JWTService,
	artifacts artifact.Store,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.TraceMiddleware)

	authHandler := api.NewAuthHandler(users, jwtService)
	jobHandler := api.NewJobHandler(jobs, artifacts)
	authMiddleware := apimiddleware.NewAuthMiddleware(jwtService)

	r.Route("/api", func(r chi.Router) {
		// Authentication endpoints (public)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/uploads", jobHandler.Submit)
			r.Get("/jobs", jobHandler.List)
			r.Get("/jobs/{id}", jobHandler.Get)
			r.Get("/files/*", jobHandler.GetFile)
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
