// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the download endpoint and the operational probes.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/clipfetch/internal/api/middleware"
	"github.com/ManuGH/clipfetch/internal/health"
	"github.com/ManuGH/clipfetch/internal/pipeline"
	"github.com/ManuGH/clipfetch/internal/stream"
)

// Executor runs one download job. *pipeline.Orchestrator implements it.
type Executor interface {
	Execute(ctx context.Context, req pipeline.Request, deliver pipeline.Deliver) (pipeline.Outcome, error)
}

// Config controls the HTTP surface.
type Config struct {
	CORSOrigins      []string
	RateLimitEnabled bool
	RateLimitRPM     int
	// TracingService names server spans; empty disables HTTP tracing.
	TracingService string
}

// Server holds the handlers and their collaborators.
type Server struct {
	cfg      Config
	exec     Executor
	health   *health.Manager
	streamer *stream.Streamer
}

// New creates the API server.
func New(cfg Config, exec Executor, hm *health.Manager) (*Server, error) {
	if exec == nil {
		return nil, errors.New("api: executor is required")
	}
	if hm == nil {
		hm = health.NewManager("")
	}
	return &Server{
		cfg:      cfg,
		exec:     exec,
		health:   hm,
		streamer: stream.New(),
	}, nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        s.cfg.CORSOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        s.cfg.TracingService,
		EnableLogging:         true,
	})
	s.registerRoutes(r)
	return r
}

func (s *Server) registerRoutes(r chi.Router) {
	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Get("/openapi.yaml", serveOpenAPI)

	r.Group(func(r chi.Router) {
		r.Use(middleware.DownloadRateLimit(s.cfg.RateLimitEnabled, s.cfg.RateLimitRPM))
		r.Get("/download", s.handleDownload)
		// Alias for deployments that mounted everything under the api prefix.
		r.Get("/api/download", s.handleDownload)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})
}
