// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/affect-exp/auth"
	"github.com/danielhkuo/affect-exp/cliparse"
	"github.com/danielhkuo/affect-exp/copytext"
	"github.com/danielhkuo/affect-exp/experiment"
	"github.com/danielhkuo/affect-exp/handlers"
	"github.com/danielhkuo/affect-exp/metrics"
	"github.com/danielhkuo/affect-exp/middleware"
)

// Deps are the long-lived components the routes are served from.
type Deps struct {
	Service *experiment.Service
	Copy    *copytext.Cache
	Metrics metrics.Collector
	// Gatherer backs GET /metrics. Nil leaves the route unregistered.
	Gatherer prometheus.Gatherer
	// Health is pinged by GET /health. Nil always reports OK.
	Health Pinger
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

func NewRouter(deps Deps, cfg cliparse.Config) http.Handler {
	mux := http.NewServeMux()
	m := deps.Metrics
	if m == nil {
		m = metrics.NewNop()
	}

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(deps.Service, auth.NewProlificVerifier(cfg.ProlificJWTSecret, cfg.AllowDevIdentity))
	stimulusHandler := handlers.NewStimulusHandler(deps.Service)
	copyHandler := handlers.NewCopyHandler(deps.Service, deps.Copy)
	adminHandler := handlers.NewAdminHandler(deps.Service)
	adminVerifier := auth.NewAdminVerifier(cfg.AdminJWTSecret, cfg.AdminJWTIssuer, cfg.AdminJWTAudience)

	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, middleware.WithLogging(middleware.WithMetrics(m, pattern, h)))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if deps.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := deps.Health.Ping(ctx); err != nil {
				slog.Error("health check failed", "error", err)
				http.Error(w, "store unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if deps.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// Session lifecycle
	handle("POST /api/session/start", sessionHandler.Start)
	handle("POST /api/session/heartbeat", sessionHandler.Heartbeat)
	handle("POST /api/session/complete", sessionHandler.Complete)
	handle("POST /api/calibration/save", sessionHandler.SaveCalibration)

	// Reading task
	handle("POST /api/stimulus/next", stimulusHandler.Next)
	handle("POST /api/events/batch", stimulusHandler.EventsBatch)
	handle("POST /api/ratings/save", stimulusHandler.SaveRating)
	handle("POST /api/copy/get", copyHandler.Get)

	// Results (admin bearer token)
	handle("POST /api/admin/results/summary", middleware.RequireAdmin(adminVerifier, adminHandler.Summary))
	handle("POST /api/admin/results/session", middleware.RequireAdmin(adminVerifier, adminHandler.SessionDetail))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("affect-exp API v1"))
	})

	return middleware.CORS(middleware.NoStore(mux))
}
