// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danielhkuo/affect-exp/cliparse"
	"github.com/danielhkuo/affect-exp/copytext"
	"github.com/danielhkuo/affect-exp/experiment"
	"github.com/danielhkuo/affect-exp/metrics"
	"github.com/danielhkuo/affect-exp/router"
	"github.com/danielhkuo/affect-exp/store"
	"github.com/danielhkuo/affect-exp/telemetry"
)

func main() {
	var err error

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	// Tracing is a no-op unless OTEL_ENDPOINT is set
	shutdownTracing, err := telemetry.Setup(context.Background(), cfg.OTelEndpoint)
	if err != nil {
		slog.Error("tracing setup failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	// Open store and create schema
	st, err := store.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("store setup failed", "type", cfg.DatabaseType, "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("Store ready", "type", cfg.DatabaseType)

	collector := metrics.NewPrometheus(prometheus.DefaultRegisterer, cfg.MetricsNamespace)
	svc := experiment.NewService(st, experiment.Config{
		LeaseDuration:     cfg.LeaseDuration(),
		StimuliPerSession: cfg.StimuliPerSession,
		CompletionURL:     cfg.RedirectURL(),
	}, experiment.WithMetrics(collector))

	if cfg.CopyPath == "" {
		slog.Warn("COPY_PATH is not set; /api/copy/get will report copy_unavailable")
	}
	copyCache := copytext.NewCache(copytext.FileLoader{Path: cfg.CopyPath}, cfg.CopyVersion, cfg.CopyTTL)

	if cfg.ProlificJWTSecret == "" && !cfg.AllowDevIdentity {
		slog.Warn("PROLIFIC_JWT_SECRET is not set; session start will fail")
	}
	if cfg.AdminJWTSecret == "" {
		slog.Warn("ADMIN_JWT_SECRET is not set; admin routes are disabled")
	}

	// Create router
	mux := router.NewRouter(router.Deps{
		Service:  svc,
		Copy:     copyCache,
		Metrics:  collector,
		Gatherer: prometheus.DefaultGatherer,
		Health:   st,
	}, cfg)

	// Create server
	server := http.Server{
		Handler:           mux,
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal, then drain in-flight requests
		<-ctrlc
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}
