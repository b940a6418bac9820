// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the affect-exp API server.

affect-exp runs an online reading experiment: participants arriving from
Prolific read short texts revealed word by word and mark where they feel
the emotional state shift. The server hands out stimuli with balanced
exposure, ingests the client's telemetry events, derives hold episodes and
stores the participant's rating of each one.

# Starting the Server

The server reads environment variables, an optional .env file and CLI
flags:

	DATABASE_URL=./affect.db PROLIFIC_JWT_SECRET=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..."

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string
  - PROLIFIC_JWT_SECRET: key for the secured_url_jwt hand-off

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite, postgres or memory (default: sqlite)
  - ADMIN_JWT_SECRET: enables the admin results routes
  - COPY_PATH: YAML or JSON copy bundle
  - OTEL_ENDPOINT: OTLP/HTTP trace collector

See package cliparse for the full list.

# Architecture

  - experiment: sessions, leases, stimulus assignment, event ingestion, ratings
  - store: conditional document store over SQL or memory
  - handlers: HTTP request handlers
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, metrics, admin auth, JSON helpers
  - auth: Prolific and admin token verification
  - copytext: copy bundle loading, caching and variant resolution
  - metrics, telemetry: Prometheus collectors and OpenTelemetry tracing
  - importer, cmd/import-stimuli: offline stimulus import

See package documentation for each component.
*/
package main
