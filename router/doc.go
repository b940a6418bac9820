// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the affect-exp API.

# Route Registration

NewRouter builds a ServeMux with every endpoint and wraps it with CORS and
Cache-Control: no-store:

	h := router.NewRouter(router.Deps{
		Service:  svc,
		Copy:     cache,
		Metrics:  collector,
		Gatherer: prometheus.DefaultGatherer,
		Health:   st,
	}, cfg)

# Endpoints

Health and metrics:

	GET /health   - 200 OK, or 503 when Deps.Health fails to ping
	GET /metrics

Session lifecycle (Prolific participant):

	POST /api/session/start     - Verify secured_url_jwt, open session
	POST /api/session/heartbeat - Extend lease
	POST /api/session/complete  - Finish, return completion redirect
	POST /api/calibration/save  - Reading speed and input modality

Reading task:

	POST /api/stimulus/next - Assign or resume the next stimulus
	POST /api/events/batch  - Upload telemetry for one stimulus run
	POST /api/ratings/save  - Rate one hold
	POST /api/copy/get      - Participant-facing copy

Results (admin, requires Authorization: Bearer <jwt>):

	POST /api/admin/results/summary
	POST /api/admin/results/session

API routes are wrapped with request logging and per-route metrics keyed by
the route pattern.
*/
package router
