// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging and Metrics

Wrap handlers with request logging and per-route metrics:

	mux.HandleFunc("POST /api/stimulus/next",
		middleware.WithLogging(middleware.WithMetrics(m, "POST /api/stimulus/next", h.Next)))

Completion is logged with method, path, status and duration_ms.

# CORS and Caching

	server := http.Server{
		Handler: middleware.CORS(middleware.NoStore(mux)),
	}

CORS reflects the request origin and allows GET, POST and OPTIONS with
Content-Type and Authorization headers. NoStore sets Cache-Control: no-store
on every response.

# Admin Routes

RequireAdmin checks the Authorization: Bearer token with a TokenVerifier and
stores the token subject on the request context (see AdminSubject).

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "validation_error", "session_id is required")

	var req models.StimulusNextRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "validation_error", "invalid JSON")
		return
	}

Request bodies are capped at MaxBodyBytes.
*/
package middleware
