// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danielhkuo/affect-exp/cliparse"
	"github.com/danielhkuo/affect-exp/copytext"
	"github.com/danielhkuo/affect-exp/experiment"
	"github.com/danielhkuo/affect-exp/metrics"
	"github.com/danielhkuo/affect-exp/models"
	"github.com/danielhkuo/affect-exp/testutil"
)

func newTestRouter(t *testing.T) (http.Handler, cliparse.Config) {
	t.Helper()

	cfg := testutil.GetTestConfig()
	st := testutil.SetupTestStore(t)
	testutil.SeedStimuli(t, st, 3)

	reg := prometheus.NewRegistry()
	collector := metrics.NewPrometheus(reg, cfg.MetricsNamespace)
	svc := experiment.NewService(st, experiment.Config{
		LeaseDuration:     cfg.LeaseDuration(),
		StimuliPerSession: cfg.StimuliPerSession,
		CompletionURL:     cfg.RedirectURL(),
	}, experiment.WithMetrics(collector))

	return NewRouter(Deps{
		Service:  svc,
		Copy:     copytext.NewCache(copytext.FileLoader{Path: "testdata/missing.yaml"}, cfg.CopyVersion, cfg.CopyTTL),
		Metrics:  collector,
		Gatherer: reg,
		Health:   st,
	}, cfg), cfg
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthEndpoint(t *testing.T) {
	mux, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestHealthEndpointStoreDown(t *testing.T) {
	cfg := testutil.GetTestConfig()
	var pinged bool
	mux := NewRouter(Deps{
		Health: pingFunc(func(ctx context.Context) error {
			pinged = true
			if _, ok := ctx.Deadline(); !ok {
				t.Error("Expected ping context to carry a deadline")
			}
			return errors.New("connection refused")
		}),
	}, cfg)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if !pinged {
		t.Fatal("Expected /health to ping the store")
	}
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "store unavailable" {
		t.Errorf("Expected body 'store unavailable', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	mux, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	expected := "affect-exp API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}
}

func TestRouteExistence(t *testing.T) {
	mux, _ := newTestRouter(t)

	// Handlers reject the empty body, but the route must match.
	paths := []string{
		"/api/session/start",
		"/api/session/heartbeat",
		"/api/session/complete",
		"/api/calibration/save",
		"/api/stimulus/next",
		"/api/events/batch",
		"/api/ratings/save",
		"/api/copy/get",
		"/api/admin/results/summary",
		"/api/admin/results/session",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest("POST", path, strings.NewReader("{}"))
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code == http.StatusNotFound && !strings.Contains(w.Body.String(), "not_found") {
				t.Errorf("Route POST %s is not registered", path)
			}
			if w.Code == http.StatusMethodNotAllowed {
				t.Errorf("Route POST %s returned 405", path)
			}
			if got := w.Header().Get("Cache-Control"); got != "no-store" {
				t.Errorf("Expected Cache-Control no-store, got '%s'", got)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux, _ := newTestRouter(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/health"},
		{"GET", "/api/session/start"},
		{"PUT", "/api/events/batch"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected 405 for %s %s, got %d", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	mux, _ := newTestRouter(t)

	req := httptest.NewRequest("OPTIONS", "/api/stimulus/next", nil)
	req.Header.Set("Origin", "https://study.example.org")
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://study.example.org" {
		t.Errorf("Expected origin echoed back, got '%s'", got)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	mux, cfg := newTestRouter(t)

	testCases := []struct {
		name           string
		token          string
		expectedStatus int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"wrong secret", testutil.AdminToken(t, "other-secret", "admin@lab"), http.StatusUnauthorized},
		{"valid token", testutil.AdminToken(t, cfg.AdminJWTSecret, "admin@lab"), http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			headers := map[string]string{}
			if tc.token != "" {
				headers["Authorization"] = "Bearer " + tc.token
			}
			req := testutil.MakeRequest("POST", "/api/admin/results/summary", models.AdminSummaryRequest{}, headers)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			testutil.AssertStatus(t, w, tc.expectedStatus)
		})
	}
}

func TestSessionFlowThroughRouter(t *testing.T) {
	mux, cfg := newTestRouter(t)

	token := testutil.ProlificToken(t, cfg.ProlificJWTSecret, "pid1", "study1", "ps1")
	req := testutil.MakeRequest("POST", "/api/session/start", models.SessionStartRequest{SecuredURLJWT: token}, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var sess models.SessionStartResponse
	testutil.AssertJSON(t, w, &sess)

	req = testutil.MakeRequest("POST", "/api/stimulus/next", models.StimulusNextRequest{SessionID: sess.SessionID}, nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var next models.NextStimulus
	if err := json.NewDecoder(w.Body).Decode(&next); err != nil {
		t.Fatalf("Failed to decode next: %v", err)
	}
	if next.Done || next.StimulusOrder != 1 {
		t.Errorf("Expected first stimulus, got %+v", next)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux, cfg := newTestRouter(t)

	// Generate one observed request first.
	req := testutil.MakeRequest("POST", "/api/stimulus/next", models.StimulusNextRequest{SessionID: "missing"}, nil)
	mux.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	metric := cfg.MetricsNamespace + "_http_request_duration_seconds"
	if !strings.Contains(body, metric) {
		t.Errorf("Expected %s in /metrics output", metric)
	}
	if !strings.Contains(body, `route="POST /api/stimulus/next"`) {
		t.Error("Expected route label keyed by pattern")
	}
}
