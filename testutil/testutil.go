// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/danielhkuo/affect-exp/cliparse"
	"github.com/danielhkuo/affect-exp/db"
	"github.com/danielhkuo/affect-exp/models"
	"github.com/danielhkuo/affect-exp/store"
)

// Secrets used by GetTestConfig.
const (
	TestProlificSecret = "test-prolific-secret"
	TestAdminSecret    = "test-admin-secret"
)

// SetupTestStore opens a fresh in-memory SQLite store with the full schema
func SetupTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := store.Open(db.TypeSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:              3318,
		DatabaseType:      db.TypeSQLite,
		DatabaseURL:       ":memory:",
		LeaseSeconds:      45,
		StimuliPerSession: 3,
		ProlificJWTSecret: TestProlificSecret,
		AdminJWTSecret:    TestAdminSecret,
		CopyVersion:       "v1",
		CopyTTL:           time.Minute,
		CompletionURL:     "https://app.prolific.com/submissions/complete?cc=TEST",
		MetricsNamespace:  "affect_exp_test",
	}
}

// SeedStimuli stores n active stimuli named stim-01, stim-02, ...
func SeedStimuli(t *testing.T, st store.Store, n int) []string {
	t.Helper()

	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("stim-%02d", i)
		err := st.PutStimulus(context.Background(), models.Stimulus{
			StimulusID: id,
			Text:       fmt.Sprintf("Test stimulus %d.", i),
			Category:   "test",
			Active:     true,
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("Failed to seed stimulus: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

// ProlificToken signs a secured_url_jwt for the given participant
func ProlificToken(t *testing.T, secret, pid, studyID, sessionID string) string {
	t.Helper()
	return sign(t, secret, jwt.MapClaims{
		"PROLIFIC_PID": pid,
		"STUDY_ID":     studyID,
		"SESSION_ID":   sessionID,
		"exp":          time.Now().Add(time.Hour).Unix(),
	})
}

// AdminToken signs an admin bearer token for subject
func AdminToken(t *testing.T, secret, subject string) string {
	t.Helper()
	return sign(t, secret, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
}

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body any, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

// AssertErrorReason checks the status and the machine-readable error reason
func AssertErrorReason(t *testing.T, w *httptest.ResponseRecorder, status int, reason string) models.ErrorResponse {
	t.Helper()
	AssertStatus(t, w, status)

	var resp models.ErrorResponse
	AssertJSON(t, w, &resp)
	if resp.Error != reason {
		t.Errorf("Expected error reason '%s', got '%s' (%s)", reason, resp.Error, resp.Message)
	}
	return resp
}
