// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/affect-exp/copytext"
	"github.com/danielhkuo/affect-exp/models"
	"github.com/danielhkuo/affect-exp/testutil"
)

const testBundle = `
common:
  global_definition:
    - "Read each passage as it appears."
  confidence_label: "How sure are you?"
self_condition:
  title: "Your own feelings"
  modalities:
    hold:
      instructions:
        - "Hold the space bar while your feelings change."
character_condition:
  title: "The narrator's feelings"
  modalities:
    click_mark:
      task_instruction: "Click the word where the narrator's feelings change."
`

func newCopyHandler(t *testing.T, env *testEnv, path string) *CopyHandler {
	t.Helper()
	cache := copytext.NewCache(copytext.FileLoader{Path: path}, "v-test", time.Minute)
	return NewCopyHandler(env.svc, cache)
}

func writeBundle(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "copy.yaml")
	if err := os.WriteFile(path, []byte(testBundle), 0o644); err != nil {
		t.Fatalf("Failed to write bundle: %v", err)
	}
	return path
}

func TestCopyGetExplicitVariant(t *testing.T) {
	env := newTestEnv(t, 1)
	h := newCopyHandler(t, env, writeBundle(t))

	w := env.do(h.Get, "/api/copy/get", models.CopyGetRequest{
		ExperimentTarget: models.TargetCharacter,
		InputModality:    models.ModalityClickMark,
	})
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.CopyGetResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Version != "v-test" {
		t.Errorf("Expected version 'v-test', got '%s'", resp.Version)
	}
	if resp.ExperimentTarget != models.TargetCharacter {
		t.Errorf("Expected target 'character', got '%s'", resp.ExperimentTarget)
	}
	if got := resp.Resolved["target_title"]; got != "The narrator's feelings" {
		t.Errorf("Expected character title, got %v", got)
	}
	if got := resp.Resolved["task_instruction"]; got != "Click the word where the narrator's feelings change." {
		t.Errorf("Unexpected task_instruction %v", got)
	}
	if _, ok := resp.Full["self_condition"]; !ok {
		t.Error("Expected full bundle to include self_condition")
	}
}

func TestCopyGetFromSession(t *testing.T) {
	env := newTestEnv(t, 1)
	h := newCopyHandler(t, env, writeBundle(t))
	sess := env.start("pid1")

	// The session's own target wins over the request.
	w := env.do(h.Get, "/api/copy/get", models.CopyGetRequest{
		SessionID:        sess.SessionID,
		ExperimentTarget: models.TargetCharacter,
	})
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.CopyGetResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.ExperimentTarget != models.TargetSelf {
		t.Errorf("Expected session target 'self', got '%s'", resp.ExperimentTarget)
	}
	if resp.InputModality != models.ModalityHold {
		t.Errorf("Expected session modality 'hold', got '%s'", resp.InputModality)
	}
	if got := resp.Resolved["task_instruction"]; got != "Hold the space bar while your feelings change." {
		t.Errorf("Unexpected task_instruction %v", got)
	}
	if got := resp.Resolved["confidence_label"]; got != "How sure are you?" {
		t.Errorf("Unexpected confidence_label %v", got)
	}
}

func TestCopyGetEmptyBody(t *testing.T) {
	env := newTestEnv(t, 1)
	h := newCopyHandler(t, env, writeBundle(t))

	req := httptest.NewRequest("POST", "/api/copy/get", nil)
	w := httptest.NewRecorder()
	h.Get(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.CopyGetResponse
	testutil.AssertJSON(t, w, &resp)
	if got := resp.Resolved["target_title"]; got != "Your own feelings" {
		t.Errorf("Expected self title by default, got %v", got)
	}
}

func TestCopyGetErrors(t *testing.T) {
	env := newTestEnv(t, 1)

	t.Run("unknown session", func(t *testing.T) {
		h := newCopyHandler(t, env, writeBundle(t))
		w := env.do(h.Get, "/api/copy/get", models.CopyGetRequest{SessionID: "missing"})
		testutil.AssertErrorReason(t, w, http.StatusNotFound, "not_found")
	})

	t.Run("missing bundle", func(t *testing.T) {
		h := newCopyHandler(t, env, filepath.Join(t.TempDir(), "absent.yaml"))
		w := env.do(h.Get, "/api/copy/get", models.CopyGetRequest{})
		testutil.AssertErrorReason(t, w, http.StatusServiceUnavailable, "copy_unavailable")
	})
}
