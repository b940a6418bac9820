// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/affect-exp/experiment"
	"github.com/danielhkuo/affect-exp/middleware"
	"github.com/danielhkuo/affect-exp/models"
)

// StageCalibration is the first stage a new session enters.
const StageCalibration = "calibration"

// IdentityVerifier turns the recruiting platform's hand-off token into a
// participant identity.
type IdentityVerifier interface {
	Verify(raw string) (models.ParticipantIdentity, error)
}

type SessionHandler struct {
	svc      *experiment.Service
	identity IdentityVerifier
}

func NewSessionHandler(svc *experiment.Service, identity IdentityVerifier) *SessionHandler {
	return &SessionHandler{svc: svc, identity: identity}
}

// Start handles POST /api/session/start
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req models.SessionStartRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		badJSON(w)
		return
	}

	identity, err := h.identity.Verify(req.SecuredURLJWT)
	if err != nil {
		writeError(w, err)
		return
	}

	sess, err := h.svc.StartSession(r.Context(), identity, req.ExperimentTargetOverride)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.SessionStartResponse{
		SessionID:        sess.SessionID,
		LeaseToken:       sess.LeaseToken,
		LeaseExpiresAt:   sess.LeaseExpiresAt,
		ExperimentTarget: sess.ExperimentTarget,
		Stage:            StageCalibration,
	})
}

// Heartbeat handles POST /api/session/heartbeat
func (h *SessionHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req models.LeaseRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		badJSON(w)
		return
	}

	expires, err := h.svc.Heartbeat(r.Context(), req.SessionID, req.LeaseToken)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.HeartbeatResponse{OK: true, LeaseExpiresAt: expires})
}

// Complete handles POST /api/session/complete
func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req models.LeaseRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		badJSON(w)
		return
	}

	redirect, err := h.svc.CompleteSession(r.Context(), req.SessionID, req.LeaseToken)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := models.SessionCompleteResponse{OK: true}
	if redirect != "" {
		resp.RedirectURL = &redirect
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// SaveCalibration handles POST /api/calibration/save
func (h *SessionHandler) SaveCalibration(w http.ResponseWriter, r *http.Request) {
	var req models.CalibrationSaveRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		badJSON(w)
		return
	}

	cal, err := h.svc.SaveCalibration(r.Context(), req.SessionID, req.LeaseToken, req.CalibrationGroup, req.InputModality)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.CalibrationSaveResponse{
		OK:               true,
		CalibrationGroup: cal.Group,
		InputModality:    cal.InputModality,
		MsPerWord:        cal.MsPerWord,
	})
}
