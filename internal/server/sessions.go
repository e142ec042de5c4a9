package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/knexpress/booking-capture/internal/app"
	"github.com/knexpress/booking-capture/internal/detector"
	"github.com/knexpress/booking-capture/internal/engine"
	"github.com/knexpress/booking-capture/internal/store"
)

type startSessionRequest struct {
	BookingID string   `json:"booking_id"`
	Kind      string   `json:"kind"`
	Side      string   `json:"side,omitempty"`
	Actions   []string `json:"actions,omitempty"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BookingID == "" {
		s.respondError(w, http.StatusBadRequest, "booking_id is required")
		return
	}

	switch req.Kind {
	case "document":
		s.startDocumentSession(w, req)
	case "face":
		s.startLivenessFlow(w, req)
	default:
		s.respondError(w, http.StatusBadRequest, "kind must be \"document\" or \"face\"")
	}
}

func (s *Server) startDocumentSession(w http.ResponseWriter, req startSessionRequest) {
	side := engine.Side(req.Side)
	if side != engine.SideFront && side != engine.SideBack {
		s.respondError(w, http.StatusBadRequest, "side must be \"front\" or \"back\"")
		return
	}

	session, err := s.config.App.StartDocument(req.BookingID, side)
	if err != nil {
		s.respondSessionError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]string{
		"session_id": session.ID,
		"kind":       string(session.Kind),
		"target":     session.Label(),
	})
}

func (s *Server) startLivenessFlow(w http.ResponseWriter, req startSessionRequest) {
	actions := make([]detector.Action, len(req.Actions))
	for i, a := range req.Actions {
		actions[i] = detector.Action(a)
	}

	flowID, err := s.config.App.StartLiveness(req.BookingID, actions)
	if err != nil {
		s.respondSessionError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]any{
		"flow_id": flowID,
		"kind":    "face",
		"actions": req.Actions,
	})
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	state, err := s.config.App.SessionState(r.PathValue("id"))
	if err != nil {
		s.respondSessionError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"state": state.String()})
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	if err := s.config.App.Cancel(r.PathValue("id")); err != nil {
		s.respondSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleManualSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	image, err := decodeImage(req.Image)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "image must be base64-encoded")
		return
	}

	outcome, err := s.config.App.SubmitManual(r.Context(), r.PathValue("id"), image)
	if err != nil {
		s.respondSessionError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"accepted":   outcome.Accepted,
		"confidence": outcome.Confidence,
		"reason":     outcome.Reason,
	})
}

// decodeImage accepts both bare base64 payloads and data URLs.
func decodeImage(payload string) ([]byte, error) {
	if payload == "" {
		return nil, errors.New("empty image")
	}
	if idx := strings.Index(payload, ","); idx != -1 && strings.HasPrefix(payload, "data:") {
		payload = payload[idx+1:]
	}
	return base64.StdEncoding.DecodeString(payload)
}

func (s *Server) respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "booking not found")
	case errors.Is(err, app.ErrSessionNotFound):
		s.respondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, app.ErrEngineStopped):
		s.respondError(w, http.StatusServiceUnavailable, "capture engine is not running")
	case errors.Is(err, app.ErrLivenessUnavailable):
		s.respondError(w, http.StatusServiceUnavailable, "liveness is unavailable on this device")
	case errors.Is(err, app.ErrNotManualCapable):
		s.respondError(w, http.StatusBadRequest, "manual submission requires a document session")
	case errors.Is(err, engine.ErrCaptureInFlight):
		s.respondError(w, http.StatusConflict, "a capture is already in flight")
	case errors.Is(err, engine.ErrSessionClosed):
		s.respondError(w, http.StatusGone, "session is closed")
	default:
		s.logger.Error("session operation failed", "error", err)
		s.respondError(w, http.StatusBadRequest, err.Error())
	}
}
