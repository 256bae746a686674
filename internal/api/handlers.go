// Package api exposes the HTTP surface of TransportMedAgent.
//
// This file implements the request handlers.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/TransportMedAgent/internal/models"
)

// messageHandler handles POST /conversation/message.
func (s *Server) messageHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("messageHandler invoked", "method", r.Method, "path", r.URL.Path)

	var req models.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("messageHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("messageHandler validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	resp, err := s.coordinator.ProcessMessage(r.Context(), req.SessionID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrSessionNotFound):
			writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		case errors.Is(err, models.ErrSessionEnded):
			writeJSONResponse(w, http.StatusConflict, models.Error("Session already ended"))
		case errors.Is(err, models.ErrTurnInProgress):
			writeJSONResponse(w, http.StatusConflict, models.Error("A turn is already being processed for this session"))
		case errors.Is(err, models.ErrEmptyMessage), errors.Is(err, models.ErrMessageTooLong):
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		default:
			slog.Error("messageHandler turn failed", "error", err, "session_id", req.SessionID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

// outboundCallHandler handles POST /calls/outbound.
func (s *Server) outboundCallHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("outboundCallHandler invoked", "method", r.Method, "path", r.URL.Path)

	var req models.OutboundCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("outboundCallHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Phone == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Phone number is required"))
		return
	}

	resp, err := s.coordinator.StartOutboundCall(r.Context(), req.Phone)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidPhoneNumber):
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		case errors.Is(err, models.ErrRecordNotFound):
			writeJSONResponse(w, http.StatusNotFound, models.Error("No scheduled service for this phone number"))
		default:
			slog.Error("outboundCallHandler failed", "error", err, "phone", req.Phone)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start outbound call"))
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

// pendingCallsHandler handles POST /calls/outbound/pending: opens a
// confirmation call for every service record still pending.
func (s *Server) pendingCallsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("pendingCallsHandler invoked", "method", r.Method, "path", r.URL.Path)

	calls, err := s.coordinator.StartPendingOutboundCalls(r.Context())
	if err != nil {
		slog.Error("pendingCallsHandler failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start pending outbound calls"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]any{
		"opened": len(calls),
		"calls":  calls,
	}))
}

// sessionHandler handles GET /session/{id}.
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	slog.Debug("sessionHandler invoked", "session_id", sessionID)

	session, err := s.coordinator.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
			return
		}
		slog.Error("sessionHandler failed", "error", err, "session_id", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(session))
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("TransportMedAgent API is healthy", nil))
}
