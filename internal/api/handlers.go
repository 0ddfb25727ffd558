package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gramvikas/kisha/internal/models"
)

// startSessionHandler handles POST /api/start_session.
func (s *Server) startSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("startSessionHandler invoked", "method", r.Method, "path", r.URL.Path)

	var req models.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("startSessionHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("startSessionHandler validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	reply, err := s.engine.StartSession(r.Context(), req.SessionID, req.Lang)
	if err != nil {
		slog.Error("startSessionHandler engine failed", "error", err, "sessionID", req.SessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start session"))
		return
	}

	slog.Info("startSessionHandler session started", "sessionID", req.SessionID, "lang", req.Lang)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session started", reply))
}

// chatHandler handles POST /api/chat.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("chatHandler invoked", "method", r.Method, "path", r.URL.Path)

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("chatHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("chatHandler validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	reply, err := s.engine.HandleTurn(r.Context(), req.SessionID, req.Query)
	if err != nil {
		if errors.Is(err, models.ErrMissingSessionID) || errors.Is(err, models.ErrMissingQuery) || errors.Is(err, models.ErrInvalidStep) {
			slog.Warn("chatHandler rejected turn", "error", err, "sessionID", req.SessionID)
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("chatHandler engine failed", "error", err, "sessionID", req.SessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		return
	}

	slog.Debug("chatHandler turn processed", "sessionID", req.SessionID, "nextStep", reply.NextStep)
	writeJSONResponse(w, http.StatusOK, models.Success(reply))
}

// audioHandler serves generated speech artifacts (GET /audio/{filename}).
func (s *Server) audioHandler(w http.ResponseWriter, r *http.Request) {
	filename := filepath.Base(chi.URLParam(r, "filename"))
	slog.Debug("audioHandler invoked", "filename", filename)

	if s.audioDir == "" {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Audio serving not configured"))
		return
	}

	path := filepath.Join(s.audioDir, filename)
	if _, err := os.Stat(path); err != nil {
		slog.Debug("audioHandler file not found", "filename", filename)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Audio file not found"))
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	http.ServeFile(w, r, path)
}

// healthHandler provides a health check endpoint for monitoring (GET /health).
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	statusCode := http.StatusOK
	if s.sessions != nil {
		if count, err := s.sessions.Count(r.Context()); err != nil {
			slog.Warn("Health check: failed to count sessions", "error", err)
			healthData["status"] = "degraded"
			healthData["error"] = "Failed to fetch session metrics"
			statusCode = http.StatusServiceUnavailable
		} else {
			healthData["active_sessions"] = count
		}
	}

	writeJSONResponse(w, statusCode, healthData)
}
