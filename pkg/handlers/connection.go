package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/apperrors"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/services"
)

// SessionIDHeader carries the session handle on every authenticated request.
const SessionIDHeader = "X-Session-ID"

// ConnectResponse is returned after a successful connect.
type ConnectResponse struct {
	SessionID string                     `json:"session_id"`
	Connected bool                       `json:"connected"`
	Details   services.ConnectionDetails `json:"details"`
}

// ConnectionStatusResponse reports the state of one session.
type ConnectionStatusResponse struct {
	Connected bool                        `json:"connected"`
	Details   *services.ConnectionDetails `json:"details,omitempty"`
}

// ConnectionHandler manages the Snowflake session lifecycle.
type ConnectionHandler struct {
	snowflake services.SnowflakeService
	sessions  services.SessionManager
	logger    *zap.Logger
}

// NewConnectionHandler creates a new ConnectionHandler.
func NewConnectionHandler(snowflake services.SnowflakeService, sessions services.SessionManager, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{snowflake: snowflake, sessions: sessions, logger: logger}
}

// RegisterRoutes registers the connection routes on the given mux.
func (h *ConnectionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/connect", h.Connect)
	mux.HandleFunc("GET /api/connection", h.Status)
	mux.HandleFunc("POST /api/connection/test", h.Test)
	mux.HandleFunc("POST /api/disconnect", h.Disconnect)
}

// Connect opens a Snowflake connection and returns the new session ID.
func (h *ConnectionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var params services.ConnectionParams
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	conn, details, err := h.snowflake.Connect(r.Context(), params)
	if err != nil {
		h.logger.Warn("connect failed", zap.Error(err))
		_ = WriteError(w, err)
		return
	}

	session := h.sessions.Create(conn, *details)
	_ = WriteJSON(w, http.StatusOK, ConnectResponse{
		SessionID: session.ID,
		Connected: true,
		Details:   session.Details,
	})
}

// Status reports whether the request's session is live.
func (h *ConnectionHandler) Status(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Header.Get(SessionIDHeader))
	if err != nil {
		_ = WriteJSON(w, http.StatusOK, ConnectionStatusResponse{Connected: false})
		return
	}
	_ = WriteJSON(w, http.StatusOK, ConnectionStatusResponse{
		Connected: true,
		Details:   &session.Details,
	})
}

// Test verifies the session's connection still reaches Snowflake.
func (h *ConnectionHandler) Test(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Header.Get(SessionIDHeader))
	if err != nil {
		_ = WriteError(w, err)
		return
	}
	if err := h.snowflake.TestConnection(r.Context(), session.Conn); err != nil {
		_ = WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Disconnect tears down the session and its connection.
func (h *ConnectionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionIDHeader)
	if sessionID == "" {
		_ = WriteError(w, apperrors.ErrSessionExpired)
		return
	}
	if err := h.sessions.Delete(sessionID); err != nil {
		_ = WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]bool{"disconnected": true})
}
