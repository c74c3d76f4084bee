package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/models"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/services"
)

// QueryHandler serves query submission, results and history endpoints.
type QueryHandler struct {
	queries  services.QueryService
	history  services.HistoryService
	sessions services.SessionManager
	logger   *zap.Logger
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(queries services.QueryService, history services.HistoryService, sessions services.SessionManager, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{queries: queries, history: history, sessions: sessions, logger: logger}
}

// RegisterRoutes registers the query routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.Execute)
	mux.HandleFunc("GET /api/query/{qid}/status", h.Status)
	mux.HandleFunc("GET /api/query/{qid}/results", h.Results)
	mux.HandleFunc("POST /api/query/{qid}/cancel", h.Cancel)
	mux.HandleFunc("GET /api/history", h.History)
	mux.HandleFunc("DELETE /api/history", h.ClearHistory)
}

func (h *QueryHandler) session(w http.ResponseWriter, r *http.Request) (*services.Session, bool) {
	session, err := h.sessions.Get(r.Header.Get(SessionIDHeader))
	if err != nil {
		_ = WriteError(w, err)
		return nil, false
	}
	return session, true
}

// Execute runs one guarded query.
func (h *QueryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.SQL == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_parameter", "sql is required")
		return
	}

	resp, err := h.queries.Execute(r.Context(), session, req)
	if err != nil {
		_ = WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, resp)
}

// Status reports the lifecycle state of one query.
func (h *QueryHandler) Status(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	status, err := h.queries.Status(session, r.PathValue("qid"))
	if err != nil {
		_ = WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, status)
}

// Results returns one page of a stored result set.
func (h *QueryHandler) Results(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 100)

	results, err := h.queries.Results(session, r.PathValue("qid"), page, pageSize)
	if err != nil {
		_ = WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, results)
}

// Cancel aborts a running query.
func (h *QueryHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := h.queries.Cancel(session, r.PathValue("qid")); err != nil {
		_ = WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// History lists persisted query history, newest first.
func (h *QueryHandler) History(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !models.ValidQueryStatus(status) {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_parameter", "unknown status filter")
		return
	}

	page, err := h.history.List(r.Context(), status,
		queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		_ = WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, page)
}

// ClearHistory removes all persisted history entries.
func (h *QueryHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	removed, err := h.history.Clear(r.Context())
	if err != nil {
		_ = WriteError(w, err)
		return
	}
	h.logger.Info("query history cleared", zap.Int64("removed", removed))
	_ = WriteJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

// queryInt reads an integer query parameter with a fallback.
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
