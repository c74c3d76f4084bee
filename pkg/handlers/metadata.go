package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/services"
)

// MetadataHandler serves catalog browsing endpoints.
type MetadataHandler struct {
	metadata services.MetadataService
	sessions services.SessionManager
	logger   *zap.Logger
}

// NewMetadataHandler creates a new MetadataHandler.
func NewMetadataHandler(metadata services.MetadataService, sessions services.SessionManager, logger *zap.Logger) *MetadataHandler {
	return &MetadataHandler{metadata: metadata, sessions: sessions, logger: logger}
}

// RegisterRoutes registers the metadata routes on the given mux.
func (h *MetadataHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/metadata/databases", h.Databases)
	mux.HandleFunc("GET /api/metadata/schemas", h.Schemas)
	mux.HandleFunc("GET /api/metadata/tables", h.Tables)
	mux.HandleFunc("GET /api/metadata/columns", h.Columns)
	mux.HandleFunc("POST /api/metadata/refresh", h.Refresh)
}

func (h *MetadataHandler) session(w http.ResponseWriter, r *http.Request) (*services.Session, bool) {
	session, err := h.sessions.Get(r.Header.Get(SessionIDHeader))
	if err != nil {
		_ = WriteError(w, err)
		return nil, false
	}
	return session, true
}

// Databases lists the databases visible to the session.
func (h *MetadataHandler) Databases(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	databases, err := h.metadata.ListDatabases(r.Context(), session)
	if err != nil {
		_ = WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]any{"databases": databases})
}

// Schemas lists the schemas of ?database=.
func (h *MetadataHandler) Schemas(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	database := r.URL.Query().Get("database")
	if database == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_parameter", "database is required")
		return
	}

	schemas, err := h.metadata.ListSchemas(r.Context(), session, database)
	if err != nil {
		_ = WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]any{"schemas": schemas})
}

// Tables lists the tables of ?database=&schema=.
func (h *MetadataHandler) Tables(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	database := r.URL.Query().Get("database")
	schema := r.URL.Query().Get("schema")
	if database == "" || schema == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_parameter", "database and schema are required")
		return
	}

	tables, err := h.metadata.ListTables(r.Context(), session, database, schema)
	if err != nil {
		_ = WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

// Columns describes one table from ?database=&schema=&table=.
func (h *MetadataHandler) Columns(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	database := r.URL.Query().Get("database")
	schema := r.URL.Query().Get("schema")
	table := r.URL.Query().Get("table")
	if database == "" || schema == "" || table == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_parameter", "database, schema and table are required")
		return
	}

	columns, err := h.metadata.ListColumns(r.Context(), session, database, schema, table)
	if err != nil {
		_ = WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]any{"columns": columns})
}

// Refresh invalidates the session's cached catalog entries.
func (h *MetadataHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	h.metadata.Refresh(session)
	_ = WriteJSON(w, http.StatusOK, map[string]bool{"refreshed": true})
}
