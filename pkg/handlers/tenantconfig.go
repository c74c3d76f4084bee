package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/services"
)

// TenantConfigHandler serves schema discovery and tenant configuration.
type TenantConfigHandler struct {
	tenantConfig services.TenantConfigService
	sessions     services.SessionManager
	logger       *zap.Logger
}

// NewTenantConfigHandler creates a new TenantConfigHandler.
func NewTenantConfigHandler(tenantConfig services.TenantConfigService, sessions services.SessionManager, logger *zap.Logger) *TenantConfigHandler {
	return &TenantConfigHandler{tenantConfig: tenantConfig, sessions: sessions, logger: logger}
}

// RegisterRoutes registers the tenant config routes on the given mux.
func (h *TenantConfigHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tenant-config", h.Build)
	mux.HandleFunc("GET /api/tenant-config/snapshot", h.Snapshot)
	mux.HandleFunc("GET /api/tenant-config/fields", h.Fields)
}

func (h *TenantConfigHandler) session(w http.ResponseWriter, r *http.Request) (*services.Session, bool) {
	session, err := h.sessions.Get(r.Header.Get(SessionIDHeader))
	if err != nil {
		_ = WriteError(w, err)
		return nil, false
	}
	return session, true
}

func schemaScope(w http.ResponseWriter, r *http.Request) (database, schema string, ok bool) {
	database = r.URL.Query().Get("database")
	schema = r.URL.Query().Get("schema")
	if database == "" || schema == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "missing_parameter", "database and schema are required")
		return "", "", false
	}
	return database, schema, true
}

// Build assembles the full tenant configuration for one MDLH schema.
func (h *TenantConfigHandler) Build(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	database, schema, ok := schemaScope(w, r)
	if !ok {
		return
	}

	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		tenantID = session.Details.Account
	}
	baseURL := r.URL.Query().Get("base_url")

	cfg, err := h.tenantConfig.BuildTenantConfig(r.Context(), session.Conn, tenantID, baseURL, database, schema)
	if err != nil {
		_ = WriteError(w, err)
		return
	}
	h.logger.Info("tenant config built",
		zap.String("tenant_id", tenantID),
		zap.Int("field_mappings", len(cfg.FieldMappings)))
	_ = WriteJSON(w, http.StatusOK, cfg)
}

// Snapshot runs discovery only and returns the raw schema inventory.
func (h *TenantConfigHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	database, schema, ok := schemaScope(w, r)
	if !ok {
		return
	}

	snapshot, err := h.tenantConfig.DiscoverSchema(r.Context(), session.Conn, database, schema)
	if err != nil {
		_ = WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, snapshot)
}

// Fields returns the canonical field catalog. No session required; the
// catalog is static.
func (h *TenantConfigHandler) Fields(w http.ResponseWriter, r *http.Request) {
	fields := services.CanonicalFields()
	_ = WriteJSON(w, http.StatusOK, map[string]any{
		"fields": fields,
		"count":  len(fields),
	})
}
