package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/models"
)

func TestMetadataHandler_Databases(t *testing.T) {
	sessions, session := newSessions(t)
	metadata := &fakeMetadataService{
		databases: []models.DatabaseInfo{{Name: "ATLAN_MDLH"}, {Name: "ANALYTICS"}},
	}
	handler := NewMetadataHandler(metadata, sessions, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/metadata/databases", nil)
	req.Header.Set(SessionIDHeader, session.ID)
	rec := httptest.NewRecorder()

	handler.Databases(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var body struct {
		Databases []models.DatabaseInfo `json:"databases"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Databases) != 2 {
		t.Errorf("expected 2 databases, got %d", len(body.Databases))
	}
}

func TestMetadataHandler_Databases_NoSession(t *testing.T) {
	sessions, _ := newSessions(t)
	handler := NewMetadataHandler(&fakeMetadataService{}, sessions, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/metadata/databases", nil)
	rec := httptest.NewRecorder()

	handler.Databases(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestMetadataHandler_Schemas_MissingDatabase(t *testing.T) {
	sessions, session := newSessions(t)
	handler := NewMetadataHandler(&fakeMetadataService{}, sessions, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/metadata/schemas", nil)
	req.Header.Set(SessionIDHeader, session.ID)
	rec := httptest.NewRecorder()

	handler.Schemas(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestMetadataHandler_Tables(t *testing.T) {
	sessions, session := newSessions(t)
	rows := int64(120000)
	metadata := &fakeMetadataService{
		tables: []models.TableInfo{{
			Name:     "ASSETS",
			Database: "ATLAN_MDLH",
			Schema:   "PUBLIC",
			Kind:     "TABLE",
			RowCount: &rows,
		}},
	}
	handler := NewMetadataHandler(metadata, sessions, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet,
		"/api/metadata/tables?database=ATLAN_MDLH&schema=PUBLIC", nil)
	req.Header.Set(SessionIDHeader, session.ID)
	rec := httptest.NewRecorder()

	handler.Tables(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var body struct {
		Tables []models.TableInfo `json:"tables"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Tables) != 1 || body.Tables[0].Name != "ASSETS" {
		t.Errorf("unexpected tables payload: %+v", body.Tables)
	}
}

func TestMetadataHandler_Columns_MissingParams(t *testing.T) {
	sessions, session := newSessions(t)
	handler := NewMetadataHandler(&fakeMetadataService{}, sessions, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet,
		"/api/metadata/columns?database=ATLAN_MDLH", nil)
	req.Header.Set(SessionIDHeader, session.ID)
	rec := httptest.NewRecorder()

	handler.Columns(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestMetadataHandler_Refresh(t *testing.T) {
	sessions, session := newSessions(t)
	metadata := &fakeMetadataService{}
	handler := NewMetadataHandler(metadata, sessions, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/metadata/refresh", nil)
	req.Header.Set(SessionIDHeader, session.ID)
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if metadata.refreshed != 1 {
		t.Errorf("expected one refresh call, got %d", metadata.refreshed)
	}
}
