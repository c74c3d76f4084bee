package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/config"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/services"
)

func newHealthHandler(t *testing.T) *HealthHandler {
	t.Helper()
	cfg := &config.Config{Version: "test-version", Env: "test"}
	sessions, _ := newSessions(t)
	cache := services.NewMetadataCache(config.CacheConfig{
		DatabasesTTLSeconds:   60,
		SchemasTTLSeconds:     60,
		TablesTTLSeconds:      60,
		ColumnsTTLSeconds:     60,
		QueryResultTTLSeconds: 60,
		QueryResultMaxEntries: 10,
	}, zap.NewNop())
	t.Cleanup(cache.Close)
	return NewHealthHandler(cfg, sessions, cache, zap.NewNop())
}

func TestHealthHandler_Health(t *testing.T) {
	handler := newHealthHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	handler.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("expected body 'ok', got %q", rec.Body.String())
	}
}

func TestHealthHandler_Ping(t *testing.T) {
	handler := newHealthHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()

	handler.Ping(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var resp PingResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status 'ok', got %q", resp.Status)
	}
	if resp.Service != "mdlh-engine" {
		t.Errorf("expected service 'mdlh-engine', got %q", resp.Service)
	}
	if resp.Version != "test-version" {
		t.Errorf("expected version 'test-version', got %q", resp.Version)
	}
}

func TestHealthHandler_Stats(t *testing.T) {
	handler := newHealthHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()

	handler.Stats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var resp StatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Sessions.ActiveSessions != 1 {
		t.Errorf("expected 1 active session, got %d", resp.Sessions.ActiveSessions)
	}
}
