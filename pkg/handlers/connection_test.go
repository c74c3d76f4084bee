package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/apperrors"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/services"
)

func TestConnectionHandler_Connect(t *testing.T) {
	sessions, _ := newSessions(t)
	snowflake := &fakeSnowflakeService{
		details: &services.ConnectionDetails{
			Account:   "acme",
			User:      "bob",
			Warehouse: "wh1",
		},
	}
	handler := NewConnectionHandler(snowflake, sessions, zap.NewNop())

	body := strings.NewReader(`{"account": "acme", "user": "bob"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/connect", body)
	rec := httptest.NewRecorder()

	handler.Connect(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	var resp ConnectResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.SessionID == "" || !resp.Connected {
		t.Errorf("expected a live session, got %+v", resp)
	}

	// The returned session ID resolves via the manager.
	if _, err := sessions.Get(resp.SessionID); err != nil {
		t.Errorf("session not registered: %v", err)
	}
}

func TestConnectionHandler_Connect_SnowflakeDown(t *testing.T) {
	sessions, _ := newSessions(t)
	snowflake := &fakeSnowflakeService{connErr: apperrors.ErrSnowflakeUnavailable}
	handler := NewConnectionHandler(snowflake, sessions, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/connect", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	handler.Connect(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected status %d, got %d", http.StatusBadGateway, rec.Code)
	}
}

func TestConnectionHandler_Status(t *testing.T) {
	sessions, session := newSessions(t)
	handler := NewConnectionHandler(&fakeSnowflakeService{}, sessions, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/connection", nil)
	req.Header.Set(SessionIDHeader, session.ID)
	rec := httptest.NewRecorder()

	handler.Status(rec, req)

	var resp ConnectionStatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Connected || resp.Details == nil {
		t.Errorf("expected connected status with details, got %+v", resp)
	}
}

func TestConnectionHandler_Status_NoSession(t *testing.T) {
	sessions, _ := newSessions(t)
	handler := NewConnectionHandler(&fakeSnowflakeService{}, sessions, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/connection", nil)
	rec := httptest.NewRecorder()

	handler.Status(rec, req)

	// Missing session is a normal state, not an error.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var resp ConnectionStatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Connected {
		t.Error("expected disconnected status")
	}
}

func TestConnectionHandler_Test_Failure(t *testing.T) {
	sessions, session := newSessions(t)
	snowflake := &fakeSnowflakeService{testErr: apperrors.ErrSnowflakeUnavailable}
	handler := NewConnectionHandler(snowflake, sessions, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/connection/test", nil)
	req.Header.Set(SessionIDHeader, session.ID)
	rec := httptest.NewRecorder()

	handler.Test(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected status %d, got %d", http.StatusBadGateway, rec.Code)
	}
}

func TestConnectionHandler_Disconnect(t *testing.T) {
	sessions, session := newSessions(t)
	handler := NewConnectionHandler(&fakeSnowflakeService{}, sessions, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/disconnect", nil)
	req.Header.Set(SessionIDHeader, session.ID)
	rec := httptest.NewRecorder()

	handler.Disconnect(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if _, err := sessions.Get(session.ID); err == nil {
		t.Error("expected session to be gone after disconnect")
	}
}
