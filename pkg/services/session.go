package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gregmartell-atlan/mdlh-engine/pkg/apperrors"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/config"
	"github.com/gregmartell-atlan/mdlh-engine/pkg/models"
)

// Session is one authenticated Snowflake connection plus its in-memory
// query results. Sessions are addressed by the X-Session-ID header.
type Session struct {
	ID           string
	Conn         Connection
	Details      ConnectionDetails
	CreatedAt    time.Time
	LastAccessed time.Time

	mu      sync.RWMutex
	results map[string]*storedResult
}

// storedResult is the fully materialized outcome of one query, kept for
// paginated retrieval until the session expires.
type storedResult struct {
	QueryID      string
	SQL          string
	Status       models.QueryStatus
	Columns      []models.ColumnMeta
	Rows         [][]any
	ErrorMessage string
	StartedAt    time.Time
	CompletedAt  *time.Time
	DurationMs   int64
	FromCache    bool
	cancel       func()
}

func (s *Session) storeResult(r *storedResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[r.QueryID] = r
}

func (s *Session) result(queryID string) (*storedResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[queryID]
	return r, ok
}

// SessionStats is a point-in-time view of the session store.
type SessionStats struct {
	ActiveSessions int `json:"active_sessions"`
	StoredResults  int `json:"stored_results"`
}

// SessionManager tracks live sessions and evicts idle ones.
type SessionManager interface {
	// Create registers a new session around an established connection.
	Create(conn Connection, details ConnectionDetails) *Session

	// Get returns the session and refreshes its idle timer.
	// Returns ErrSessionExpired for unknown or evicted IDs.
	Get(id string) (*Session, error)

	// Delete closes the session's connection and removes it.
	Delete(id string) error

	// Stats reports store counters.
	Stats() SessionStats

	// Close stops the janitor and closes every remaining session.
	Close()
}

type sessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	idleTTL time.Duration
	now     func() time.Time
	done    chan struct{}
	logger  *zap.Logger
}

// NewSessionManager creates a SessionManager and starts its sweep loop.
func NewSessionManager(cfg config.SessionConfig, logger *zap.Logger) SessionManager {
	m := &sessionManager{
		sessions: make(map[string]*Session),
		idleTTL:  time.Duration(cfg.IdleTTLMinutes) * time.Minute,
		now:      time.Now,
		done:     make(chan struct{}),
		logger:   logger.Named("session-manager"),
	}

	sweep := time.Duration(cfg.SweepIntervalMinutes) * time.Minute
	if sweep > 0 {
		go m.janitor(sweep)
	}
	return m
}

var _ SessionManager = (*sessionManager)(nil)

func (m *sessionManager) Create(conn Connection, details ConnectionDetails) *Session {
	session := &Session{
		ID:           uuid.NewString(),
		Conn:         conn,
		Details:      details,
		CreatedAt:    m.now().UTC(),
		LastAccessed: m.now().UTC(),
		results:      make(map[string]*storedResult),
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	m.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("account", details.Account),
		zap.String("user", details.User))
	return session
}

func (m *sessionManager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.ErrSessionExpired
	}
	if m.now().Sub(session.LastAccessed) > m.idleTTL {
		m.evictLocked(session, "idle")
		return nil, apperrors.ErrSessionExpired
	}
	session.LastAccessed = m.now().UTC()
	return session, nil
}

func (m *sessionManager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return apperrors.ErrSessionExpired
	}
	m.evictLocked(session, "disconnect")
	return nil
}

func (m *sessionManager) Stats() SessionStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := SessionStats{ActiveSessions: len(m.sessions)}
	for _, session := range m.sessions {
		session.mu.RLock()
		stats.StoredResults += len(session.results)
		session.mu.RUnlock()
	}
	return stats
}

func (m *sessionManager) Close() {
	close(m.done)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, session := range m.sessions {
		m.evictLocked(session, "shutdown")
	}
}

// evictLocked removes a session; callers hold m.mu.
func (m *sessionManager) evictLocked(session *Session, reason string) {
	delete(m.sessions, session.ID)
	if session.Conn != nil {
		if err := session.Conn.Close(); err != nil {
			m.logger.Warn("closing session connection failed",
				zap.String("session_id", session.ID),
				zap.Error(err))
		}
	}
	m.logger.Info("session evicted",
		zap.String("session_id", session.ID),
		zap.String("reason", reason))
}

func (m *sessionManager) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *sessionManager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.idleTTL)
	for _, session := range m.sessions {
		if session.LastAccessed.Before(cutoff) {
			m.evictLocked(session, "idle")
		}
	}
}
