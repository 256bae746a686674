package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/TransportMedAgent/internal/models"
)

// InMemoryStore keeps sessions in a map. Used in tests and single-process
// development runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	ttl      time.Duration
}

type memoryEntry struct {
	session   *models.ConversationSession
	expiresAt time.Time
}

// NewInMemoryStore creates an empty in-memory session store.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	cfg := applyOptions(opts)
	return &InMemoryStore{
		sessions: make(map[string]memoryEntry),
		ttl:      cfg.TTL,
	}
}

// GetSession returns a deep copy of the stored session, or (nil, nil) when
// the session does not exist or has expired.
func (s *InMemoryStore) GetSession(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		slog.Debug("InMemoryStore.GetSession: miss", "session_id", sessionID, "existed", ok)
		return nil, nil
	}
	return entry.session.Clone(), nil
}

// SaveSession stores a deep copy of the session and refreshes its TTL.
func (s *InMemoryStore) SaveSession(ctx context.Context, session *models.ConversationSession) error {
	s.mu.Lock()
	s.sessions[session.SessionID] = memoryEntry{
		session:   session.Clone(),
		expiresAt: time.Now().Add(s.ttl),
	}
	s.mu.Unlock()
	slog.Debug("InMemoryStore.SaveSession: saved", "session_id", session.SessionID, "phase", session.Phase)
	return nil
}

// DeleteSession removes a session; deleting a missing session is a no-op.
func (s *InMemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	slog.Debug("InMemoryStore.DeleteSession: deleted", "session_id", sessionID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
