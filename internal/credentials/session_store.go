package credentials

import (
	"context"
	"strings"
	"sync"

	"VisionAssist/internal/logging"
)

// KeyBackend persists per-session keys. storage.SessionKeyStore implements it.
type KeyBackend interface {
	Get(ctx context.Context, sessionID string) (string, bool, error)
	Set(ctx context.Context, sessionID, key string) error
	Delete(ctx context.Context, sessionID string) error
}

// SessionStore isolates key updates per session. A session without its own
// key uses the operator key from the fallback store.
type SessionStore struct {
	backend  KeyBackend
	fallback Store
}

// NewSessionStore creates a session-scoped store. fallback may be nil.
func NewSessionStore(backend KeyBackend, fallback Store) *SessionStore {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	return &SessionStore{backend: backend, fallback: fallback}
}

// Update stores key for sessionID only
func (s *SessionStore) Update(ctx context.Context, sessionID, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	return s.backend.Set(ctx, sessionID, key)
}

// APIKey returns the session key, or the fallback key when the session has none
func (s *SessionStore) APIKey(ctx context.Context, sessionID string) (string, bool) {
	key, ok, err := s.backend.Get(ctx, sessionID)
	if err != nil {
		logging.Warn("Failed to look up API key for session %s: %v", sessionID, err)
	}
	if ok && key != "" {
		return key, true
	}
	if s.fallback != nil {
		return s.fallback.APIKey(ctx, sessionID)
	}
	return "", false
}

// Forget drops the key of an ended session
func (s *SessionStore) Forget(ctx context.Context, sessionID string) error {
	return s.backend.Delete(ctx, sessionID)
}

// MemoryBackend keeps session keys in process memory
type MemoryBackend struct {
	mu   sync.RWMutex
	keys map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{keys: make(map[string]string)}
}

func (m *MemoryBackend) Get(_ context.Context, sessionID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.keys[sessionID]
	return key, ok, nil
}

func (m *MemoryBackend) Set(_ context.Context, sessionID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[sessionID] = key
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, sessionID)
	return nil
}
