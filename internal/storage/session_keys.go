package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SessionKeyStore persists one API key per session
type SessionKeyStore struct {
	db *sql.DB
}

// NewSessionKeyStore creates a key store on the shared connection
func NewSessionKeyStore(db *sql.DB) *SessionKeyStore {
	return &SessionKeyStore{db: db}
}

// Get returns the key stored for sessionID and marks it as used
func (s *SessionKeyStore) Get(ctx context.Context, sessionID string) (string, bool, error) {
	var key string
	err := s.db.QueryRowContext(ctx, `
		UPDATE session_api_keys SET updated_at = $2
		WHERE session_id = $1
		RETURNING api_key
	`, sessionID, time.Now().Unix()).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query session key: %w", err)
	}
	return key, true, nil
}

// Set stores key for sessionID, replacing any previous key
func (s *SessionKeyStore) Set(ctx context.Context, sessionID, key string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_api_keys (session_id, api_key, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO UPDATE SET
			api_key = EXCLUDED.api_key,
			updated_at = EXCLUDED.updated_at
	`, sessionID, key, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save session key: %w", err)
	}
	return nil
}

// Delete removes the key of sessionID
func (s *SessionKeyStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_api_keys WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to delete session key: %w", err)
	}
	return nil
}

// PurgeOlderThan deletes keys neither read nor written within maxAge and returns how many were removed
func (s *SessionKeyStore) PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM session_api_keys WHERE updated_at < $1`, time.Now().Add(-maxAge).Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge session keys: %w", err)
	}
	return res.RowsAffected()
}
