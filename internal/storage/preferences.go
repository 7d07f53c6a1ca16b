package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"VisionAssist/internal/logging"
)

// LanguagePreferences are the display names of the selected OCR and TTS languages
type LanguagePreferences struct {
	OCRLanguage string
	TTSLanguage string
	LastUpdated int64
}

// PreferencesStore manages per-session language preferences with PostgreSQL persistence
type PreferencesStore struct {
	db      *sql.DB
	mu      sync.RWMutex
	getStmt *sql.Stmt
	setStmt *sql.Stmt
}

// NewPreferencesStore prepares the statements on the shared connection
func NewPreferencesStore(ctx context.Context, db *sql.DB) (*PreferencesStore, error) {
	getStmt, err := db.PrepareContext(ctx, `
		SELECT ocr_language, tts_language, last_updated
		FROM session_preferences WHERE session_id = $1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare get preferences statement: %w", err)
	}
	setStmt, err := db.PrepareContext(ctx, `
		INSERT INTO session_preferences (session_id, ocr_language, tts_language, last_updated)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT(session_id) DO UPDATE SET
			ocr_language = EXCLUDED.ocr_language,
			tts_language = EXCLUDED.tts_language,
			last_updated = EXCLUDED.last_updated
	`)
	if err != nil {
		_ = getStmt.Close()
		return nil, fmt.Errorf("failed to prepare set preferences statement: %w", err)
	}
	return &PreferencesStore{db: db, getStmt: getStmt, setStmt: setStmt}, nil
}

// Get returns the stored preferences of a session
func (p *PreferencesStore) Get(ctx context.Context, sessionID string) (LanguagePreferences, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var prefs LanguagePreferences
	err := p.getStmt.QueryRowContext(ctx, sessionID).Scan(&prefs.OCRLanguage, &prefs.TTSLanguage, &prefs.LastUpdated)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logging.Warn("Failed to query session preferences: %v", err)
		}
		return LanguagePreferences{}, false
	}
	return prefs, true
}

// Set stores the preferences of a session
func (p *PreferencesStore) Set(ctx context.Context, sessionID string, prefs LanguagePreferences) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.setStmt.ExecContext(ctx, sessionID, prefs.OCRLanguage, prefs.TTSLanguage, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to save session preferences: %w", err)
	}
	return nil
}

// Close releases the prepared statements
func (p *PreferencesStore) Close() error {
	return errors.Join(p.getStmt.Close(), p.setStmt.Close())
}
