// Package storage provides the Postgres persistence used when credentials
// are scoped per session: per-session API keys and per-session language
// preferences. All components share one connection pool.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DatabasePool manages a shared database connection pool for all storage components
type DatabasePool struct {
	db    *sql.DB
	mutex sync.RWMutex
}

var globalPool = &DatabasePool{}

// GetDatabase returns a shared database connection, creating it if necessary
func GetDatabase(ctx context.Context, dbURL string) (*sql.DB, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	globalPool.mutex.RLock()
	if globalPool.db != nil {
		defer globalPool.mutex.RUnlock()
		return globalPool.db, nil
	}
	globalPool.mutex.RUnlock()

	globalPool.mutex.Lock()
	defer globalPool.mutex.Unlock()
	if globalPool.db != nil {
		return globalPool.db, nil
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	globalPool.db = db
	return db, nil
}

// CloseDatabase closes the shared database connection
func CloseDatabase() error {
	globalPool.mutex.Lock()
	defer globalPool.mutex.Unlock()
	if globalPool.db == nil {
		return nil
	}
	err := globalPool.db.Close()
	globalPool.db = nil
	return err
}

var tableNames = []string{"session_api_keys", "session_preferences"}

// InitializeAllTables creates all required tables in a single transaction
func InitializeAllTables(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS session_api_keys (
			session_id TEXT PRIMARY KEY,
			api_key TEXT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS session_preferences (
			session_id TEXT PRIMARY KEY,
			ocr_language TEXT NOT NULL,
			tts_language TEXT NOT NULL,
			last_updated BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_api_keys_updated_at ON session_api_keys(updated_at)`,
	}

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DropAllTables drops all tables from the database
func DropAllTables(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range tableNames {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return err
		}
	}

	return tx.Commit()
}
