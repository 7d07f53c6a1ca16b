// Package credentials holds the API key used for scene description. The
// operator key lives in a .env file (GOOGLE_API_KEY=<value>); when
// credentials are session scoped, each session may override it with its own
// key kept in memory or in Postgres.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"

	"VisionAssist/internal/config"
	"VisionAssist/internal/logging"
)

// ErrEmptyKey is returned for a blank or whitespace-only key. Nothing is written.
var ErrEmptyKey = errors.New("please enter a valid API key")

// Store resolves and updates the API key of a session
type Store interface {
	Update(ctx context.Context, sessionID, key string) error
	APIKey(ctx context.Context, sessionID string) (string, bool)
}

// FileStore keeps one key shared by every session in a .env file
type FileStore struct {
	path string
	mu   sync.RWMutex
	key  string
}

// NewFileStore loads the key from path. Values already present in the
// process environment take precedence at startup, as with godotenv.Load.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}

	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load credentials file: %w", err)
	}
	s.key = strings.TrimSpace(os.Getenv(config.APIKeyEnvName))

	if s.key == "" {
		logging.Warn("No %s found in %s or the environment; scene description needs a key", config.APIKeyEnvName, path)
	}
	return s, nil
}

// Path returns the credentials file path
func (s *FileStore) Path() string {
	return s.path
}

// APIKey returns the currently loaded key. sessionID is ignored.
func (s *FileStore) APIKey(_ context.Context, _ string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key, s.key != ""
}

// Update overwrites the credentials file with a single GOOGLE_API_KEY line
// and reloads it into the process environment. On failure the file and the
// loaded key are left unchanged.
func (s *FileStore) Update(_ context.Context, _ string, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeEnvFile(s.path, key); err != nil {
		return err
	}
	if err := godotenv.Overload(s.path); err != nil {
		return fmt.Errorf("failed to reload credentials file: %w", err)
	}
	s.key = key
	logging.Info("API key updated in %s", s.path)
	return nil
}

// writeEnvFile replaces path atomically so a failed write never leaves a
// truncated file behind
func writeEnvFile(path, key string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".env-*")
	if err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := fmt.Fprintf(tmp, "%s=%s\n", config.APIKeyEnvName, key); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}

// Reload re-reads the file, overriding the environment. A file without a
// key leaves the loaded key unchanged.
func (s *FileStore) Reload() error {
	values, err := godotenv.Read(s.path)
	if err != nil {
		return fmt.Errorf("failed to read credentials file: %w", err)
	}
	key := strings.TrimSpace(values[config.APIKeyEnvName])
	if key == "" {
		logging.Warn("%s has no %s, keeping the current key", s.path, config.APIKeyEnvName)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Setenv(config.APIKeyEnvName, key); err != nil {
		return fmt.Errorf("failed to export %s: %w", config.APIKeyEnvName, err)
	}
	if key != s.key {
		logging.Info("API key reloaded from %s", s.path)
	}
	s.key = key
	return nil
}

// Watch reloads the key whenever the file is written by another process
// until ctx is done. The directory is watched so that editors replacing
// the file by rename are noticed too.
func (s *FileStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create credentials watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logging.Error("Could not close credentials watcher: %v", err)
		}
	}()

	target, err := filepath.Abs(s.path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("could not watch %s: %w", filepath.Dir(target), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name, _ := filepath.Abs(event.Name)
			if name != target || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.Reload(); err != nil {
				logging.Error("Failed to reload credentials: %v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("Credentials watcher error: %v", err)
		}
	}
}
