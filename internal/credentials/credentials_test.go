package credentials

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"VisionAssist/internal/config"
)

func newFileStore(t *testing.T, contents string) *FileStore {
	t.Helper()
	t.Setenv(config.APIKeyEnvName, "")
	require.NoError(t, os.Unsetenv(config.APIKeyEnvName))

	path := filepath.Join(t.TempDir(), ".env")
	if contents != "" {
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	}
	store, err := NewFileStore(path)
	require.NoError(t, err)
	return store
}

func TestFileStoreLoad(t *testing.T) {
	store := newFileStore(t, "GOOGLE_API_KEY=abc123\n")
	key, ok := store.APIKey(context.Background(), "")
	require.True(t, ok)
	require.Equal(t, "abc123", key)
}

func TestFileStoreMissingFile(t *testing.T) {
	store := newFileStore(t, "")
	_, ok := store.APIKey(context.Background(), "")
	require.False(t, ok)
}

func TestFileStoreUpdateOverwritesFile(t *testing.T) {
	store := newFileStore(t, "GOOGLE_API_KEY=old\nOTHER=value\n")

	require.NoError(t, store.Update(context.Background(), "", "  new-key \n"))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	require.Equal(t, "GOOGLE_API_KEY=new-key\n", string(data))

	key, ok := store.APIKey(context.Background(), "")
	require.True(t, ok)
	require.Equal(t, "new-key", key)
	require.Equal(t, "new-key", os.Getenv(config.APIKeyEnvName))
}

func TestFileStoreRejectsBlankKey(t *testing.T) {
	store := newFileStore(t, "GOOGLE_API_KEY=keep\n")

	for _, blank := range []string{"", "   ", "\t\n"} {
		require.ErrorIs(t, store.Update(context.Background(), "", blank), ErrEmptyKey)
	}

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	require.Equal(t, "GOOGLE_API_KEY=keep\n", string(data))
	key, _ := store.APIKey(context.Background(), "")
	require.Equal(t, "keep", key)
}

func TestFileStoreWriteFailureKeepsKey(t *testing.T) {
	store := newFileStore(t, "GOOGLE_API_KEY=keep\n")
	store.path = filepath.Join(t.TempDir(), "missing-dir", ".env")

	err := store.Update(context.Background(), "", "new")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrEmptyKey)

	key, _ := store.APIKey(context.Background(), "")
	require.Equal(t, "keep", key)
}

func TestFileStoreWatch(t *testing.T) {
	store := newFileStore(t, "GOOGLE_API_KEY=first\n")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(store.Path(), []byte("GOOGLE_API_KEY=second\n"), 0o600)
		key, _ := store.APIKey(context.Background(), "")
		return key == "second"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestSessionStoreIsolation(t *testing.T) {
	operator := newFileStore(t, "GOOGLE_API_KEY=operator\n")
	store := NewSessionStore(nil, operator)
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, "alice", "alice-key"))
	require.ErrorIs(t, store.Update(ctx, "bob", " "), ErrEmptyKey)

	key, ok := store.APIKey(ctx, "alice")
	require.True(t, ok)
	require.Equal(t, "alice-key", key)

	key, ok = store.APIKey(ctx, "bob")
	require.True(t, ok)
	require.Equal(t, "operator", key)

	// the operator file is untouched by session updates
	data, err := os.ReadFile(operator.Path())
	require.NoError(t, err)
	require.Equal(t, "GOOGLE_API_KEY=operator\n", string(data))

	require.NoError(t, store.Forget(ctx, "alice"))
	key, _ = store.APIKey(ctx, "alice")
	require.Equal(t, "operator", key)
}

func TestSessionStoreWithoutFallback(t *testing.T) {
	store := NewSessionStore(NewMemoryBackend(), nil)
	_, ok := store.APIKey(context.Background(), "carol")
	require.False(t, ok)
}
