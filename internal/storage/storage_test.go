package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testDatabase connects to VISION_TEST_DATABASE_URL or skips
func testDatabase(t *testing.T) context.Context {
	t.Helper()
	url := os.Getenv("VISION_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("VISION_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := GetDatabase(ctx, url)
	require.NoError(t, err)
	require.NoError(t, DropAllTables(ctx, db))
	require.NoError(t, InitializeAllTables(ctx, db))
	t.Cleanup(func() {
		_ = DropAllTables(ctx, db)
		_ = CloseDatabase()
	})
	return ctx
}

func TestGetDatabaseRequiresURL(t *testing.T) {
	_, err := GetDatabase(context.Background(), "")
	require.Error(t, err)
}

func TestSessionKeyStore(t *testing.T) {
	ctx := testDatabase(t)
	db, err := GetDatabase(ctx, os.Getenv("VISION_TEST_DATABASE_URL"))
	require.NoError(t, err)
	store := NewSessionKeyStore(db)

	_, ok, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "alice", "key-1"))
	require.NoError(t, store.Set(ctx, "alice", "key-2"))
	require.NoError(t, store.Set(ctx, "bob", "key-3"))

	key, ok, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "key-2", key)

	require.NoError(t, store.Delete(ctx, "alice"))
	_, ok, err = store.Get(ctx, "alice")
	require.NoError(t, err)
	require.False(t, ok)

	n, err := store.PurgeOlderThan(ctx, -time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestSessionKeyReadKeepsKeyAlive(t *testing.T) {
	ctx := testDatabase(t)
	db, err := GetDatabase(ctx, os.Getenv("VISION_TEST_DATABASE_URL"))
	require.NoError(t, err)
	store := NewSessionKeyStore(db)

	require.NoError(t, store.Set(ctx, "alice", "key-1"))
	stale := time.Now().Add(-48 * time.Hour).Unix()
	_, err = db.ExecContext(ctx, `UPDATE session_api_keys SET updated_at = $1`, stale)
	require.NoError(t, err)

	key, ok, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "key-1", key)

	n, err := store.PurgeOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestPreferencesStore(t *testing.T) {
	ctx := testDatabase(t)
	db, err := GetDatabase(ctx, os.Getenv("VISION_TEST_DATABASE_URL"))
	require.NoError(t, err)

	prefs, err := NewPreferencesStore(ctx, db)
	require.NoError(t, err)
	defer prefs.Close()

	_, ok := prefs.Get(ctx, "alice")
	require.False(t, ok)

	require.NoError(t, prefs.Set(ctx, "alice", LanguagePreferences{OCRLanguage: "Tamil", TTSLanguage: "Hindi"}))
	got, ok := prefs.Get(ctx, "alice")
	require.True(t, ok)
	require.Equal(t, "Tamil", got.OCRLanguage)
	require.Equal(t, "Hindi", got.TTSLanguage)
	require.NotZero(t, got.LastUpdated)
}
