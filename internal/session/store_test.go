package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_LoadEmpty(t *testing.T) {
	store := newTestStore(t)

	tok, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestSQLiteStore_SaveOverwriteClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "first"))
	require.NoError(t, store.Save(ctx, "second"))

	tok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", tok)

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))
	tok, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	ctx := context.Background()

	store, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "tok"))
	require.NoError(t, store.Close())

	store, err = OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	tok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
}
