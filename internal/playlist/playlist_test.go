package playlist

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireWriteLock_FailsFastWhenHeld(t *testing.T) {
	pl := NewPlaylist(1, "test", false)

	wh, err := pl.AcquireWriteLock()
	require.NoError(t, err)
	defer wh.Release()

	_, err = pl.AcquireWriteLock()
	assert.ErrorIs(t, err, ErrWriteLocked)
}

func TestWriteHandle_PushAndReadHandlesAreIndependent(t *testing.T) {
	pl := NewPlaylist(1, "test", false)

	wh, err := pl.AcquireWriteLock()
	require.NoError(t, err)
	require.NoError(t, wh.Push(PlaybackItem{MediaServerID: "ms", DidlID: "1", Title: "one"}))
	require.NoError(t, wh.Push(PlaybackItem{MediaServerID: "ms", DidlID: "2", Title: "two"}))
	require.NoError(t, wh.Push(PlaybackItem{MediaServerID: "ms", DidlID: "3", Title: "three"}))
	wh.Release()

	rh1 := pl.NewReadHandle()
	rh2 := pl.NewReadHandle()

	item, ok := rh1.Pop()
	require.True(t, ok)
	assert.Equal(t, "one", item.Title)

	// rh2's cursor is untouched by rh1's advance.
	item, ok = rh2.Pop()
	require.True(t, ok)
	assert.Equal(t, "one", item.Title)

	item, ok = rh1.Pop()
	require.True(t, ok)
	assert.Equal(t, "two", item.Title)
}

func TestSwapCachePK_RewritesLazyPlaceholder(t *testing.T) {
	pl := NewPlaylist(1, "test", false)
	wh, err := pl.AcquireWriteLock()
	require.NoError(t, err)
	require.NoError(t, wh.Push(PlaybackItem{MediaServerID: "ms", DidlID: "1", CachePK: "L:abc"}))
	wh.Release()

	n := pl.SwapCachePK("L:abc", "deadbeef")
	assert.Equal(t, 1, n)

	items := pl.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "deadbeef", items[0].CachePK)
	assert.False(t, items[0].IsLazy())
}

func TestManager_RestoreReloadsPersistentPlaylists(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "playlists"))
	require.NoError(t, err)
	defer store.Close()

	mgr := NewManager(store)
	pl := mgr.CreatePersistentPlaylist("favorites")
	wh, err := pl.AcquireWriteLock()
	require.NoError(t, err)
	require.NoError(t, wh.Push(PlaybackItem{MediaServerID: "ms", DidlID: "1", Title: "saved track"}))
	wh.Release()
	require.NoError(t, store.SavePlaylist(pl))

	mgr2 := NewManager(store)
	require.NoError(t, mgr2.Restore())

	restored, err := mgr2.Get(pl.ID())
	require.NoError(t, err)
	assert.Equal(t, "favorites", restored.Name())
	items := restored.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "saved track", items[0].Title)
}

func TestReaper_EvictsOnlyIdleEphemeralPlaylists(t *testing.T) {
	mgr := NewManager(nil)
	persistent := mgr.CreatePersistentPlaylist("keep-me")
	ephemeral := mgr.CreateEphemeralPlaylist("drop-me")

	reaper := NewReaper(mgr, 10*time.Millisecond, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	reaper.sweep()

	_, err := mgr.Get(persistent.ID())
	assert.NoError(t, err)

	_, err = mgr.Get(ephemeral.ID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RecordAndQueryHistory(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	item := PlaybackItem{MediaServerID: "ms", DidlID: "42", Title: "hello", CachePK: "abc123"}
	require.NoError(t, store.RecordHistory(ctx, 1, item, time.Now()))

	rows, err := store.RecentHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "hello", rows[0].Title)
}
