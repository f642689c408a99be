package cache

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "cache.db"), "audio", filepath.Join(dir, "payload"), 3)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestAddFromReader_DedupesIdenticalContent(t *testing.T) {
	c := newTestCache(t)
	content := bytes.Repeat([]byte{0x42}, 1024)

	pk1, err := c.AddFromReader(context.Background(), bytes.NewReader(content), "http://a", "", "flac")
	require.NoError(t, err)

	pk2, err := c.AddFromReader(context.Background(), bytes.NewReader(content), "http://a-again", "", "flac")
	require.NoError(t, err)

	assert.Equal(t, pk1, pk2)
}

func TestIsValidPK_RequiresSentinelOrRecentMtime(t *testing.T) {
	c := newTestCache(t)
	content := bytes.Repeat([]byte{0x01}, 600)

	pk, err := c.AddFromReader(context.Background(), bytes.NewReader(content), "http://b", "", "flac")
	require.NoError(t, err)

	assert.True(t, c.IsValidPK(pk, "flac"))
}

func TestGet_MissingPKReturnsNotFound(t *testing.T) {
	c := newTestCache(t)
	_, err := c.Get("deadbeef", "flac")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddLazy_ResolverRunsAtMostOnce(t *testing.T) {
	c := newTestCache(t)
	var calls int
	placeholder := c.AddLazy(func(ctx context.Context) (string, error) {
		calls++
		return "realpk123", nil
	})

	results := make(chan string, 4)
	for i := 0; i < 4; i++ {
		go func() {
			pk, _ := c.Resolve(context.Background(), placeholder)
			results <- pk
		}()
	}
	for i := 0; i < 4; i++ {
		assert.Equal(t, "realpk123", <-results)
	}
	assert.Equal(t, 1, calls)
}

func TestEviction_DropsOldestBeyondLimit(t *testing.T) {
	c := newTestCache(t)
	for i := 0; i < 5; i++ {
		content := bytes.Repeat([]byte{byte(i)}, 513)
		_, err := c.AddFromReader(context.Background(), bytes.NewReader(content), "http://x", "", "flac")
		require.NoError(t, err)
	}

	var count int
	err := c.db.QueryRow("SELECT COUNT(*) FROM audio").Scan(&count)
	require.NoError(t, err)
	assert.LessOrEqual(t, count, 3)
}
