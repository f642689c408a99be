package renderer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	items    []string
	appends  int
	clears   int
	removals int
}

func (f *fakeQueue) QueueList(ctx context.Context) ([]string, error) {
	return append([]string(nil), f.items...), nil
}

func (f *fakeQueue) QueueAppend(ctx context.Context, uris []string) error {
	f.appends++
	f.items = append(f.items, uris...)
	return nil
}

func (f *fakeQueue) QueueClear(ctx context.Context) error {
	f.clears++
	f.items = nil
	return nil
}

// fakeQueueWithRemoval additionally implements QueueRemover.
type fakeQueueWithRemoval struct {
	fakeQueue
}

func (f *fakeQueueWithRemoval) QueueRemoveAt(ctx context.Context, index int) error {
	f.removals++
	f.items = append(f.items[:index], f.items[index+1:]...)
	return nil
}

func TestSyncQueue_AppendsOnlyWhenCurrentIsPrefix(t *testing.T) {
	q := &fakeQueue{items: []string{"a", "b"}}
	err := SyncQueue(context.Background(), q, []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, q.items)
	assert.Equal(t, 1, q.appends)
	assert.Equal(t, 0, q.clears)
}

func TestSyncQueue_NoopWhenAlreadyInSync(t *testing.T) {
	q := &fakeQueue{items: []string{"a", "b"}}
	err := SyncQueue(context.Background(), q, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 0, q.appends)
	assert.Equal(t, 0, q.clears)
}

func TestSyncQueue_FallsBackToClearAppendWithoutRemover(t *testing.T) {
	q := &fakeQueue{items: []string{"a", "x", "y"}}
	err := SyncQueue(context.Background(), q, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, q.items)
	assert.Equal(t, 1, q.clears)
	assert.Equal(t, 1, q.appends)
}

func TestSyncQueue_UsesRemoverToTrimDivergingTail(t *testing.T) {
	q := &fakeQueueWithRemoval{fakeQueue{items: []string{"a", "x", "y"}}}
	err := SyncQueue(context.Background(), q, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, q.items)
	assert.Equal(t, 0, q.clears)
	assert.Equal(t, 2, q.removals)
	assert.Equal(t, 1, q.appends)
}

func TestSyncQueue_ClearsWhenDesiredIsEmpty(t *testing.T) {
	q := &fakeQueue{items: []string{"a", "b"}}
	err := SyncQueue(context.Background(), q, nil)
	require.NoError(t, err)
	assert.Empty(t, q.items)
	assert.Equal(t, 1, q.clears)
	assert.Equal(t, 0, q.appends)
}
