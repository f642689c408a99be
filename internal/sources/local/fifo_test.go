package local

import (
	"context"
	"fmt"
	"testing"

	"github.com/arung-agamani/denpa-hub/internal/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotationFIFO_AppendTrackAddsToTail(t *testing.T) {
	schedule := newTestSchedule(t)
	rotation, err := schedule.ActiveRotation()
	require.NoError(t, err)
	require.Equal(t, 1, rotation.Count())

	second := &Track{ID: schedule.Library.NextID(), Title: "second song", FilePath: "/music/second.flac", Checksum: "cs2"}
	schedule.Library.Import(second)

	fifo := NewRotationFIFO(rotation, schedule.Library)
	item := sources.Item{ID: fmt.Sprintf("local:track:%d", second.ID)}
	require.NoError(t, fifo.AppendTrack(context.Background(), item))

	assert.Equal(t, 2, rotation.Count())
}

func TestRotationFIFO_AppendTrackRejectsUnknownID(t *testing.T) {
	schedule := newTestSchedule(t)
	rotation, err := schedule.ActiveRotation()
	require.NoError(t, err)

	fifo := NewRotationFIFO(rotation, schedule.Library)
	err = fifo.AppendTrack(context.Background(), sources.Item{ID: "local:track:99999"})
	assert.ErrorIs(t, err, sources.ErrNotFound)
}

func TestRotationFIFO_RemoveOldestConsumesQueue(t *testing.T) {
	schedule := newTestSchedule(t)
	rotation, err := schedule.ActiveRotation()
	require.NoError(t, err)

	fifo := NewRotationFIFO(rotation, schedule.Library)
	item, err := fifo.RemoveOldest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "morning song", item.Title)
	assert.Equal(t, 0, rotation.Count())

	_, err = fifo.RemoveOldest(context.Background())
	assert.ErrorIs(t, err, sources.ErrNotFound)
}

func TestSource_FIFOQueueUsesActiveRotation(t *testing.T) {
	schedule := newTestSchedule(t)
	src := NewSource("local", "/music", schedule, nil)

	assert.True(t, src.SupportsFIFO())
	queue, err := src.FIFOQueue()
	require.NoError(t, err)
	require.NotNil(t, queue)
}
