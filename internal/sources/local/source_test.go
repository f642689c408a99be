package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSchedule(t *testing.T) *Schedule {
	t.Helper()
	lib := NewTrackLibrary()
	track := &Track{ID: lib.NextID(), Title: "morning song", FilePath: "/music/morning.flac", Format: ".flac", Checksum: "cs1"}
	lib.Import(track)

	schedule := NewScheduleWithLibrary(lib)
	pl := NewRotation("Morning Mix", TagMorning)
	pl.AddTrack(track)
	require.NoError(t, schedule.AssignRotation(TagMorning, pl))
	return schedule
}

func TestSource_BrowseRootListsTimeTags(t *testing.T) {
	schedule := newTestSchedule(t)
	src := NewSource("local", "/music", schedule, nil)

	result, err := src.Browse(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, result.Containers, len(ValidTimeTags))
}

func TestSource_BrowseTagAndRotationDescendsToTracks(t *testing.T) {
	schedule := newTestSchedule(t)
	src := NewSource("local", "/music", schedule, nil)

	tagResult, err := src.Browse(context.Background(), "local:tag:morning")
	require.NoError(t, err)
	require.Len(t, tagResult.Containers, 1)

	rotationID := tagResult.Containers[0].ID
	trackResult, err := src.Browse(context.Background(), rotationID)
	require.NoError(t, err)
	require.Len(t, trackResult.Items, 1)
	assert.Equal(t, "morning song", trackResult.Items[0].Title)
}

func TestSource_GetItemsPagesLibrary(t *testing.T) {
	schedule := newTestSchedule(t)
	src := NewSource("local", "/music", schedule, nil)

	items, err := src.GetItems(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "morning song", items[0].Title)

	items, err = src.GetItems(context.Background(), 5, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}
