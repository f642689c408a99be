package radioparadise

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_BrowseListsCurrentBlockSongs(t *testing.T) {
	srv := newTestServer(t, sampleBlockJSON)
	src := NewSource(Descriptors[0])
	src.client.http.SetBaseURL(srv.URL)

	result, err := src.Browse(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "Song A", result.Items[0].Title)
	assert.Equal(t, "rp:main:song:1000:0", result.Items[0].ID)
}

func TestSource_ResolveURIReturnsBlockURLForKnownSong(t *testing.T) {
	srv := newTestServer(t, sampleBlockJSON)
	src := NewSource(Descriptors[0])
	src.client.http.SetBaseURL(srv.URL)

	uri, err := src.ResolveURI(context.Background(), "rp:main:song:1000:0")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/block1000.flac", uri)
}

func TestSource_UpdateIDBumpsOnNewBlock(t *testing.T) {
	srv := newTestServer(t, sampleBlockJSON)
	src := NewSource(Descriptors[0])
	src.client.http.SetBaseURL(srv.URL)

	_, err := src.Browse(context.Background(), "")
	require.NoError(t, err)
	first := src.UpdateID()
	assert.Equal(t, uint32(1), first, "first block seen should bump UpdateID")

	_, err = src.Browse(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, first, src.UpdateID(), "same block event should not bump UpdateID again")
}
