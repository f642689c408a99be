package radioparadise

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBlockJSON = `{
	"event": "1000",
	"end_event": "1001",
	"url": "https://example.com/block1000.flac",
	"length": "900000",
	"image_base": "//img.radioparadise.com/",
	"song": {
		"0": {"artist": "Artist A", "title": "Song A", "album": "Album A", "year": "2020", "elapsed": "0", "duration": "200000", "cover": "covers/a.jpg", "rating": "8.5"},
		"1": {"artist": "Artist B", "title": "Song B", "album": "Album B", "year": "2021", "elapsed": "200000", "duration": "180000", "cover": "covers/b.jpg", "rating": "7"}
	}
}`

func newTestServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get_block", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_GetBlockParsesSongsAndNormalisesImageBase(t *testing.T) {
	srv := newTestServer(t, sampleBlockJSON)
	c := NewClient(0)
	c.http.SetBaseURL(srv.URL)

	block, err := c.GetBlock(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(1000), block.Event)
	assert.Equal(t, uint64(1001), block.EndEvent)
	assert.Equal(t, "https://img.radioparadise.com/", block.ImageBase)

	songs := block.SongsOrdered()
	require.Len(t, songs, 2)
	assert.Equal(t, "Song A", songs[0].Title)
	assert.Equal(t, "Song B", songs[1].Title)
	assert.Equal(t, "https://img.radioparadise.com/covers/a.jpg", block.CoverURL(songs[0].Cover))
}

func TestClient_NowPlayingFetchesCurrentBlock(t *testing.T) {
	srv := newTestServer(t, sampleBlockJSON)
	c := NewClient(1)
	c.http.SetBaseURL(srv.URL)

	block, err := c.NowPlaying(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), block.Event)
}
