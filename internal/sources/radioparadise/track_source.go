package radioparadise

import (
	"context"
	"fmt"
	"io"
	"path"
	"sync/atomic"

	"github.com/arung-agamani/denpa-hub/internal/cache"
	"github.com/arung-agamani/denpa-hub/internal/channel"
)

const blockExt = ".flac"

// TrackSource feeds a Channel from one Radio Paradise channel's stream of
// blocks, chaining event IDs so each fetch picks up where the last left off.
// A block is a single continuous audio file spanning several songs; the
// channel worker treats each block as one streamable unit, tagged with the
// metadata of the first song in it (Radio Paradise's blocks crossfade
// between songs, so there is no clean mid-file cut to split on without
// decoding the audio itself).
type TrackSource struct {
	client *Client
	audio  *cache.Cache
	slug   string

	nextEvent atomic.Uint64
	hasNext   atomic.Bool
}

// NewTrackSource builds a TrackSource against client, ingesting downloaded
// blocks into audio under the "radioparadise" collection.
func NewTrackSource(client *Client, audio *cache.Cache, slug string) *TrackSource {
	return &TrackSource{client: client, audio: audio, slug: slug}
}

// NextBlock fetches the next Radio Paradise block and wraps it as a
// channel.Block, chaining via end_event so playback never repeats a block.
func (t *TrackSource) NextBlock(ctx context.Context) (channel.Block, error) {
	var eventPtr *uint64
	if t.hasNext.Load() {
		ev := t.nextEvent.Load()
		eventPtr = &ev
	}

	block, err := t.client.GetBlock(ctx, eventPtr)
	if err != nil {
		return channel.Block{}, fmt.Errorf("radioparadise %s: next block: %w", t.slug, err)
	}
	t.nextEvent.Store(block.EndEvent)
	t.hasNext.Store(true)

	songs := block.SongsOrdered()
	title, artist, album, cover := "Radio Paradise", t.slug, "", ""
	if len(songs) > 0 {
		title, artist, album = songs[0].Title, songs[0].Artist, songs[0].Album
		cover = block.CoverURL(songs[0].Cover)
	}

	return channel.Block{
		Title:      title,
		Artist:     artist,
		Album:      album,
		CoverURL:   cover,
		DurationMs: block.Length,
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			return t.openBlock(ctx, block)
		},
	}, nil
}

// openBlock starts downloading the block's audio and ingests it into the
// cache, which dedupes by the pk of the first 512 bytes: a block already
// cached (e.g. by another channel sharing this Radio Paradise mix) is not
// downloaded past that head. It then hands back a reader over the cached
// payload.
func (t *TrackSource) openBlock(ctx context.Context, block *Block) (io.ReadCloser, error) {
	resp, err := t.client.http.R().SetContext(ctx).SetDoNotParseResponse(true).Get(block.URL)
	if err != nil {
		return nil, fmt.Errorf("radioparadise %s: fetch block %s: %w", t.slug, block.URL, err)
	}
	body := resp.RawBody()

	ext := path.Ext(block.URL)
	if ext == "" {
		ext = blockExt
	}

	pkCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		pk, err := t.audio.AddFromReader(ctx, body, block.URL, "radioparadise", ext)
		body.Close()
		if err != nil {
			errCh <- err
			return
		}
		pkCh <- pk
	}()

	select {
	case pk := <-pkCh:
		return t.audio.OpenFollowReader(pk, ext)
	case err := <-errCh:
		return nil, fmt.Errorf("radioparadise %s: cache block: %w", t.slug, err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
