package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/arung-agamani/denpa-hub/internal/cache"
	"github.com/arung-agamani/denpa-hub/internal/channel"
)

// TrackSource adapts a Schedule into a channel.TrackSource, pulling one
// library track at a time from whichever rotation is currently active and
// caching its file payload under a stable key so repeat plays reuse the
// cached payload instead of copying the file again.
type TrackSource struct {
	schedule *Schedule
	audio    *cache.Cache
}

// NewTrackSource builds a TrackSource over schedule, caching opened file
// payloads into audio.
func NewTrackSource(schedule *Schedule, audio *cache.Cache) *TrackSource {
	return &TrackSource{schedule: schedule, audio: audio}
}

// NextBlock advances the schedule's active rotation by one track and returns
// it as a channel.Block. Each Open call reopens the file and hashes its
// first 512 bytes; a file already in the cache is not copied again.
func (t *TrackSource) NextBlock(ctx context.Context) (channel.Block, error) {
	track, _, err := t.schedule.Next()
	if err != nil {
		return channel.Block{}, fmt.Errorf("local track source: %w", err)
	}

	durationMs := int64(track.Duration) * 1000
	trackCopy := track
	return channel.Block{
		Title:      trackCopy.Title,
		Artist:     trackCopy.Artist,
		Album:      trackCopy.Album,
		DurationMs: durationMs,
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			return t.openTrack(ctx, trackCopy)
		},
	}, nil
}

func (t *TrackSource) openTrack(ctx context.Context, track *Track) (io.ReadCloser, error) {
	ext := strings.ToLower(filepath.Ext(track.FilePath))
	if ext == "" {
		ext = "." + track.Format
	}

	f, err := os.Open(track.FilePath)
	if err != nil {
		return nil, fmt.Errorf("local track source: open %s: %w", track.FilePath, err)
	}
	defer f.Close()

	// AddFromReader hashes its first 512 bytes for the cache key and dedupes
	// against any prior entry, so replaying the same file repeatedly does not
	// grow the cache.
	pk, err := t.audio.AddFromReader(ctx, f, track.FilePath, "library", ext)
	if err != nil {
		return nil, fmt.Errorf("local track source: cache %s: %w", track.FilePath, err)
	}
	return t.audio.OpenFollowReader(pk, ext)
}
