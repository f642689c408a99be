package lastfm

import (
	"log/slog"
	"time"

	"github.com/arung-agamani/denpa-hub/internal/playlist"
)

// ScrobbleHook adapts a Client to the shape a channel's history recorder can
// call directly: a finished PlaybackItem in, a best-effort scrobble out.
// Failures are logged, never propagated — a scrobble is an optional,
// externally-visible side effect, not part of the playback path's contract.
type ScrobbleHook struct {
	client *Client
}

// NewScrobbleHook wraps client for use as a fire-and-forget history callback.
func NewScrobbleHook(client *Client) *ScrobbleHook {
	return &ScrobbleHook{client: client}
}

// OnTrackFinished scrobbles item as having just finished playing.
func (h *ScrobbleHook) OnTrackFinished(item playlist.PlaybackItem, playedAt time.Time) {
	if h.client == nil || !h.client.IsAuthenticated() {
		return
	}

	track := ScrobbleTrack{
		Artist:    item.Artist,
		Track:     item.Title,
		Album:     item.Album,
		Duration:  time.Duration(item.DurationMs) * time.Millisecond,
		Timestamp: playedAt,
	}
	if err := h.client.Scrobble(track); err != nil {
		slog.Warn("Last.fm scrobble failed", "title", item.Title, "artist", item.Artist, "error", err)
	}
}

// OnTrackStarted sends a now-playing update for item.
func (h *ScrobbleHook) OnTrackStarted(item playlist.PlaybackItem) {
	if h.client == nil || !h.client.IsAuthenticated() {
		return
	}

	track := ScrobbleTrack{
		Artist:   item.Artist,
		Track:    item.Title,
		Album:    item.Album,
		Duration: time.Duration(item.DurationMs) * time.Millisecond,
	}
	if err := h.client.UpdateNowPlaying(track); err != nil {
		slog.Warn("Last.fm now-playing update failed", "title", item.Title, "artist", item.Artist, "error", err)
	}
}
