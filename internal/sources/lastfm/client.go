// Package lastfm implements an optional scrobble hook: when a channel
// finishes playing a track, the channel manager can notify a Client so the
// play shows up in the listener's Last.fm history.
package lastfm

import (
	"errors"
	"fmt"
	"time"

	"github.com/shkh/lastfm-go/lastfm"
)

// ErrNotAuthenticated is returned when a scrobble is attempted before a
// session key has been set.
var ErrNotAuthenticated = errors.New("lastfm: not authenticated")

// ScrobbleTrack is the subset of PlaybackItem fields Last.fm's API needs.
type ScrobbleTrack struct {
	Artist    string
	Track     string
	Album     string
	Duration  time.Duration
	Timestamp time.Time
}

// Client wraps the Last.fm API for now-playing updates and scrobbles.
type Client struct {
	api        *lastfm.Api
	apiKey     string
	sessionKey string
}

// New creates a Client with the given API credentials. It does nothing
// network-visible until SetSessionKey is called with a previously obtained
// session key (the desktop auth flow is an external collaborator's concern;
// this hook only needs to submit scrobbles once authenticated).
func New(apiKey, apiSecret string) *Client {
	return &Client{api: lastfm.New(apiKey, apiSecret), apiKey: apiKey}
}

// SetSessionKey installs a previously obtained session key.
func (c *Client) SetSessionKey(key string) {
	c.sessionKey = key
	c.api.SetSession(key)
}

// IsAuthenticated reports whether a session key has been set.
func (c *Client) IsAuthenticated() bool { return c.sessionKey != "" }

// UpdateNowPlaying notifies Last.fm that track is currently playing.
func (c *Client) UpdateNowPlaying(track ScrobbleTrack) error {
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}

	params := lastfm.P{"artist": track.Artist, "track": track.Track}
	if track.Album != "" {
		params["album"] = track.Album
	}
	if track.Duration > 0 {
		params["duration"] = int(track.Duration.Seconds())
	}

	if _, err := c.api.Track.UpdateNowPlaying(params); err != nil {
		return fmt.Errorf("lastfm: update now playing: %w", err)
	}
	return nil
}

// Scrobble submits a finished play to Last.fm.
func (c *Client) Scrobble(track ScrobbleTrack) error {
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}

	params := lastfm.P{
		"artist":    track.Artist,
		"track":     track.Track,
		"timestamp": track.Timestamp.Unix(),
	}
	if track.Album != "" {
		params["album"] = track.Album
	}
	if track.Duration > 0 {
		params["duration"] = int(track.Duration.Seconds())
	}

	if _, err := c.api.Track.Scrobble(params); err != nil {
		return fmt.Errorf("lastfm: scrobble: %w", err)
	}
	return nil
}
