// Package renderer defines the capability-interface contract every
// renderer backend implements: a playback target somewhere on the home
// network (a UPnP/OpenHome device, a Chromecast, an MPD server, an MPRIS
// session, or a bespoke Arylic amplifier) that this hub can push audio URIs
// to and steer.
//
// No single wire protocol offers the same capability set, so rather than one
// fat interface every backend fakes its way through, a Renderer exposes only
// TransportControl as mandatory and advertises the rest (volume, position
// reporting, native queueing) through optional interfaces a caller type-
// asserts for. A backend that genuinely cannot support an operation — seek on
// a device with no scrub bar, volume on a source with no amplifier path —
// returns ErrOperationNotSupported instead of faking success.
package renderer

import (
	"context"
	"errors"
	"time"
)

// ErrOperationNotSupported is returned by a capability method when the
// underlying protocol or device has no way to perform it.
var ErrOperationNotSupported = errors.New("renderer: operation not supported by this backend")

// PlaybackState mirrors the transport states UPnP AVTransport, OpenHome, and
// MPD all converge on, modulo naming.
type PlaybackState int

const (
	StateUnknown PlaybackState = iota
	StateStopped
	StatePlaying
	StatePaused
	StateTransitioning
	StateNoMedia
)

func (s PlaybackState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateTransitioning:
		return "transitioning"
	case StateNoMedia:
		return "no_media"
	default:
		return "unknown"
	}
}

// RendererInfo identifies a renderer and advertises which optional
// capabilities it supports, so a control surface can decide which buttons to
// draw without probing every method and catching ErrOperationNotSupported.
type RendererInfo struct {
	ID           string
	Name         string
	Kind         string // "upnp", "openhome", "arylic", "chromecast", "mpd", "mpris"
	SupportsVolume   bool
	SupportsPosition bool
	SupportsQueue    bool
}

// TransportControl is the mandatory capability every Renderer implements:
// push a URI and play it, or stop/pause the current one.
type TransportControl interface {
	Info() RendererInfo
	// PlayURI starts playing uri immediately, replacing whatever is current.
	PlayURI(ctx context.Context, uri string, metadata TrackMetadata) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	// SeekRelative moves playback position by delta (negative rewinds).
	// Returns ErrOperationNotSupported on backends with no seek capability.
	SeekRelative(ctx context.Context, delta time.Duration) error
	// SeekAbsolute moves playback to an absolute position in the current
	// track. Returns ErrOperationNotSupported on backends with no seek
	// capability.
	SeekAbsolute(ctx context.Context, pos time.Duration) error
}

// TrackMetadata is the minimal now-playing metadata PlayURI forwards to
// backends that can display or broadcast it (OpenHome DIDL-Lite, Chromecast
// media metadata). The other backends (UPnP AVTransport, Arylic, MPD, MPRIS
// acting purely as a client) ignore it.
type TrackMetadata struct {
	Title    string
	Artist   string
	Album    string
	CoverURL string
}

// VolumeControl is implemented by renderers with an addressable amplifier
// stage. Volume is 0-100.
type VolumeControl interface {
	GetVolume(ctx context.Context) (int, error)
	SetVolume(ctx context.Context, level int) error
	GetMute(ctx context.Context) (bool, error)
	SetMute(ctx context.Context, muted bool) error
}

// PlaybackStatus reports the renderer's current transport state.
type PlaybackStatus interface {
	Status(ctx context.Context) (PlaybackState, error)
}

// PlaybackPosition reports playback progress through the current track.
// Backends with no position reporting (OpenHome devices without a Time
// service, bare MPRIS
// clients of players that omit Position) return ErrOperationNotSupported.
type PlaybackPosition interface {
	Position(ctx context.Context) (elapsed, total time.Duration, err error)
}

// QueueBackend is implemented by renderers with a native multi-item queue
// (OpenHome's Playlist service, MPD's playlist, Chromecast's media queue).
// UPnP AVTransport, Arylic, and MPRIS have no generic queue primitive and do
// not implement this.
type QueueBackend interface {
	QueueList(ctx context.Context) ([]string, error)
	QueueAppend(ctx context.Context, uris []string) error
	QueueClear(ctx context.Context) error
}

// QueueRemover is an optional refinement of QueueBackend for renderers whose
// protocol can remove a single queue entry by position without clearing the
// whole queue (OpenHome DeleteId, MPD delete). SyncQueue uses this when
// available to avoid a full clear+reload on small diffs.
type QueueRemover interface {
	QueueRemoveAt(ctx context.Context, index int) error
}

// Renderer is the full set of methods a backend may implement. Callers
// should only depend on TransportControl plus whichever optional interfaces
// RendererInfo advertises as supported.
type Renderer interface {
	TransportControl
}
