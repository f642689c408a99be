// Package mpd implements a renderer backend over the Music Player Daemon
// protocol via github.com/fhs/gompd/v2/mpd. MPD's playlist IS its queue, so
// unlike the UPnP/Arylic backends this one implements renderer.QueueBackend
// and renderer.QueueRemover natively instead of emulating them.
package mpd

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"

	"github.com/arung-agamani/denpa-hub/internal/renderer"
)

// Backend controls one MPD server over a single persistent command
// connection. gompd's *mpd.Client is not safe for concurrent use, so every
// call is serialized behind mu.
type Backend struct {
	mu   sync.Mutex
	conn *mpd.Client
	info renderer.RendererInfo

	lastVolume int
}

// Dial connects to an MPD server at addr ("host:port") and returns a Backend
// identified by id/name.
func Dial(ctx context.Context, id, name, network, addr string) (*Backend, error) {
	conn, err := mpd.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("mpd: dial %s: %w", addr, err)
	}
	return &Backend{
		conn: conn,
		info: renderer.RendererInfo{
			ID: id, Name: name, Kind: "mpd",
			SupportsVolume: true, SupportsPosition: true, SupportsQueue: true,
		},
		lastVolume: 100,
	}, nil
}

// Close releases the underlying MPD connection.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn.Close()
}

func (b *Backend) Info() renderer.RendererInfo { return b.info }

// PlayURI replaces MPD's current playlist with a single URI and plays it.
// MPD can stream from an http(s):// URI directly, which is how the hub feeds
// it a channel's live stream or a cached track's served URL.
func (b *Backend) PlayURI(ctx context.Context, uri string, _ renderer.TrackMetadata) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.conn.Clear(); err != nil {
		return fmt.Errorf("mpd: clear: %w", err)
	}
	if err := b.conn.Add(uri); err != nil {
		return fmt.Errorf("mpd: add %s: %w", uri, err)
	}
	if err := b.conn.Play(0); err != nil {
		return fmt.Errorf("mpd: play: %w", err)
	}
	return nil
}

func (b *Backend) Play(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.conn.Pause(false); err != nil {
		return fmt.Errorf("mpd: play: %w", err)
	}
	return nil
}

func (b *Backend) Pause(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.conn.Pause(true); err != nil {
		return fmt.Errorf("mpd: pause: %w", err)
	}
	return nil
}

func (b *Backend) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.conn.Stop(); err != nil {
		return fmt.Errorf("mpd: stop: %w", err)
	}
	return nil
}

func (b *Backend) SeekRelative(ctx context.Context, delta time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.conn.SeekCur(delta.Seconds(), true); err != nil {
		return fmt.Errorf("mpd: seek relative: %w", err)
	}
	return nil
}

func (b *Backend) SeekAbsolute(ctx context.Context, pos time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.conn.SeekCur(pos.Seconds(), false); err != nil {
		return fmt.Errorf("mpd: seek absolute: %w", err)
	}
	return nil
}

func (b *Backend) GetVolume(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	status, err := b.conn.Status()
	if err != nil {
		return 0, fmt.Errorf("mpd: status: %w", err)
	}
	return strconv.Atoi(status["volume"])
}

func (b *Backend) SetVolume(ctx context.Context, level int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.conn.SetVolume(level); err != nil {
		return fmt.Errorf("mpd: set volume: %w", err)
	}
	if level > 0 {
		b.lastVolume = level
	}
	return nil
}

// GetMute reports volume==0 as muted; MPD has no separate mute flag.
func (b *Backend) GetMute(ctx context.Context) (bool, error) {
	vol, err := b.GetVolume(ctx)
	if err != nil {
		return false, err
	}
	return vol == 0, nil
}

// SetMute emulates mute by zeroing volume, remembering the prior level to
// restore on unmute.
func (b *Backend) SetMute(ctx context.Context, muted bool) error {
	if muted {
		vol, err := b.GetVolume(ctx)
		if err != nil {
			return err
		}
		if vol > 0 {
			b.mu.Lock()
			b.lastVolume = vol
			b.mu.Unlock()
		}
		return b.SetVolume(ctx, 0)
	}
	b.mu.Lock()
	restore := b.lastVolume
	b.mu.Unlock()
	if restore == 0 {
		restore = 100
	}
	return b.SetVolume(ctx, restore)
}

func (b *Backend) Status(ctx context.Context) (renderer.PlaybackState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	status, err := b.conn.Status()
	if err != nil {
		return renderer.StateUnknown, fmt.Errorf("mpd: status: %w", err)
	}
	switch status["state"] {
	case "play":
		return renderer.StatePlaying, nil
	case "pause":
		return renderer.StatePaused, nil
	case "stop":
		return renderer.StateStopped, nil
	default:
		return renderer.StateUnknown, nil
	}
}

func (b *Backend) Position(ctx context.Context) (elapsed, total time.Duration, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	status, err := b.conn.Status()
	if err != nil {
		return 0, 0, fmt.Errorf("mpd: status: %w", err)
	}
	e, _ := strconv.ParseFloat(status["elapsed"], 64)
	d, _ := strconv.ParseFloat(status["duration"], 64)
	return time.Duration(e * float64(time.Second)), time.Duration(d * float64(time.Second)), nil
}

func (b *Backend) QueueList(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	songs, err := b.conn.PlaylistInfo(-1, -1)
	if err != nil {
		return nil, fmt.Errorf("mpd: playlist info: %w", err)
	}
	out := make([]string, 0, len(songs))
	for _, s := range songs {
		out = append(out, s["file"])
	}
	return out, nil
}

func (b *Backend) QueueAppend(ctx context.Context, uris []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, uri := range uris {
		if err := b.conn.Add(uri); err != nil {
			return fmt.Errorf("mpd: add %s: %w", uri, err)
		}
	}
	return nil
}

func (b *Backend) QueueClear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.conn.Clear(); err != nil {
		return fmt.Errorf("mpd: clear: %w", err)
	}
	return nil
}

// QueueRemoveAt deletes the queue entry at position index, satisfying
// renderer.QueueRemover so SyncQueue can trim a diverging tail without a full
// clear+reload.
func (b *Backend) QueueRemoveAt(ctx context.Context, index int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.conn.Delete(index, index+1); err != nil {
		return fmt.Errorf("mpd: delete %d: %w", index, err)
	}
	return nil
}

var (
	_ renderer.TransportControl  = (*Backend)(nil)
	_ renderer.VolumeControl     = (*Backend)(nil)
	_ renderer.PlaybackStatus    = (*Backend)(nil)
	_ renderer.PlaybackPosition  = (*Backend)(nil)
	_ renderer.QueueBackend      = (*Backend)(nil)
	_ renderer.QueueRemover      = (*Backend)(nil)
)
