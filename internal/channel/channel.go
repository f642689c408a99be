// Package channel implements per-channel live fan-out: one worker downloads
// and re-encodes blocks from a source, broadcasting them at a monotonic
// epoch to every connected HTTP client, with a rolling persisted history.
//
// Grounded on the teacher's internal/radio.Broadcaster: its always-on
// Start(ctx) loop (fetch next track, per-track cancellable context,
// skip-watcher goroutine, fan-out write) is generalized here into a state
// machine that only runs the loop while at least one client is attached,
// idling through a cooloff period after the last one leaves.
package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arung-agamani/denpa-hub/internal/cache"
	"github.com/arung-agamani/denpa-hub/internal/codec"
	"github.com/arung-agamani/denpa-hub/internal/playlist"
)

// State is a channel's place in the Idle/Warming/Streaming lifecycle.
type State int

const (
	StateIdle State = iota
	StateWarming
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWarming:
		return "warming"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Descriptor identifies a channel to clients and to discovery.
type Descriptor struct {
	Kind        string
	Slug        string
	DisplayName string
}

// Block is one playable unit a TrackSource hands to the worker: a byte
// source plus enough metadata to tag the broadcast and record history.
type Block struct {
	Title      string
	Artist     string
	Album      string
	CoverURL   string
	DurationMs int64
	Open       func(ctx context.Context) (io.ReadCloser, error)
}

// TrackSource supplies the next block for a channel to stream. Radio
// Paradise and the local library both implement this to drive a Channel.
type TrackSource interface {
	NextBlock(ctx context.Context) (Block, error)
}

// ErrNoClients names the condition of a cooloff expiring with still no
// clients attached. The cooloff path in this package stops the worker
// without returning it.
var ErrNoClients = errors.New("channel: cooloff expired with no clients")

// ScrobbleListener receives playback start/finish notifications. Satisfied
// by sources/lastfm's ScrobbleHook; kept as an interface here so internal/
// channel does not need to depend on any particular scrobble backend.
type ScrobbleListener interface {
	OnTrackStarted(item playlist.PlaybackItem)
	OnTrackFinished(item playlist.PlaybackItem, playedAt time.Time)
}

// Channel runs the Idle/Warming/Streaming state machine for one music
// channel: a single producer worker, many HTTP client subscribers, a
// rolling play history, and ICY/FLAC metadata bookkeeping.
type Channel struct {
	Descriptor Descriptor

	source  TrackSource
	audio   *cache.Cache
	history *playlist.Playlist
	store   *playlist.Store
	scrobbler ScrobbleListener

	broadcast *TrackBroadcast
	metadata  *MetadataSnapshot

	mu           sync.RWMutex
	state        State
	activeCount  atomic.Int64
	cooloff      time.Duration
	cooloffTimer *time.Timer

	workerCtx    context.Context
	workerCancel context.CancelFunc
	workerDone   chan struct{}

	ensureCh chan struct{}
}

// NewChannel constructs a Channel. history may be nil to disable persisted
// replay (an ephemeral channel). cooloff is how long the worker keeps
// running with zero clients before shutting down; 0 uses a 180s default.
func NewChannel(desc Descriptor, source TrackSource, audio *cache.Cache, history *playlist.Playlist, store *playlist.Store, cooloff time.Duration) *Channel {
	if cooloff <= 0 {
		cooloff = 180 * time.Second
	}
	return &Channel{
		Descriptor: desc,
		source:     source,
		audio:      audio,
		history:    history,
		store:      store,
		broadcast:  NewTrackBroadcast(),
		metadata:   NewMetadataSnapshot(),
		cooloff:    cooloff,
		ensureCh:   make(chan struct{}, 1),
	}
}

// SetScrobbleListener attaches an optional scrobble hook. Pass nil to detach.
func (c *Channel) SetScrobbleListener(l ScrobbleListener) {
	c.mu.Lock()
	c.scrobbler = l
	c.mu.Unlock()
}

// State returns the channel's current lifecycle state.
func (c *Channel) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Metadata returns the shared now-playing metadata snapshot.
func (c *Channel) Metadata() *MetadataSnapshot { return c.metadata }

// Broadcast returns the live epoch-tagged packet broadcast for subscribing.
func (c *Channel) Broadcast() *TrackBroadcast { return c.broadcast }

// AttachClient registers a new listener, starting the worker if this is the
// first one, and cancels any pending cooloff shutdown.
func (c *Channel) AttachClient() {
	n := c.activeCount.Add(1)

	c.mu.Lock()
	if c.cooloffTimer != nil {
		c.cooloffTimer.Stop()
		c.cooloffTimer = nil
	}
	needStart := c.state == StateIdle
	if needStart {
		c.state = StateWarming
	}
	c.mu.Unlock()

	slog.Info("Channel client attached", "channel", c.Descriptor.Slug, "active", n)

	if needStart {
		c.startWorker()
	}
}

// DetachClient unregisters a listener; once the count reaches zero a cooloff
// timer starts, after which the worker is stopped.
func (c *Channel) DetachClient() {
	n := c.activeCount.Add(-1)
	slog.Info("Channel client detached", "channel", c.Descriptor.Slug, "active", n)
	if n > 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cooloffTimer != nil {
		c.cooloffTimer.Stop()
	}
	c.cooloffTimer = time.AfterFunc(c.cooloff, c.onCooloffExpired)
}

func (c *Channel) onCooloffExpired() {
	if c.activeCount.Load() > 0 {
		return
	}
	slog.Info("Channel cooloff expired, stopping worker", "channel", c.Descriptor.Slug)
	c.stopWorker()
}

func (c *Channel) startWorker() {
	c.mu.Lock()
	if c.workerCancel != nil {
		c.mu.Unlock()
		return
	}
	workerCtx, cancel := context.WithCancel(context.Background())
	c.workerCtx = workerCtx
	c.workerCancel = cancel
	c.workerDone = make(chan struct{})
	c.mu.Unlock()

	go c.runWorker(workerCtx, c.workerDone)
}

func (c *Channel) stopWorker() {
	c.mu.Lock()
	cancel := c.workerCancel
	done := c.workerDone
	c.workerCancel = nil
	c.workerDone = nil
	c.state = StateIdle
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Channel) runWorker(ctx context.Context, done chan struct{}) {
	defer close(done)
	slog.Info("Channel worker started", "channel", c.Descriptor.Slug)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Channel worker stopping", "channel", c.Descriptor.Slug)
			return
		default:
		}

		block, err := c.source.NextBlock(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("Channel source error", "channel", c.Descriptor.Slug, "error", err)
			select {
			case <-time.After(2 * time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}

		c.setState(StateStreaming)
		c.metadata.Set(block.Title, block.Artist, "", block.CoverURL)
		epoch := c.broadcast.BeginEpoch()
		item := c.recordHistory(ctx, block)

		c.mu.RLock()
		scrobbler := c.scrobbler
		c.mu.RUnlock()
		if scrobbler != nil {
			scrobbler.OnTrackStarted(item)
		}

		streamErr := c.streamBlock(ctx, block)
		if streamErr != nil && ctx.Err() == nil {
			slog.Error("Channel block streaming error", "channel", c.Descriptor.Slug, "epoch", epoch, "error", streamErr)
			time.Sleep(500 * time.Millisecond)
		}
		if streamErr == nil && scrobbler != nil {
			scrobbler.OnTrackFinished(item, time.Now())
		}
	}
}

func (c *Channel) streamBlock(ctx context.Context, block Block) error {
	rc, err := block.Open(ctx)
	if err != nil {
		return fmt.Errorf("channel %s: open block: %w", c.Descriptor.Slug, err)
	}
	defer rc.Close()

	transcoded, err := codec.TranscodeToFlacStream(ctx, rc, codec.EncodeOptions{CompressionLevel: 5})
	if err != nil {
		return fmt.Errorf("channel %s: transcode: %w", c.Descriptor.Slug, err)
	}
	defer transcoded.Close()

	buf := make([]byte, 32*1024)
	for {
		n, err := transcoded.Read(buf)
		if n > 0 {
			c.broadcast.Write(buf[:n])
		}
		if err != nil {
			if err == io.EOF {
				return transcoded.Wait()
			}
			return err
		}
	}
}

func (c *Channel) recordHistory(ctx context.Context, block Block) playlist.PlaybackItem {
	item := playlist.PlaybackItem{
		MediaServerID: c.Descriptor.Slug,
		DidlID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		Title:         block.Title,
		Artist:        block.Artist,
		Album:         block.Album,
		AlbumArtURI:   block.CoverURL,
		DurationMs:    block.DurationMs,
	}

	if c.history == nil {
		return item
	}
	wh, err := c.history.AcquireWriteLock()
	if err != nil {
		slog.Debug("Channel history write contended, skipping append", "channel", c.Descriptor.Slug)
		return item
	}
	defer wh.Release()

	if err := wh.Push(item); err != nil {
		slog.Warn("Channel failed to append history item", "channel", c.Descriptor.Slug, "error", err)
		return item
	}
	if c.store != nil {
		if err := c.store.RecordHistory(ctx, c.history.ID(), item, time.Now()); err != nil {
			slog.Warn("Channel failed to persist history entry", "channel", c.Descriptor.Slug, "error", err)
		}
	}
	return item
}

// ActiveClients returns the number of currently attached listeners.
func (c *Channel) ActiveClients() int64 { return c.activeCount.Load() }
