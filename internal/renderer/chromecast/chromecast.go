// Package chromecast implements a renderer backend over Chromecast's cast
// v2 protocol via github.com/barnybug/go-cast. Unlike the UPnP/Arylic
// backends, Chromecast's default media receiver exposes a real queue
// primitive (QueueLoad/QueueInsert), so this backend implements
// renderer.QueueBackend natively, though not renderer.QueueRemover: the
// protocol removes queue items by item ID, not position, so SyncQueue always
// falls back to Clear+Append here.
package chromecast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/barnybug/go-cast"
	castcontroller "github.com/barnybug/go-cast/controllers"

	"github.com/arung-agamani/denpa-hub/internal/renderer"
)

// Backend drives one Chromecast (or Chromecast-compatible) device over the
// default media receiver app.
type Backend struct {
	mu     sync.Mutex
	client *cast.Client
	info   renderer.RendererInfo
}

// Dial connects to the Chromecast at host:port and returns a Backend
// identified by id/name.
func Dial(ctx context.Context, id, name, host string, port int) (*Backend, error) {
	client := cast.NewClient(host, port)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("chromecast: connect %s:%d: %w", host, port, err)
	}
	return &Backend{
		client: client,
		info: renderer.RendererInfo{
			ID: id, Name: name, Kind: "chromecast",
			SupportsVolume: true, SupportsPosition: true, SupportsQueue: true,
		},
	}, nil
}

// Close tears down the cast connection.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.client.Close()
	return nil
}

func (b *Backend) Info() renderer.RendererInfo { return b.info }

func (b *Backend) media(ctx context.Context) (*castcontroller.MediaController, error) {
	if !b.client.IsPlaying(ctx) {
		if _, err := b.client.Receiver().LaunchApp(ctx, cast.AppMedia); err != nil {
			return nil, fmt.Errorf("chromecast: launch media receiver: %w", err)
		}
	}
	media, err := b.client.Media(ctx)
	if err != nil {
		return nil, fmt.Errorf("chromecast: media controller: %w", err)
	}
	return media, nil
}

// PlayURI loads uri as a single-item queue and starts playback immediately.
func (b *Backend) PlayURI(ctx context.Context, uri string, metadata renderer.TrackMetadata) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	media, err := b.media(ctx)
	if err != nil {
		return err
	}
	item := castcontroller.MediaItem{
		ContentId:   uri,
		ContentType: "audio/mpeg",
		StreamType:  "LIVE",
		Metadata: map[string]interface{}{
			"metadataType": 3,
			"title":        metadata.Title,
			"artist":       metadata.Artist,
			"albumName":    metadata.Album,
		},
	}
	if _, err := media.LoadMedia(ctx, item, 0, true, map[string]interface{}{}); err != nil {
		return fmt.Errorf("chromecast: load media: %w", err)
	}
	return nil
}

func (b *Backend) Play(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	media, err := b.media(ctx)
	if err != nil {
		return err
	}
	_, err = media.Play(ctx)
	if err != nil {
		return fmt.Errorf("chromecast: play: %w", err)
	}
	return nil
}

func (b *Backend) Pause(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	media, err := b.media(ctx)
	if err != nil {
		return err
	}
	_, err = media.Pause(ctx)
	if err != nil {
		return fmt.Errorf("chromecast: pause: %w", err)
	}
	return nil
}

func (b *Backend) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	media, err := b.media(ctx)
	if err != nil {
		return err
	}
	_, err = media.Stop(ctx)
	if err != nil {
		return fmt.Errorf("chromecast: stop: %w", err)
	}
	return nil
}

func (b *Backend) SeekAbsolute(ctx context.Context, pos time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	media, err := b.media(ctx)
	if err != nil {
		return err
	}
	_, err = media.Seek(ctx, pos.Seconds())
	if err != nil {
		return fmt.Errorf("chromecast: seek: %w", err)
	}
	return nil
}

// SeekRelative reads the current position and issues an absolute seek;
// the cast media protocol only exposes absolute seek.
func (b *Backend) SeekRelative(ctx context.Context, delta time.Duration) error {
	elapsed, _, err := b.Position(ctx)
	if err != nil {
		return err
	}
	target := elapsed + delta
	if target < 0 {
		target = 0
	}
	return b.SeekAbsolute(ctx, target)
}

func (b *Backend) GetVolume(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	status, err := b.client.Receiver().GetStatus(ctx)
	if err != nil {
		return 0, fmt.Errorf("chromecast: receiver status: %w", err)
	}
	if status.Volume == nil || status.Volume.Level == nil {
		return 0, renderer.ErrOperationNotSupported
	}
	return int(*status.Volume.Level * 100), nil
}

func (b *Backend) SetVolume(ctx context.Context, level int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	l := float64(level) / 100
	_, err := b.client.Receiver().SetVolume(ctx, &castcontroller.Volume{Level: &l})
	if err != nil {
		return fmt.Errorf("chromecast: set volume: %w", err)
	}
	return nil
}

func (b *Backend) GetMute(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	status, err := b.client.Receiver().GetStatus(ctx)
	if err != nil {
		return false, fmt.Errorf("chromecast: receiver status: %w", err)
	}
	if status.Volume == nil || status.Volume.Muted == nil {
		return false, renderer.ErrOperationNotSupported
	}
	return *status.Volume.Muted, nil
}

func (b *Backend) SetMute(ctx context.Context, muted bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.client.Receiver().SetVolume(ctx, &castcontroller.Volume{Muted: &muted})
	if err != nil {
		return fmt.Errorf("chromecast: set mute: %w", err)
	}
	return nil
}

func (b *Backend) Status(ctx context.Context) (renderer.PlaybackState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	media, err := b.media(ctx)
	if err != nil {
		return renderer.StateUnknown, err
	}
	status, err := media.GetStatus(ctx)
	if err != nil {
		return renderer.StateUnknown, fmt.Errorf("chromecast: media status: %w", err)
	}
	if len(status.Status) == 0 {
		return renderer.StateNoMedia, nil
	}
	switch status.Status[0].PlayerState {
	case "PLAYING":
		return renderer.StatePlaying, nil
	case "PAUSED":
		return renderer.StatePaused, nil
	case "IDLE":
		return renderer.StateStopped, nil
	case "BUFFERING":
		return renderer.StateTransitioning, nil
	default:
		return renderer.StateUnknown, nil
	}
}

func (b *Backend) Position(ctx context.Context) (elapsed, total time.Duration, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	media, err := b.media(ctx)
	if err != nil {
		return 0, 0, err
	}
	status, err := media.GetStatus(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("chromecast: media status: %w", err)
	}
	if len(status.Status) == 0 {
		return 0, 0, renderer.ErrOperationNotSupported
	}
	s := status.Status[0]
	dur := time.Duration(0)
	if s.Media != nil {
		dur = time.Duration(s.Media.Duration * float64(time.Second))
	}
	return time.Duration(s.CurrentTime * float64(time.Second)), dur, nil
}

// QueueList returns the content IDs currently queued on the media receiver.
func (b *Backend) QueueList(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	media, err := b.media(ctx)
	if err != nil {
		return nil, err
	}
	status, err := media.GetStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("chromecast: media status: %w", err)
	}
	if len(status.Status) == 0 {
		return nil, nil
	}
	items := status.Status[0].Items
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Media.ContentId)
	}
	return out, nil
}

// QueueAppend inserts uris at the end of the current queue via QueueInsert.
func (b *Backend) QueueAppend(ctx context.Context, uris []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	media, err := b.media(ctx)
	if err != nil {
		return err
	}
	items := make([]castcontroller.MediaItem, 0, len(uris))
	for _, uri := range uris {
		items = append(items, castcontroller.MediaItem{
			ContentId:   uri,
			ContentType: "audio/mpeg",
			StreamType:  "LIVE",
		})
	}
	if _, err := media.QueueInsert(ctx, items, -1); err != nil {
		return fmt.Errorf("chromecast: queue insert: %w", err)
	}
	return nil
}

// QueueClear stops playback via Stop; the default media receiver has no
// dedicated clear-queue command, and this backend sends no other command.
func (b *Backend) QueueClear(ctx context.Context) error {
	return b.Stop(ctx)
}

var (
	_ renderer.TransportControl = (*Backend)(nil)
	_ renderer.VolumeControl    = (*Backend)(nil)
	_ renderer.PlaybackStatus   = (*Backend)(nil)
	_ renderer.PlaybackPosition = (*Backend)(nil)
	_ renderer.QueueBackend     = (*Backend)(nil)
)
