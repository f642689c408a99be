// Package upnp implements a renderer backend over UPnP AV (AVTransport1 +
// RenderingControl1) via github.com/huin/goupnp's generated dcps/av1
// clients. AVTransport has no generic multi-item queue primitive beyond
// SetNextAVTransportURI (a single lookahead slot, not an addressable list),
// so this backend does not implement renderer.QueueBackend; SyncQueue simply
// isn't usable against it, the same limitation the OpenHome backend exists
// to work around on devices that also expose the Linn Playlist service.
package upnp

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/huin/goupnp/dcps/av1"

	"github.com/arung-agamani/denpa-hub/internal/renderer"
)

const masterChannel = "Master"

// Backend drives one UPnP AV renderer device. RenderingControl is optional:
// some AV-only devices (mostly stream bridges) expose AVTransport alone.
type Backend struct {
	avt  *av1.AVTransport1
	rc   *av1.RenderingControl1 // nil if the device has no RenderingControl service
	info renderer.RendererInfo
}

// Discover builds clients for the AVTransport1 (required) and
// RenderingControl1 (optional) services at a device's location URL, as
// found via SSDP search or a prior device description fetch.
func Discover(ctx context.Context, id, name, deviceLocation string) (*Backend, error) {
	avtClients, err := av1.NewAVTransport1ClientsByURLCtx(ctx, mustParseURL(deviceLocation))
	if err != nil || len(avtClients) == 0 {
		return nil, fmt.Errorf("upnp: no AVTransport1 service at %s: %w", deviceLocation, err)
	}

	b := &Backend{
		avt: avtClients[0],
		info: renderer.RendererInfo{
			ID: id, Name: name, Kind: "upnp",
			SupportsPosition: true,
		},
	}

	if rcClients, err := av1.NewRenderingControl1ClientsByURLCtx(ctx, mustParseURL(deviceLocation)); err == nil && len(rcClients) > 0 {
		b.rc = rcClients[0]
		b.info.SupportsVolume = true
	}

	return b, nil
}

func (b *Backend) Info() renderer.RendererInfo { return b.info }

// PlayURI sets the transport URI and immediately issues Play. metadata is
// not forwarded as DIDL-Lite here; devices that require rich metadata to
// accept SetAVTransportURI are out of scope until a DIDL-Lite encoder is
// wired in.
func (b *Backend) PlayURI(ctx context.Context, uri string, _ renderer.TrackMetadata) error {
	if err := b.avt.SetAVTransportURICtx(ctx, 0, uri, ""); err != nil {
		return fmt.Errorf("upnp: set av transport uri: %w", err)
	}
	if err := b.avt.PlayCtx(ctx, 0, "1"); err != nil {
		return fmt.Errorf("upnp: play: %w", err)
	}
	return nil
}

func (b *Backend) Play(ctx context.Context) error {
	if err := b.avt.PlayCtx(ctx, 0, "1"); err != nil {
		return fmt.Errorf("upnp: play: %w", err)
	}
	return nil
}

func (b *Backend) Pause(ctx context.Context) error {
	if err := b.avt.PauseCtx(ctx, 0); err != nil {
		return fmt.Errorf("upnp: pause: %w", err)
	}
	return nil
}

func (b *Backend) Stop(ctx context.Context) error {
	if err := b.avt.StopCtx(ctx, 0); err != nil {
		return fmt.Errorf("upnp: stop: %w", err)
	}
	return nil
}

// SeekAbsolute uses the ABS_TIME seek unit with an HH:MM:SS target, the
// AVTransport convention for absolute-position seeking.
func (b *Backend) SeekAbsolute(ctx context.Context, pos time.Duration) error {
	if err := b.avt.SeekCtx(ctx, 0, "ABS_TIME", formatHHMMSS(pos)); err != nil {
		return fmt.Errorf("%w: upnp abs seek: %v", renderer.ErrOperationNotSupported, err)
	}
	return nil
}

// SeekRelative uses the REL_TIME seek unit, which most AVTransport
// implementations interpret as an offset from the current position.
func (b *Backend) SeekRelative(ctx context.Context, delta time.Duration) error {
	sign := ""
	d := delta
	if d < 0 {
		sign = "-"
		d = -d
	}
	if err := b.avt.SeekCtx(ctx, 0, "REL_TIME", sign+formatHHMMSS(d)); err != nil {
		return fmt.Errorf("%w: upnp rel seek: %v", renderer.ErrOperationNotSupported, err)
	}
	return nil
}

func (b *Backend) GetVolume(ctx context.Context) (int, error) {
	if b.rc == nil {
		return 0, renderer.ErrOperationNotSupported
	}
	vol, err := b.rc.GetVolumeCtx(ctx, 0, masterChannel)
	if err != nil {
		return 0, fmt.Errorf("upnp: get volume: %w", err)
	}
	return int(vol), nil
}

func (b *Backend) SetVolume(ctx context.Context, level int) error {
	if b.rc == nil {
		return renderer.ErrOperationNotSupported
	}
	if err := b.rc.SetVolumeCtx(ctx, 0, masterChannel, uint16(level)); err != nil {
		return fmt.Errorf("upnp: set volume: %w", err)
	}
	return nil
}

func (b *Backend) GetMute(ctx context.Context) (bool, error) {
	if b.rc == nil {
		return false, renderer.ErrOperationNotSupported
	}
	muted, err := b.rc.GetMuteCtx(ctx, 0, masterChannel)
	if err != nil {
		return false, fmt.Errorf("upnp: get mute: %w", err)
	}
	return muted, nil
}

func (b *Backend) SetMute(ctx context.Context, muted bool) error {
	if b.rc == nil {
		return renderer.ErrOperationNotSupported
	}
	if err := b.rc.SetMuteCtx(ctx, 0, masterChannel, muted); err != nil {
		return fmt.Errorf("upnp: set mute: %w", err)
	}
	return nil
}

func (b *Backend) Status(ctx context.Context) (renderer.PlaybackState, error) {
	state, _, _, err := b.avt.GetTransportInfoCtx(ctx, 0)
	if err != nil {
		return renderer.StateUnknown, fmt.Errorf("upnp: get transport info: %w", err)
	}
	switch state {
	case "PLAYING":
		return renderer.StatePlaying, nil
	case "PAUSED_PLAYBACK":
		return renderer.StatePaused, nil
	case "STOPPED":
		return renderer.StateStopped, nil
	case "TRANSITIONING":
		return renderer.StateTransitioning, nil
	case "NO_MEDIA_PRESENT":
		return renderer.StateNoMedia, nil
	default:
		return renderer.StateUnknown, nil
	}
}

func (b *Backend) Position(ctx context.Context) (elapsed, total time.Duration, err error) {
	_, trackDuration, _, _, relTime, _, _, _, gerr := b.avt.GetPositionInfoCtx(ctx, 0)
	if gerr != nil {
		return 0, 0, fmt.Errorf("upnp: get position info: %w", gerr)
	}
	return parseHHMMSS(relTime), parseHHMMSS(trackDuration), nil
}

func formatHHMMSS(d time.Duration) string {
	total := int(d.Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func parseHHMMSS(s string) time.Duration {
	var h, m, sec int
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
		return 0
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic("upnp: invalid device location: " + err.Error())
	}
	return u
}

var (
	_ renderer.TransportControl = (*Backend)(nil)
	_ renderer.VolumeControl    = (*Backend)(nil)
	_ renderer.PlaybackStatus   = (*Backend)(nil)
	_ renderer.PlaybackPosition = (*Backend)(nil)
)
