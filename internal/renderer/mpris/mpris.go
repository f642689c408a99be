// Package mpris implements a renderer backend that controls an external
// MPRIS2-compliant media player over the D-Bus session bus via
// github.com/godbus/dbus/v5. This is the client side of MPRIS: the hub is
// steering somebody else's player (e.g. an existing desktop player session
// on the same machine). That is the mirror image of
// github.com/quarckster/go-mpris-server, which serves a program as an MPRIS
// player for other controllers to drive; go.mod lists it, but no package in
// this module imports it.
package mpris

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/arung-agamani/denpa-hub/internal/renderer"
)

const (
	playerInterface     = "org.mpris.MediaPlayer2.Player"
	propertiesInterface = "org.freedesktop.DBus.Properties"
	objectPath          = dbus.ObjectPath("/org/mpris/MediaPlayer2")
)

// Backend drives one MPRIS2 player identified by its well-known bus name
// (e.g. "org.mpris.MediaPlayer2.vlc").
type Backend struct {
	conn   *dbus.Conn
	busObj dbus.BusObject
	info   renderer.RendererInfo
}

// Connect attaches to the session bus and targets the player at busName.
func Connect(id, name, busName string) (*Backend, error) {
	conn, err := dbus.SessionBusPrivate()
	if err != nil {
		return nil, fmt.Errorf("mpris: session bus: %w", err)
	}
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mpris: auth: %w", err)
	}
	if err := conn.Hello(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mpris: hello: %w", err)
	}
	return &Backend{
		conn:   conn,
		busObj: conn.Object(busName, objectPath),
		info: renderer.RendererInfo{
			ID: id, Name: name, Kind: "mpris",
			SupportsVolume: true, SupportsPosition: true, SupportsQueue: false,
		},
	}, nil
}

// Close releases the D-Bus connection.
func (b *Backend) Close() error {
	return b.conn.Close()
}

func (b *Backend) Info() renderer.RendererInfo { return b.info }

func (b *Backend) call(ctx context.Context, method string, args ...interface{}) error {
	call := b.busObj.CallWithContext(ctx, playerInterface+"."+method, 0, args...)
	if call.Err != nil {
		return fmt.Errorf("mpris: %s: %w", method, call.Err)
	}
	return nil
}

func (b *Backend) getProp(ctx context.Context, name string) (dbus.Variant, error) {
	var v dbus.Variant
	err := b.busObj.CallWithContext(ctx, propertiesInterface+".Get", 0, playerInterface, name).Store(&v)
	if err != nil {
		return dbus.Variant{}, fmt.Errorf("mpris: get %s: %w", name, err)
	}
	return v, nil
}

// PlayURI asks the player to open uri through the Player interface's OpenUri
// method. Players may refuse some URIs; any error from that call is reported
// as renderer.ErrOperationNotSupported.
func (b *Backend) PlayURI(ctx context.Context, uri string, _ renderer.TrackMetadata) error {
	call := b.busObj.CallWithContext(ctx, playerInterface+".OpenUri", 0, uri)
	if call.Err != nil {
		return fmt.Errorf("%w: mpris OpenUri: %v", renderer.ErrOperationNotSupported, call.Err)
	}
	return nil
}

func (b *Backend) Play(ctx context.Context) error  { return b.call(ctx, "Play") }
func (b *Backend) Pause(ctx context.Context) error { return b.call(ctx, "Pause") }
func (b *Backend) Stop(ctx context.Context) error  { return b.call(ctx, "Stop") }

// SeekRelative maps directly onto MPRIS2's Seek(offset_microseconds).
func (b *Backend) SeekRelative(ctx context.Context, delta time.Duration) error {
	return b.call(ctx, "Seek", delta.Microseconds())
}

// SeekAbsolute requires the current track's object path, which MPRIS2
// reports via the Metadata property's mpris:trackid entry.
func (b *Backend) SeekAbsolute(ctx context.Context, pos time.Duration) error {
	v, err := b.getProp(ctx, "Metadata")
	if err != nil {
		return err
	}
	meta, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return renderer.ErrOperationNotSupported
	}
	trackIDVariant, ok := meta["mpris:trackid"]
	if !ok {
		return renderer.ErrOperationNotSupported
	}
	trackID, ok := trackIDVariant.Value().(dbus.ObjectPath)
	if !ok {
		return renderer.ErrOperationNotSupported
	}
	return b.call(ctx, "SetPosition", trackID, pos.Microseconds())
}

func (b *Backend) GetVolume(ctx context.Context) (int, error) {
	v, err := b.getProp(ctx, "Volume")
	if err != nil {
		return 0, err
	}
	level, ok := v.Value().(float64)
	if !ok {
		return 0, renderer.ErrOperationNotSupported
	}
	return int(level * 100), nil
}

func (b *Backend) SetVolume(ctx context.Context, level int) error {
	call := b.busObj.CallWithContext(ctx, propertiesInterface+".Set", 0,
		playerInterface, "Volume", dbus.MakeVariant(float64(level)/100))
	if call.Err != nil {
		return fmt.Errorf("mpris: set volume: %w", call.Err)
	}
	return nil
}

// GetMute has no MPRIS2 property; it's emulated as Volume == 0.
func (b *Backend) GetMute(ctx context.Context) (bool, error) {
	vol, err := b.GetVolume(ctx)
	if err != nil {
		return false, err
	}
	return vol == 0, nil
}

// SetMute sets volume to zero; MPRIS2 has no separate mute flag so the prior
// level is not recoverable once muted this way.
func (b *Backend) SetMute(ctx context.Context, muted bool) error {
	if !muted {
		return renderer.ErrOperationNotSupported
	}
	return b.SetVolume(ctx, 0)
}

func (b *Backend) Status(ctx context.Context) (renderer.PlaybackState, error) {
	v, err := b.getProp(ctx, "PlaybackStatus")
	if err != nil {
		return renderer.StateUnknown, err
	}
	s, _ := v.Value().(string)
	switch s {
	case "Playing":
		return renderer.StatePlaying, nil
	case "Paused":
		return renderer.StatePaused, nil
	case "Stopped":
		return renderer.StateStopped, nil
	default:
		return renderer.StateUnknown, nil
	}
}

func (b *Backend) Position(ctx context.Context) (elapsed, total time.Duration, err error) {
	posVariant, err := b.getProp(ctx, "Position")
	if err != nil {
		return 0, 0, err
	}
	posMicros, ok := posVariant.Value().(int64)
	if !ok {
		return 0, 0, renderer.ErrOperationNotSupported
	}

	metaVariant, err := b.getProp(ctx, "Metadata")
	if err != nil {
		return 0, 0, err
	}
	meta, _ := metaVariant.Value().(map[string]dbus.Variant)
	var lengthMicros int64
	if lv, ok := meta["mpris:length"]; ok {
		lengthMicros, _ = lv.Value().(int64)
	}

	return time.Duration(posMicros) * time.Microsecond, time.Duration(lengthMicros) * time.Microsecond, nil
}

var (
	_ renderer.TransportControl = (*Backend)(nil)
	_ renderer.VolumeControl    = (*Backend)(nil)
	_ renderer.PlaybackStatus   = (*Backend)(nil)
	_ renderer.PlaybackPosition = (*Backend)(nil)
)
