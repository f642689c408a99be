// Package arylic implements a renderer backend over Arylic/LinkPlay's
// proprietary HTTP control API (GET /httpapi.asp?command=...). No Go client
// for this API exists in the wider ecosystem, so this backend is built
// directly on net/http rather than adapting a third-party library — every
// other renderer backend in this module wraps a real client library instead.
package arylic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/arung-agamani/denpa-hub/internal/renderer"
)

// Backend drives one Arylic amplifier/streamer over its HTTP control API.
type Backend struct {
	http    *http.Client
	baseURL string
	info    renderer.RendererInfo
}

// New builds a Backend talking to the device at baseURL (e.g.
// "http://192.168.1.50").
func New(id, name, baseURL string) *Backend {
	return &Backend{
		http:    &http.Client{Timeout: 5 * time.Second},
		baseURL: baseURL,
		info: renderer.RendererInfo{
			ID: id, Name: name, Kind: "arylic",
			SupportsVolume: true, SupportsPosition: true, SupportsQueue: false,
		},
	}
}

func (b *Backend) Info() renderer.RendererInfo { return b.info }

// playerStatus mirrors the fields getPlayerStatus returns that this backend
// cares about; the device sends several more we don't use.
type playerStatus struct {
	Status string `json:"status"`
	Vol    string `json:"vol"`
	Mute   string `json:"mute"`
	Curpos string `json:"curpos"` // milliseconds
	Totlen string `json:"totlen"` // milliseconds
}

func (b *Backend) command(ctx context.Context, cmd string) ([]byte, error) {
	reqURL := fmt.Sprintf("%s/httpapi.asp?command=%s", b.baseURL, url.QueryEscape(cmd))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("arylic: build request: %w", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arylic: %s: %w", cmd, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arylic: %s: status %s", cmd, resp.Status)
	}
	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	return buf[:n], nil
}

func (b *Backend) status(ctx context.Context) (playerStatus, error) {
	body, err := b.command(ctx, "getPlayerStatus")
	if err != nil {
		return playerStatus{}, err
	}
	var st playerStatus
	if err := json.Unmarshal(body, &st); err != nil {
		return playerStatus{}, fmt.Errorf("arylic: decode status: %w", err)
	}
	return st, nil
}

// PlayURI tells the device to stream uri directly; Arylic firmwares accept
// an arbitrary HTTP(S) audio URL here, which is how a channel's live stream
// or a cached track gets onto the amplifier.
func (b *Backend) PlayURI(ctx context.Context, uri string, _ renderer.TrackMetadata) error {
	_, err := b.command(ctx, "setPlayerCmd:play:"+uri)
	return err
}

func (b *Backend) Play(ctx context.Context) error {
	_, err := b.command(ctx, "setPlayerCmd:play")
	return err
}

func (b *Backend) Pause(ctx context.Context) error {
	_, err := b.command(ctx, "setPlayerCmd:pause")
	return err
}

func (b *Backend) Stop(ctx context.Context) error {
	_, err := b.command(ctx, "setPlayerCmd:stop")
	return err
}

func (b *Backend) SeekAbsolute(ctx context.Context, pos time.Duration) error {
	_, err := b.command(ctx, fmt.Sprintf("setPlayerCmd:seek:%d", int(pos.Seconds())))
	return err
}

// SeekRelative has no direct command in the Arylic API; it reads the current
// position and issues an absolute seek to position+delta.
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
	st, err := b.status(ctx)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(st.Vol)
}

func (b *Backend) SetVolume(ctx context.Context, level int) error {
	_, err := b.command(ctx, fmt.Sprintf("setPlayerCmd:vol:%d", level))
	return err
}

func (b *Backend) GetMute(ctx context.Context) (bool, error) {
	st, err := b.status(ctx)
	if err != nil {
		return false, err
	}
	return st.Mute == "1", nil
}

func (b *Backend) SetMute(ctx context.Context, muted bool) error {
	flag := "0"
	if muted {
		flag = "1"
	}
	_, err := b.command(ctx, "setPlayerCmd:mute:"+flag)
	return err
}

func (b *Backend) Status(ctx context.Context) (renderer.PlaybackState, error) {
	st, err := b.status(ctx)
	if err != nil {
		return renderer.StateUnknown, err
	}
	switch st.Status {
	case "play":
		return renderer.StatePlaying, nil
	case "pause":
		return renderer.StatePaused, nil
	case "stop":
		return renderer.StateStopped, nil
	case "load", "loading":
		return renderer.StateTransitioning, nil
	default:
		return renderer.StateUnknown, nil
	}
}

func (b *Backend) Position(ctx context.Context) (elapsed, total time.Duration, err error) {
	st, err := b.status(ctx)
	if err != nil {
		return 0, 0, err
	}
	curMs, _ := strconv.Atoi(st.Curpos)
	totMs, _ := strconv.Atoi(st.Totlen)
	return time.Duration(curMs) * time.Millisecond, time.Duration(totMs) * time.Millisecond, nil
}

var (
	_ renderer.TransportControl = (*Backend)(nil)
	_ renderer.VolumeControl    = (*Backend)(nil)
	_ renderer.PlaybackStatus   = (*Backend)(nil)
	_ renderer.PlaybackPosition = (*Backend)(nil)
)
