package channel

import (
	"net/http"
	"strconv"

	"log/slog"
)

const defaultICYMetaInt = 16000

// StreamHandler serves a channel's live stream in one of three wire
// formats (plain FLAC, OGG-FLAC, or ICY-wrapped FLAC), grounded on the
// teacher's StreamHandler.ServeHTTP (subscribe, set headers, relay chunks,
// flush, unsubscribe on disconnect).
type StreamHandler struct {
	channel    *Channel
	stationName string
	maxClients int
	format     WireFormat
}

// WireFormat selects how a client's bytes are wrapped.
type WireFormat int

const (
	FormatFLAC WireFormat = iota
	FormatOggFLAC
	FormatICY
)

// NewStreamHandler creates a handler serving channel in the given wire
// format, rejecting new clients once maxClients is reached (0 disables the
// limit).
func NewStreamHandler(ch *Channel, stationName string, maxClients int, format WireFormat) *StreamHandler {
	return &StreamHandler{channel: ch, stationName: stationName, maxClients: maxClients, format: format}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.maxClients > 0 && int(h.channel.ActiveClients()) >= h.maxClients {
		http.Error(w, "Too many clients", http.StatusServiceUnavailable)
		slog.Warn("Channel client rejected", "channel", h.channel.Descriptor.Slug, "reason", "max_clients_reached")
		return
	}

	ctx := r.Context()
	h.channel.AttachClient()
	defer h.channel.DetachClient()

	sub := h.channel.Broadcast().Subscribe()
	defer sub.Close()

	h.writeHeaders(w)

	flusher, canFlush := w.(http.Flusher)

	var icy *icyWriter
	if h.format == FormatICY {
		icy = newICYWriter(w, defaultICYMetaInt, h.channel.Metadata())
	}
	var ogg *oggPageWriter
	if h.format == FormatOggFLAC {
		ogg = newOggPageWriter(w, 1)
	}

	for {
		data, _, ok := sub.NextCtx(ctx)
		if !ok {
			return
		}

		var err error
		switch {
		case icy != nil:
			_, err = icy.Write(data)
		case ogg != nil:
			err = ogg.WritePage(data, false, false)
		default:
			_, err = w.Write(data)
		}
		if err != nil {
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}

func (h *StreamHandler) writeHeaders(w http.ResponseWriter) {
	switch h.format {
	case FormatICY:
		w.Header().Set("Content-Type", "audio/flac")
		w.Header().Set("icy-name", h.stationName)
		w.Header().Set("icy-metaint", strconv.Itoa(defaultICYMetaInt))
	case FormatOggFLAC:
		w.Header().Set("Content-Type", "audio/ogg")
	default:
		w.Header().Set("Content-Type", "audio/flac")
	}
	w.Header().Set("Transfer-Encoding", "chunked")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Accept-Ranges", "none")
}
