package channel

import (
	"io"
	"net/http"

	"log/slog"

	"github.com/arung-agamani/denpa-hub/internal/cache"
)

// HistoricHandler serves a channel's persisted play history back to a
// client, entry by entry, each one completely before moving to the next.
// Grounded on the teacher's MasterPlaylist time-tagged rotation in
// internal/playlist/master.go, repurposed here from time-of-day tag
// switching to an append-only historical sequence read straight from the
// cache rather than rotated in memory.
type HistoricHandler struct {
	history *Channel
	audio   *cache.Cache
	ext     string
	limit   int
}

// NewHistoricHandler serves up to limit of a channel's most recent history
// entries (0 uses 50), reading each entry's payload from audio under its
// recorded cache pk.
func NewHistoricHandler(ch *Channel, audio *cache.Cache, ext string, limit int) *HistoricHandler {
	return &HistoricHandler{history: ch, audio: audio, ext: ext, limit: limit}
}

func (h *HistoricHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.history.history == nil {
		http.Error(w, "no history for this channel", http.StatusNotFound)
		return
	}

	items := h.history.history.Items()
	if len(items) == 0 {
		http.Error(w, "history is empty", http.StatusNotFound)
		return
	}
	limit := h.limit
	if limit <= 0 {
		limit = 50
	}
	if len(items) > limit {
		items = items[len(items)-limit:]
	}

	w.Header().Set("Content-Type", "audio/flac")
	w.Header().Set("Transfer-Encoding", "chunked")
	flusher, canFlush := w.(http.Flusher)

	for _, item := range items {
		if item.CachePK == "" || item.IsLazy() {
			continue
		}

		rc, err := h.audio.OpenFollowReader(item.CachePK, h.ext)
		if err != nil {
			slog.Warn("Historic replay: failed to open cache entry", "pk", item.CachePK, "error", err)
			continue
		}

		_, copyErr := io.Copy(w, rc)
		rc.Close()
		if canFlush {
			flusher.Flush()
		}
		if copyErr != nil {
			return
		}

		select {
		case <-r.Context().Done():
			return
		default:
		}
	}
}
