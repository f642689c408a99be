package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arung-agamani/denpa-hub/internal/renderer"
)

// RendererRegistry holds every configured renderer backend, keyed by the ID
// in its own RendererInfo.
type RendererRegistry struct {
	backends map[string]renderer.TransportControl
	order    []string
}

func NewRendererRegistry() *RendererRegistry {
	return &RendererRegistry{backends: make(map[string]renderer.TransportControl)}
}

// Register adds a backend to the registry under its own RendererInfo.ID.
func (r *RendererRegistry) Register(b renderer.TransportControl) {
	id := b.Info().ID
	if _, exists := r.backends[id]; !exists {
		r.order = append(r.order, id)
	}
	r.backends[id] = b
}

func (r *RendererRegistry) Get(id string) (renderer.TransportControl, bool) {
	b, ok := r.backends[id]
	return b, ok
}

// RendererHandlers exposes the renderer capability-interface contract over
// HTTP: every handler type-asserts for the optional interface it needs and
// reports renderer.ErrOperationNotSupported as 501 rather than faking success.
type RendererHandlers struct {
	registry *RendererRegistry
}

func NewRendererHandlers(registry *RendererRegistry) *RendererHandlers {
	return &RendererHandlers{registry: registry}
}

// List handles GET /api/renderers
func (h *RendererHandlers) List(c *gin.Context) {
	out := make([]renderer.RendererInfo, 0, len(h.registry.order))
	for _, id := range h.registry.order {
		out = append(out, h.registry.backends[id].Info())
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "renderers": out})
}

func (h *RendererHandlers) lookup(c *gin.Context) (renderer.TransportControl, bool) {
	b, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "unknown renderer"})
		return nil, false
	}
	return b, true
}

func writeRendererErr(c *gin.Context, err error) {
	if errors.Is(err, renderer.ErrOperationNotSupported) {
		c.JSON(http.StatusNotImplemented, gin.H{"status": "error", "error": "operation not supported by this renderer"})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"status": "error", "error": err.Error()})
}

// PlayURI handles POST /api/renderers/:id/play-uri
func (h *RendererHandlers) PlayURI(c *gin.Context) {
	b, ok := h.lookup(c)
	if !ok {
		return
	}
	var body struct {
		URI      string `json:"uri"`
		Title    string `json:"title"`
		Artist   string `json:"artist"`
		Album    string `json:"album"`
		CoverURL string `json:"cover_url"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.URI == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "uri is required"})
		return
	}
	meta := renderer.TrackMetadata{Title: body.Title, Artist: body.Artist, Album: body.Album, CoverURL: body.CoverURL}
	if err := b.PlayURI(c.Request.Context(), body.URI, meta); err != nil {
		writeRendererErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// transportAction wires a simple no-body transport verb (play/pause/stop).
func (h *RendererHandlers) transportAction(action func(renderer.TransportControl, *gin.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, ok := h.lookup(c)
		if !ok {
			return
		}
		if err := action(b, c); err != nil {
			writeRendererErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (h *RendererHandlers) Play(c *gin.Context) {
	h.transportAction(func(b renderer.TransportControl, c *gin.Context) error { return b.Play(c.Request.Context()) })(c)
}

func (h *RendererHandlers) Pause(c *gin.Context) {
	h.transportAction(func(b renderer.TransportControl, c *gin.Context) error { return b.Pause(c.Request.Context()) })(c)
}

func (h *RendererHandlers) Stop(c *gin.Context) {
	h.transportAction(func(b renderer.TransportControl, c *gin.Context) error { return b.Stop(c.Request.Context()) })(c)
}

// Seek handles POST /api/renderers/:id/seek with either {"position_ms": n}
// for an absolute seek or {"delta_ms": n} for a relative one.
func (h *RendererHandlers) Seek(c *gin.Context) {
	b, ok := h.lookup(c)
	if !ok {
		return
	}
	var body struct {
		PositionMs *int64 `json:"position_ms"`
		DeltaMs    *int64 `json:"delta_ms"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}
	var err error
	switch {
	case body.PositionMs != nil:
		err = b.SeekAbsolute(c.Request.Context(), time.Duration(*body.PositionMs)*time.Millisecond)
	case body.DeltaMs != nil:
		err = b.SeekRelative(c.Request.Context(), time.Duration(*body.DeltaMs)*time.Millisecond)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "position_ms or delta_ms is required"})
		return
	}
	if err != nil {
		writeRendererErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status handles GET /api/renderers/:id/status, reporting whichever of
// PlaybackStatus/PlaybackPosition/VolumeControl the backend implements.
func (h *RendererHandlers) Status(c *gin.Context) {
	b, ok := h.lookup(c)
	if !ok {
		return
	}
	out := gin.H{"info": b.Info()}
	ctx := c.Request.Context()

	if ps, ok := b.(renderer.PlaybackStatus); ok {
		if state, err := ps.Status(ctx); err == nil {
			out["state"] = state.String()
		}
	}
	if pp, ok := b.(renderer.PlaybackPosition); ok {
		if elapsed, total, err := pp.Position(ctx); err == nil {
			out["elapsed_ms"] = elapsed.Milliseconds()
			out["total_ms"] = total.Milliseconds()
		}
	}
	if vc, ok := b.(renderer.VolumeControl); ok {
		if vol, err := vc.GetVolume(ctx); err == nil {
			out["volume"] = vol
		}
		if muted, err := vc.GetMute(ctx); err == nil {
			out["muted"] = muted
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "renderer": out})
}

// SetVolume handles PUT /api/renderers/:id/volume
func (h *RendererHandlers) SetVolume(c *gin.Context) {
	b, ok := h.lookup(c)
	if !ok {
		return
	}
	vc, ok := b.(renderer.VolumeControl)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"status": "error", "error": "renderer has no volume control"})
		return
	}
	var body struct {
		Level *int  `json:"level"`
		Muted *bool `json:"muted"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}
	if body.Level != nil {
		if err := vc.SetVolume(c.Request.Context(), *body.Level); err != nil {
			writeRendererErr(c, err)
			return
		}
	}
	if body.Muted != nil {
		if err := vc.SetMute(c.Request.Context(), *body.Muted); err != nil {
			writeRendererErr(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetQueue handles GET /api/renderers/:id/queue
func (h *RendererHandlers) GetQueue(c *gin.Context) {
	b, ok := h.lookup(c)
	if !ok {
		return
	}
	qb, ok := b.(renderer.QueueBackend)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"status": "error", "error": "renderer has no native queue"})
		return
	}
	uris, err := qb.QueueList(c.Request.Context())
	if err != nil {
		writeRendererErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "queue": uris})
}

// SetQueue handles PUT /api/renderers/:id/queue, reconciling the backend's
// native queue with the desired URI list via renderer.SyncQueue.
func (h *RendererHandlers) SetQueue(c *gin.Context) {
	b, ok := h.lookup(c)
	if !ok {
		return
	}
	qb, ok := b.(renderer.QueueBackend)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"status": "error", "error": "renderer has no native queue"})
		return
	}
	var body struct {
		URIs []string `json:"uris"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}
	if err := renderer.SyncQueue(c.Request.Context(), qb, body.URIs); err != nil {
		writeRendererErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
