package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arung-agamani/denpa-hub/internal/channel"
)

// ChannelEntry pairs a running Channel with the HTTP handlers serving it.
type ChannelEntry struct {
	Descriptor channel.Descriptor
	Channel    *channel.Channel
	Stream     *channel.StreamHandler
	OggStream  *channel.StreamHandler
	ICYStream  *channel.StreamHandler
	History    *channel.HistoricHandler
}

// ChannelHandlers exposes channel discovery/status and mounts each
// channel's stream/history handlers under its slug.
type ChannelHandlers struct {
	entries map[string]*ChannelEntry
	order   []string
}

func NewChannelHandlers(entries []*ChannelEntry) *ChannelHandlers {
	h := &ChannelHandlers{entries: make(map[string]*ChannelEntry, len(entries))}
	for _, e := range entries {
		h.entries[e.Descriptor.Slug] = e
		h.order = append(h.order, e.Descriptor.Slug)
	}
	return h
}

// List handles GET /api/channels
func (h *ChannelHandlers) List(c *gin.Context) {
	out := make([]gin.H, 0, len(h.order))
	for _, slug := range h.order {
		e := h.entries[slug]
		out = append(out, gin.H{
			"slug":          e.Descriptor.Slug,
			"kind":          e.Descriptor.Kind,
			"display_name":  e.Descriptor.DisplayName,
			"state":         e.Channel.State().String(),
			"active_clients": e.Channel.ActiveClients(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "channels": out})
}

// Get handles GET /api/channels/:slug
func (h *ChannelHandlers) Get(c *gin.Context) {
	e, ok := h.entries[c.Param("slug")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "unknown channel"})
		return
	}
	title, artist, _, coverURL, _ := e.Channel.Metadata().Get()
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"channel": gin.H{
			"slug":           e.Descriptor.Slug,
			"kind":           e.Descriptor.Kind,
			"display_name":   e.Descriptor.DisplayName,
			"state":          e.Channel.State().String(),
			"active_clients": e.Channel.ActiveClients(),
			"now_playing": gin.H{
				"title":     title,
				"artist":    artist,
				"cover_url": coverURL,
			},
		},
	})
}

// Mount registers each channel's stream/history handlers as gin GET routes,
// wrapping each raw http.Handler with gin.WrapH so it keeps full control of
// flushing and headers.
func (h *ChannelHandlers) Mount(engine *gin.Engine) {
	for _, slug := range h.order {
		e := h.entries[slug]
		engine.GET("/stream/"+slug, gin.WrapH(e.Stream))
		if e.OggStream != nil {
			engine.GET("/stream/"+slug+"/ogg", gin.WrapH(e.OggStream))
		}
		if e.ICYStream != nil {
			engine.GET("/stream/"+slug+"/icy", gin.WrapH(e.ICYStream))
		}
		if e.History != nil {
			engine.GET("/history/"+slug, gin.WrapH(e.History))
		}
	}
}
