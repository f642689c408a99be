package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arung-agamani/denpa-hub/internal/playlist"
)

// PlaylistHandlers exposes CRUD over the renderer-facing playlist engine.
type PlaylistHandlers struct {
	manager *playlist.Manager
}

func NewPlaylistHandlers(manager *playlist.Manager) *PlaylistHandlers {
	return &PlaylistHandlers{manager: manager}
}

func playlistView(pl *playlist.Playlist) gin.H {
	return gin.H{
		"id":         pl.ID(),
		"name":       pl.Name(),
		"persistent": pl.Persistent(),
		"count":      pl.Count(),
		"items":      pl.Items(),
	}
}

// List handles GET /api/playlists
func (h *PlaylistHandlers) List(c *gin.Context) {
	playlists := h.manager.List()
	out := make([]gin.H, 0, len(playlists))
	for _, pl := range playlists {
		out = append(out, playlistView(pl))
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "playlists": out})
}

// Create handles POST /api/playlists
func (h *PlaylistHandlers) Create(c *gin.Context) {
	var body struct {
		Name       string `json:"name"`
		Persistent bool   `json:"persistent"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "name is required"})
		return
	}
	var pl *playlist.Playlist
	if body.Persistent {
		pl = h.manager.CreatePersistentPlaylist(body.Name)
	} else {
		pl = h.manager.CreateEphemeralPlaylist(body.Name)
	}
	c.JSON(http.StatusCreated, gin.H{"status": "ok", "playlist": playlistView(pl)})
}

func (h *PlaylistHandlers) lookup(c *gin.Context) (*playlist.Playlist, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid playlist id"})
		return nil, false
	}
	pl, err := h.manager.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "playlist not found"})
		return nil, false
	}
	return pl, true
}

// Get handles GET /api/playlists/:id
func (h *PlaylistHandlers) Get(c *gin.Context) {
	pl, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "playlist": playlistView(pl)})
}

// Delete handles DELETE /api/playlists/:id
func (h *PlaylistHandlers) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid playlist id"})
		return
	}
	h.manager.Drop(id)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// PushItem handles POST /api/playlists/:id/items
func (h *PlaylistHandlers) PushItem(c *gin.Context) {
	pl, ok := h.lookup(c)
	if !ok {
		return
	}
	var item playlist.PlaybackItem
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid playback item"})
		return
	}
	wh, err := pl.AcquireWriteLock()
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"status": "error", "error": err.Error()})
		return
	}
	defer wh.Release()
	if err := wh.Push(item); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	if err := wh.Flush(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "playlist": playlistView(pl)})
}

// RemoveItem handles DELETE /api/playlists/:id/items/:index
func (h *PlaylistHandlers) RemoveItem(c *gin.Context) {
	pl, ok := h.lookup(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid item index"})
		return
	}
	wh, err := pl.AcquireWriteLock()
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"status": "error", "error": err.Error()})
		return
	}
	defer wh.Release()
	if _, err := wh.RemoveAt(index); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}
	if err := wh.Flush(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "playlist": playlistView(pl)})
}
