// Package playlist implements the ordered PlaybackItem queue engine: a
// single write-token plus many independent read-handle cursors, TTL-based
// in-memory eviction with disk resurrection, and the lazy-pk swap protocol.
// It generalizes the teacher's Track-slice Playlist (playlist.go, store.go,
// library.go) from an audio-file-specific queue into one keyed by the
// renderer-facing PlaybackItem.
package playlist

// PlaybackItem is the unit the renderer queue and playlist engine both
// hold. Identity is the pair (MediaServerID, DidlID).
type PlaybackItem struct {
	MediaServerID string `json:"mediaServerId"`
	DidlID        string `json:"didlId"`
	Title         string `json:"title"`
	Artist        string `json:"artist,omitempty"`
	Album         string `json:"album,omitempty"`
	AlbumArtURI   string `json:"albumArtUri,omitempty"`
	DurationMs    int64  `json:"durationMs"`
	CachePK       string `json:"cachePk"`
	Metadata      string `json:"metadata,omitempty"`
}

// Identity returns the (media_server_id, didl_id) pair that uniquely
// identifies this item within one playlist position.
func (p PlaybackItem) Identity() (string, string) {
	return p.MediaServerID, p.DidlID
}

// IsLazy reports whether the item's cache key is still an unresolved L:
// placeholder.
func (p PlaybackItem) IsLazy() bool {
	return len(p.CachePK) > 2 && p.CachePK[0] == 'L' && p.CachePK[1] == ':'
}
