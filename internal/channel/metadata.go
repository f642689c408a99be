package channel

import "sync/atomic"

type metadataFields struct {
	Title    string
	Artist   string
	CoverPK  string
	CoverURL string
}

// MetadataSnapshot is the shared now-playing state read by both the ICY
// wrapper and a JSON status endpoint. Version is a simple atomic.Uint64,
// the same primitive the teacher uses for lastTrackID/lastPlaylistID
// counters, incremented on every change so readers can detect staleness
// without a lock.
type MetadataSnapshot struct {
	fields  atomic.Value // metadataFields
	version atomic.Uint64
}

// NewMetadataSnapshot creates an empty snapshot at version 0.
func NewMetadataSnapshot() *MetadataSnapshot {
	m := &MetadataSnapshot{}
	m.fields.Store(metadataFields{})
	return m
}

// Set replaces the metadata tuple and strictly increments the version.
func (m *MetadataSnapshot) Set(title, artist, coverPK, coverURL string) {
	m.fields.Store(metadataFields{Title: title, Artist: artist, CoverPK: coverPK, CoverURL: coverURL})
	m.version.Add(1)
}

// Get returns the current tuple and its version.
func (m *MetadataSnapshot) Get() (title, artist, coverPK, coverURL string, version uint64) {
	f, _ := m.fields.Load().(metadataFields)
	return f.Title, f.Artist, f.CoverPK, f.CoverURL, m.version.Load()
}

// Version returns the current version without the rest of the tuple.
func (m *MetadataSnapshot) Version() uint64 { return m.version.Load() }
