package playlist

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Manager owns every Playlist in the system, persistent and ephemeral alike,
// and assigns them stable IDs. It is the generalisation of the teacher's
// time-tag MasterPlaylist: instead of four fixed time-of-day slots it holds
// an open-ended set of renderer-facing queues, some durable (user-created,
// snapshotted to disk) and some ephemeral (a temporary "play this URI now"
// queue that disappears once nobody reads from it for a while).
type Manager struct {
	mu        sync.RWMutex
	playlists map[int64]*Playlist
	nextID    atomic.Int64
	store     *Store
}

// NewManager creates an empty Manager backed by the given Store for
// persistent-playlist snapshotting. store may be nil to disable persistence
// (tests, or a pure in-memory deployment).
func NewManager(store *Store) *Manager {
	return &Manager{
		playlists: make(map[int64]*Playlist),
		store:     store,
	}
}

func (m *Manager) allocateID() int64 {
	return m.nextID.Add(1)
}

// CreatePersistentPlaylist creates a new named, disk-backed playlist.
func (m *Manager) CreatePersistentPlaylist(name string) *Playlist {
	pl := NewPlaylist(m.allocateID(), name, true)
	m.mu.Lock()
	m.playlists[pl.ID()] = pl
	m.mu.Unlock()
	return pl
}

// CreateEphemeralPlaylist creates a new named in-memory-only playlist. It is
// subject to TTL eviction by a Reaper once idle.
func (m *Manager) CreateEphemeralPlaylist(name string) *Playlist {
	pl := NewPlaylist(m.allocateID(), name, false)
	m.mu.Lock()
	m.playlists[pl.ID()] = pl
	m.mu.Unlock()
	return pl
}

// Get returns the playlist with the given ID, or ErrNotFound.
func (m *Manager) Get(id int64) (*Playlist, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pl, ok := m.playlists[id]
	if !ok {
		return nil, fmt.Errorf("playlist %d: %w", id, ErrNotFound)
	}
	return pl, nil
}

// Drop removes a playlist from the manager entirely (persistent playlists are
// also deleted from disk by the caller via Store, if desired).
func (m *Manager) Drop(id int64) {
	m.mu.Lock()
	delete(m.playlists, id)
	m.mu.Unlock()
}

// List returns every playlist currently registered, in no particular order.
func (m *Manager) List() []*Playlist {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Playlist, 0, len(m.playlists))
	for _, pl := range m.playlists {
		out = append(out, pl)
	}
	return out
}

// SwapCachePK propagates a lazy-pk resolution to every playlist that
// referenced the placeholder, persisting any persistent playlist that
// changed.
func (m *Manager) SwapCachePK(oldPK, newPK string) {
	for _, pl := range m.List() {
		if n := pl.SwapCachePK(oldPK, newPK); n > 0 && pl.Persistent() && m.store != nil {
			if err := m.store.SavePlaylist(pl); err != nil {
				continue
			}
		}
	}
}

// Restore loads every persistent playlist snapshot from the store into the
// manager. Call once at startup after NewManager.
func (m *Manager) Restore() error {
	if m.store == nil {
		return nil
	}
	snapshots, err := m.store.LoadAll()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var maxID int64
	for _, pl := range snapshots {
		m.playlists[pl.ID()] = pl
		if pl.ID() > maxID {
			maxID = pl.ID()
		}
	}
	if cur := m.nextID.Load(); maxID > cur {
		m.nextID.Store(maxID)
	}
	return nil
}
