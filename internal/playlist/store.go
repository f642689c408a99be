package playlist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// playlistSnapshot is the on-disk representation of a persistent Playlist:
// its items verbatim (PlaybackItem already carries everything needed to
// re-resolve a cache entry, unlike the teacher's checksum-indirection
// through a TrackLibrary) plus enough bookkeeping to restore it unchanged.
type playlistSnapshot struct {
	ID    int64          `json:"id"`
	Name  string         `json:"name"`
	Items []PlaybackItem `json:"items"`
}

// Store persists playlist snapshots as one JSON file per playlist (atomic
// temp-file-then-rename writes, following the teacher's own save discipline)
// and keeps a small SQLite-backed play history alongside them.
type Store struct {
	mu  sync.Mutex
	dir string
	db  *sql.DB
}

// NewStore creates a Store rooted at dir. The directory (and a history.db
// SQLite file inside it) are created if missing.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("playlist store: create directory %q: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "history.db"))
	if err != nil {
		return nil, fmt.Errorf("playlist store: open history db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{dir: dir, db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS history_entry (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			playlist_id INTEGER NOT NULL,
			media_server_id TEXT NOT NULL,
			didl_id TEXT NOT NULL,
			title TEXT,
			cache_pk TEXT,
			played_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("playlist store: migrate history table: %w", err)
	}
	return nil
}

// Close releases the underlying history database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) snapshotPath(id int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("playlist-%d.json", id))
}

// SavePlaylist atomically snapshots one playlist's current items to disk.
// Only meaningful for persistent playlists, but harmless for any.
func (s *Store) SavePlaylist(pl *Playlist) error {
	snap := playlistSnapshot{
		ID:    pl.ID(),
		Name:  pl.Name(),
		Items: pl.Items(),
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("playlist store: marshal playlist %d: %w", pl.ID(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "playlist-*.json.tmp")
	if err != nil {
		return fmt.Errorf("playlist store: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("playlist store: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("playlist store: close temp file: %w", err)
	}

	dest := s.snapshotPath(pl.ID())
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("playlist store: rename temp file to %q: %w", dest, err)
	}

	slog.Debug("Playlist snapshotted", "id", pl.ID(), "name", pl.Name(), "items", len(snap.Items))
	return nil
}

// DeletePlaylist removes a playlist's snapshot file from disk.
func (s *Store) DeletePlaylist(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.snapshotPath(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("playlist store: delete playlist %d: %w", id, err)
	}
	return nil
}

// LoadAll reads every playlist snapshot file in the store's directory and
// reconstructs the corresponding Playlist objects, marked persistent.
func (s *Store) LoadAll() ([]*Playlist, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("playlist store: read directory %q: %w", s.dir, err)
	}

	var out []*Playlist
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "playlist-") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			slog.Warn("Skipping unreadable playlist snapshot", "file", e.Name(), "error", err)
			continue
		}

		var snap playlistSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			slog.Warn("Skipping corrupt playlist snapshot", "file", e.Name(), "error", err)
			continue
		}

		pl := NewPlaylist(snap.ID, snap.Name, true)
		pl.items = append(pl.items, snap.Items...)
		out = append(out, pl)
	}

	slog.Info("Playlist snapshots restored", "count", len(out))
	return out, nil
}

// HistoryEntry is one row of play history: an item that was popped off a
// playlist and handed to the channel for streaming.
type HistoryEntry struct {
	ID            int64
	PlaylistID    int64
	MediaServerID string
	DidlID        string
	Title         string
	CachePK       string
	PlayedAt      time.Time
}

// RecordHistory appends a play-history row. Failures are non-fatal to the
// caller's playback path, so callers typically log rather than propagate.
func (s *Store) RecordHistory(ctx context.Context, playlistID int64, item PlaybackItem, playedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history_entry (playlist_id, media_server_id, didl_id, title, cache_pk, played_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, playlistID, item.MediaServerID, item.DidlID, item.Title, item.CachePK, playedAt.Unix())
	if err != nil {
		return fmt.Errorf("playlist store: record history: %w", err)
	}
	return nil
}

// RecentHistory returns up to limit most-recent history rows, newest first.
func (s *Store) RecentHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, playlist_id, media_server_id, didl_id, title, cache_pk, played_at
		FROM history_entry
		ORDER BY played_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("playlist store: query history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		var playedAtUnix int64
		if err := rows.Scan(&h.ID, &h.PlaylistID, &h.MediaServerID, &h.DidlID, &h.Title, &h.CachePK, &playedAtUnix); err != nil {
			return nil, fmt.Errorf("playlist store: scan history row: %w", err)
		}
		h.PlayedAt = time.Unix(playedAtUnix, 0)
		out = append(out, h)
	}
	return out, rows.Err()
}
