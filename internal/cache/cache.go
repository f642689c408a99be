// Package cache implements the content-addressed payload store: SQLite
// metadata rows plus qualifier-suffixed payload files on disk, with lazy
// primary keys, progressive follow-tail reads, and LRU eviction. It follows
// the atomic-write discipline of the teacher's internal/playlist.Store
// (temp file + rename) for every file mutation, and the checksum-keyed
// canonical-pointer idiom of internal/playlist.TrackLibrary for its
// in-memory index.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound  = errors.New("cache: entry not found")
	ErrTruncated = errors.New("cache: follow-reader truncated, writer failed")
)

// staleAfter is the window after which an in-progress download without a
// sentinel is considered abandoned.
const staleAfter = 60 * time.Second

// Entry mirrors the CacheEntry data-model row.
type Entry struct {
	PK         string
	URL        string
	Collection string
	ID         string
	Hits       int64
	Created    time.Time
	LastUsed   time.Time
	Metadata   string
}

// lazyEntry tracks an outstanding L:<uuid> placeholder and its resolver.
type lazyEntry struct {
	once     sync.Once
	resolved chan struct{}
	pk       string
	info     any
	err      error
}

// Cache is one logical bucket (e.g. "audio" or "covers") backed by a shared
// SQLite database and a private directory of payload files.
type Cache struct {
	name  string
	dir   string
	limit int

	db *sql.DB

	mu               sync.Mutex // serializes all DB writes, matching the teacher's single-writer Store
	openHands        map[string]int // pk -> open follow-reader count; excluded from eviction
	lazy             map[string]*lazyEntry
	pendingResolvers sync.Map // placeholder -> func(context.Context) (string, error)
}

// Open creates (or attaches to) a cache bucket named `name`, storing payload
// files under dir and metadata rows in the `name` table of the shared
// cache.db SQLite database at dbPath.
func Open(dbPath, name, dir string, limit int) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir %q: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cache: open db %q: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // single connection; writes are further serialized by mu

	c := &Cache{
		name:      name,
		dir:       dir,
		limit:     limit,
		db:        db,
		openHands: make(map[string]int),
		lazy:      make(map[string]*lazyEntry),
	}

	if err := c.migrate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) migrate() error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		pk TEXT PRIMARY KEY,
		url TEXT,
		collection TEXT,
		id TEXT,
		hits INTEGER DEFAULT 0,
		created INTEGER,
		last_used INTEGER,
		metadata TEXT
	)`, c.name)
	_, err := c.db.Exec(stmt)
	if err != nil {
		return fmt.Errorf("cache: migrate table %q: %w", c.name, err)
	}
	return nil
}

func (c *Cache) Close() error { return c.db.Close() }

// payloadPath builds the on-disk path for a canonical or derived payload.
func (c *Cache) payloadPath(pk, qualifier, ext string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s.%s.%s", pk, qualifier, ext))
}

func (c *Cache) sentinelPath(pk, ext string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s.%s.complete", pk, ext))
}

// computePK hashes the first 512 bytes of content and returns the first 32
// hex characters of the SHA-256 digest, per the spec's content-addressing
// rule.
func computePK(head []byte) string {
	h := sha256.Sum256(head)
	return hex.EncodeToString(h[:16])
}

// AddFromReader downloads/copies from r, computing the pk from the first
// 512 bytes, deduping by pk, writing the remainder to disk, and writing the
// completion sentinel once fsynced.
func (c *Cache) AddFromReader(ctx context.Context, r io.Reader, url, collection, ext string) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("cache: read head: %w", err)
	}
	head = head[:n]
	pk := computePK(head)

	if existing, ok := c.rowExists(pk); ok {
		slog.Debug("cache: dedup hit on insert", "cache", c.name, "pk", pk)
		_ = existing
		return pk, nil
	}

	if err := c.insertRow(pk, url, collection, "", ""); err != nil {
		return "", err
	}

	path := c.payloadPath(pk, "orig", ext)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("cache: create payload %q: %w", path, err)
	}

	if _, err := f.Write(head); err != nil {
		f.Close()
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("cache: stream payload: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	if err := writeSentinel(c.sentinelPath(pk, ext)); err != nil {
		return "", err
	}

	return pk, nil
}

// AddFromFile copies an existing local file into the cache, treating it as
// already-complete (the sentinel is written immediately).
func (c *Cache) AddFromFile(path, collection, ext string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cache: open source file %q: %w", path, err)
	}
	defer f.Close()
	return c.AddFromReader(context.Background(), f, "file://"+path, collection, ext)
}

func writeSentinel(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "sentinel-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	tmp.Close()
	return os.Rename(tmpName, path)
}

func (c *Cache) rowExists(pk string) (Entry, bool) {
	row := c.db.QueryRow(fmt.Sprintf("SELECT pk, url, collection, id, hits, created, last_used, metadata FROM %s WHERE pk = ?", c.name), pk)
	var e Entry
	var created, lastUsed int64
	if err := row.Scan(&e.PK, &e.URL, &e.Collection, &e.ID, &e.Hits, &created, &lastUsed, &e.Metadata); err != nil {
		return Entry{}, false
	}
	e.Created = time.Unix(created, 0)
	e.LastUsed = time.Unix(lastUsed, 0)
	return e, true
}

func (c *Cache) insertRow(pk, url, collection, id, metadata string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := nowUnix()
	_, err := c.db.Exec(
		fmt.Sprintf("INSERT INTO %s (pk, url, collection, id, hits, created, last_used, metadata) VALUES (?,?,?,?,0,?,?,?)", c.name),
		pk, url, nullableString(collection), nullableString(id), now, now, nullableString(metadata),
	)
	if err != nil {
		return fmt.Errorf("cache: insert row: %w", err)
	}

	if err := c.evictIfOverLimit(); err != nil {
		slog.Warn("cache: eviction pass failed", "cache", c.name, "error", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Get returns the absolute path of pk's canonical payload, bumping its hit
// counter and last-used timestamp.
func (c *Cache) Get(pk, ext string) (string, error) {
	e, ok := c.rowExists(pk)
	if !ok {
		return "", fmt.Errorf("%w: pk %q in cache %q", ErrNotFound, pk, c.name)
	}

	c.mu.Lock()
	_, err := c.db.Exec(fmt.Sprintf("UPDATE %s SET hits = hits + 1, last_used = ? WHERE pk = ?", c.name), nowUnix(), pk)
	c.mu.Unlock()
	if err != nil {
		slog.Warn("cache: failed to bump hit counter", "cache", c.name, "pk", pk, "error", err)
	}

	_ = e
	return c.payloadPath(pk, "orig", ext), nil
}

// GetCollection returns payload paths for every row tagged with collection.
func (c *Cache) GetCollection(collection, ext string) ([]string, error) {
	rows, err := c.db.Query(fmt.Sprintf("SELECT pk FROM %s WHERE collection = ?", c.name), collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var pk string
		if err := rows.Scan(&pk); err != nil {
			return nil, err
		}
		out = append(out, c.payloadPath(pk, "orig", ext))
	}
	return out, rows.Err()
}

// IsValidPK reports whether pk's row exists and either the completion
// sentinel exists, or the payload file was modified within the staleness
// window (an in-progress download). Waits up to 1s for the file to appear
// if the row exists but the file has not yet been created.
func (c *Cache) IsValidPK(pk, ext string) bool {
	if _, ok := c.rowExists(pk); !ok {
		return false
	}

	path := c.payloadPath(pk, "orig", ext)
	deadline := time.Now().Add(1 * time.Second)
	var info os.FileInfo
	var err error
	for {
		info, err = os.Stat(path)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(20 * time.Millisecond)
	}

	if _, serr := os.Stat(c.sentinelPath(pk, ext)); serr == nil {
		return true
	}
	return time.Since(info.ModTime()) < staleAfter
}

// Delete removes pk's row and payload files (all qualifiers would need a
// directory scan; the canonical "orig" file plus sentinel are always
// removed here).
func (c *Cache) Delete(pk, ext string) error {
	c.mu.Lock()
	_, err := c.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE pk = ?", c.name), pk)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	os.Remove(c.payloadPath(pk, "orig", ext))
	os.Remove(c.sentinelPath(pk, ext))
	return nil
}

func (c *Cache) DeleteCollection(collection, ext string) error {
	rows, err := c.db.Query(fmt.Sprintf("SELECT pk FROM %s WHERE collection = ?", c.name), collection)
	if err != nil {
		return err
	}
	var pks []string
	for rows.Next() {
		var pk string
		if err := rows.Scan(&pk); err == nil {
			pks = append(pks, pk)
		}
	}
	rows.Close()

	for _, pk := range pks {
		if err := c.Delete(pk, ext); err != nil {
			return err
		}
	}
	return nil
}

// Purge wipes every row and payload file, keeping cache.db itself.
func (c *Cache) Purge() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		os.Remove(filepath.Join(c.dir, e.Name()))
	}

	_, err = c.db.Exec(fmt.Sprintf("DELETE FROM %s", c.name))
	return err
}

// Consolidate re-fetches rows whose payload file is missing and deletes
// orphan files with no backing row.
func (c *Cache) Consolidate(ctx context.Context, fetch func(ctx context.Context, url string) (io.ReadCloser, error), ext string) error {
	rows, err := c.db.Query(fmt.Sprintf("SELECT pk, url FROM %s", c.name))
	if err != nil {
		return err
	}
	type row struct{ pk, url string }
	var all []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.pk, &r.url); err == nil {
			all = append(all, r)
		}
	}
	rows.Close()

	known := make(map[string]bool, len(all))
	for _, r := range all {
		known[r.pk] = true
		path := c.payloadPath(r.pk, "orig", ext)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if fetch == nil || r.url == "" {
				continue
			}
			body, err := fetch(ctx, r.url)
			if err != nil {
				slog.Warn("cache: consolidate re-fetch failed", "pk", r.pk, "error", err)
				continue
			}
			f, err := os.Create(path)
			if err == nil {
				io.Copy(f, body)
				f.Sync()
				f.Close()
				writeSentinel(c.sentinelPath(r.pk, ext))
			}
			body.Close()
		}
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		pk := pkFromFilename(e.Name())
		if pk != "" && !known[pk] {
			os.Remove(filepath.Join(c.dir, e.Name()))
		}
	}
	return nil
}

func pkFromFilename(name string) string {
	for i, r := range name {
		if r == '.' {
			return name[:i]
		}
	}
	return ""
}

// WaitUntilFinished blocks until pk's sentinel appears or ctx is done.
func (c *Cache) WaitUntilFinished(ctx context.Context, pk, ext string) error {
	path := c.sentinelPath(pk, ext)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// evictIfOverLimit deletes the oldest-by-last_used rows, excluding any pk
// with an open follow-tail reader, until count == limit. Caller must hold
// c.mu.
func (c *Cache) evictIfOverLimit() error {
	if c.limit <= 0 {
		return nil
	}
	var count int
	if err := c.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", c.name)).Scan(&count); err != nil {
		return err
	}
	if count <= c.limit {
		return nil
	}

	rows, err := c.db.Query(fmt.Sprintf("SELECT pk FROM %s ORDER BY last_used ASC", c.name))
	if err != nil {
		return err
	}
	var candidates []string
	for rows.Next() {
		var pk string
		if err := rows.Scan(&pk); err == nil {
			candidates = append(candidates, pk)
		}
	}
	rows.Close()

	toRemove := count - c.limit
	for _, pk := range candidates {
		if toRemove <= 0 {
			break
		}
		if c.openHands[pk] > 0 {
			continue // hot entry behind an open follow-reader, skip
		}
		if _, err := c.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE pk = ?", c.name), pk); err != nil {
			continue
		}
		toRemove--
	}
	return nil
}

func nowUnix() int64 { return time.Now().Unix() }

// AddLazy registers a placeholder pk bound to resolver, returning the
// "L:<uuid>" placeholder immediately.
func (c *Cache) AddLazy(resolver func(ctx context.Context) (pk string, err error)) string {
	placeholder := "L:" + uuid.NewString()

	c.mu.Lock()
	c.lazy[placeholder] = &lazyEntry{resolved: make(chan struct{})}
	c.mu.Unlock()

	// The resolver function itself is kept in pendingResolvers, keyed by
	// placeholder, where Resolve looks it up, since lazyEntry only carries
	// state.
	c.pendingResolvers.Store(placeholder, resolver)
	return placeholder
}

// Resolve triggers (at most once) the resolver bound to a lazy placeholder,
// sharing the result across concurrent callers.
func (c *Cache) Resolve(ctx context.Context, placeholder string) (string, error) {
	c.mu.Lock()
	le, ok := c.lazy[placeholder]
	c.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: lazy placeholder %q", ErrNotFound, placeholder)
	}

	le.once.Do(func() {
		resolverAny, _ := c.pendingResolvers.Load(placeholder)
		resolver := resolverAny.(func(context.Context) (string, error))
		pk, err := resolver(ctx)
		le.pk, le.err = pk, err
		close(le.resolved)
	})

	<-le.resolved
	return le.pk, le.err
}
