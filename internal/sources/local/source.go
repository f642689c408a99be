package local

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arung-agamani/denpa-hub/internal/cache"
	"github.com/arung-agamani/denpa-hub/internal/sources"
)

// Source is the MusicSource implementation backed by a scanned directory of
// audio files, grouped into time-of-day Rotations by a Schedule. Browse/
// GetItems walk the library directly; ResolveURI maps a local file straight
// into the audio cache's "orig" qualifier rather than re-downloading it,
// since the bytes are already on disk.
type Source struct {
	id       string
	musicDir string
	schedule *Schedule
	audio    *cache.Cache
	updateID atomic.Uint32
	lastCh   atomic.Int64
	scanMu   sync.Mutex
}

// NewSource creates a local-library source rooted at musicDir, backed by
// schedule for time-of-day rotation and audio for resolving file paths into
// stable cache pks.
func NewSource(id, musicDir string, schedule *Schedule, audio *cache.Cache) *Source {
	s := &Source{id: id, musicDir: musicDir, schedule: schedule, audio: audio}
	s.lastCh.Store(timeNowUnix())
	return s
}

func timeNowUnix() int64 { return time.Now().Unix() }

func (s *Source) ID() string   { return s.id }
func (s *Source) Name() string { return "Local Library" }

func (s *Source) RootContainer() sources.Container {
	return sources.Container{ID: "local:root", Title: "Local Library", ChildCount: s.schedule.LibraryTrackCount()}
}

// Browse treats each TimeTag as a child container of the root, and each
// Rotation within a tag as a child container of that tag; browsing a
// Rotation's ID lists its tracks as leaf items.
func (s *Source) Browse(ctx context.Context, objectID string) (sources.BrowseResult, error) {
	switch {
	case objectID == "" || objectID == "local:root":
		return s.browseRoot(), nil
	default:
		return s.browseObject(objectID)
	}
}

func (s *Source) browseRoot() sources.BrowseResult {
	var containers []sources.Container
	for _, tag := range ValidTimeTags {
		pls := s.schedule.GetRotations(tag)
		containers = append(containers, sources.Container{
			ID:         "local:tag:" + string(tag),
			Title:      string(tag),
			ParentID:   "local:root",
			ChildCount: len(pls),
		})
	}
	return sources.BrowseResult{Containers: containers, TotalCount: len(containers)}
}

func (s *Source) browseObject(objectID string) (sources.BrowseResult, error) {
	if tag, ok := parseTagContainerID(objectID); ok {
		pls := s.schedule.GetRotations(tag)
		containers := make([]sources.Container, 0, len(pls))
		for _, pl := range pls {
			containers = append(containers, sources.Container{
				ID:         fmt.Sprintf("local:rotation:%d", pl.ID),
				Title:      pl.Name,
				ParentID:   objectID,
				ChildCount: pl.Count(),
			})
		}
		return sources.BrowseResult{Containers: containers, TotalCount: len(containers)}, nil
	}

	if id, ok := parseRotationContainerID(objectID); ok {
		for _, tag := range ValidTimeTags {
			for _, pl := range s.schedule.GetRotations(tag) {
				if pl.ID != id {
					continue
				}
				items := make([]sources.Item, 0, pl.Count())
				for _, t := range tracksOf(pl) {
					items = append(items, trackToItem(objectID, t))
				}
				return sources.BrowseResult{Items: items, TotalCount: len(items)}, nil
			}
		}
	}

	return sources.BrowseResult{}, fmt.Errorf("local source browse %q: %w", objectID, sources.ErrNotFound)
}

func tracksOf(pl *Rotation) []*Track {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	out := make([]*Track, len(pl.Tracks))
	copy(out, pl.Tracks)
	return out
}

func parseTagContainerID(objectID string) (TimeTag, bool) {
	const prefix = "local:tag:"
	if len(objectID) <= len(prefix) || objectID[:len(prefix)] != prefix {
		return "", false
	}
	tag := TimeTag(objectID[len(prefix):])
	return tag, IsValidTimeTag(string(tag))
}

func parseRotationContainerID(objectID string) (int64, bool) {
	const prefix = "local:rotation:"
	if len(objectID) <= len(prefix) || objectID[:len(prefix)] != prefix {
		return 0, false
	}
	var id int64
	if _, err := fmt.Sscanf(objectID[len(prefix):], "%d", &id); err != nil {
		return 0, false
	}
	return id, true
}

func trackToItem(parentID string, t *Track) sources.Item {
	return sources.Item{
		ID:         fmt.Sprintf("local:track:%d", t.ID),
		ParentID:   parentID,
		Title:      t.Title,
		Artist:     t.Artist,
		Album:      t.Album,
		DurationMs: int64(t.Duration) * 1000,
	}
}

// ResolveURI looks up the track by its object ID and ingests its file into
// the audio cache (idempotent by content checksum), returning a cache URI
// the HTTP layer can serve directly.
func (s *Source) ResolveURI(ctx context.Context, objectID string) (string, error) {
	const prefix = "local:track:"
	if len(objectID) <= len(prefix) || objectID[:len(prefix)] != prefix {
		return "", fmt.Errorf("local source resolve %q: %w", objectID, sources.ErrNotFound)
	}

	var id int64
	if _, err := fmt.Sscanf(objectID[len(prefix):], "%d", &id); err != nil {
		return "", fmt.Errorf("local source resolve %q: %w", objectID, sources.ErrNotFound)
	}

	track := s.schedule.Library.GetByID(id)
	if track == nil {
		return "", fmt.Errorf("local source resolve %q: %w", objectID, sources.ErrNotFound)
	}

	ext := filepath.Ext(track.FilePath)
	pk, err := s.audio.AddFromFile(track.FilePath, "local", ext)
	if err != nil {
		return "", fmt.Errorf("local source resolve %q: ingest file: %w", objectID, err)
	}

	return "cache:" + pk + ext, nil
}

// SupportsFIFO reports that the local source can accept ad-hoc queue
// appends against whichever rotation is currently active, via FIFOQueue.
func (s *Source) SupportsFIFO() bool { return true }

// FIFOQueue returns a sources.FIFOQueue over the schedule's active rotation.
// Returns an error wrapping ErrFIFOUnsupported if no rotation is active.
func (s *Source) FIFOQueue() (sources.FIFOQueue, error) {
	rotation, err := s.schedule.ActiveRotation()
	if err != nil {
		return nil, fmt.Errorf("local source fifo queue: %w: %v", sources.ErrFIFOUnsupported, err)
	}
	return NewRotationFIFO(rotation, s.schedule.Library), nil
}

func (s *Source) UpdateID() uint32 { return s.updateID.Load() }

func (s *Source) LastChange() time.Time { return time.Unix(s.lastCh.Load(), 0) }

// bumpChange is called by Rescan to advance the
// freshness markers UPnP ContentDirectory clients poll for.
func (s *Source) bumpChange() {
	s.updateID.Add(1)
	s.lastCh.Store(timeNowUnix())
}

// GetItems pages over every track in the library (whether or not a rotation
// holds it), in ID order, for MediaServer enumeration.
func (s *Source) GetItems(ctx context.Context, offset, count int) ([]sources.Item, error) {
	all := s.schedule.Library.List()
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + count
	if end > len(all) || count <= 0 {
		end = len(all)
	}
	out := make([]sources.Item, 0, end-offset)
	for _, t := range all[offset:end] {
		out = append(out, trackToItem("local:root", t))
	}
	return out, nil
}

// Rescan walks musicDir for new/removed tracks, folds them into the
// library, and bumps the change markers so browsing clients refresh.
func (s *Source) Rescan() (*ScanResult, int, error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	result, added, err := ScanIntoLibrary(s.musicDir, s.schedule.Library)
	if err != nil {
		return result, added, err
	}
	s.bumpChange()
	return result, added, nil
}
