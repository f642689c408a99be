package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/arung-agamani/denpa-hub/internal/sources"
)

// RotationFIFO adapts a single Rotation into a FIFO append/pop queue, the
// shape the teacher's legacy string-path Playlist offered before the
// TrackLibrary/MasterPlaylist split. The local source never queues arbitrary
// URIs the way a UPnP AVTransport queue does — only tracks already resolved
// into the library — so AppendTrack requires item.ID to be a
// "local:track:<id>" object ID minted by Source.Browse/GetItems.
type RotationFIFO struct {
	mu       sync.Mutex
	rotation *Rotation
	library  *TrackLibrary
}

// NewRotationFIFO wraps rotation for FIFO-style append/pop against lib.
func NewRotationFIFO(rotation *Rotation, lib *TrackLibrary) *RotationFIFO {
	return &RotationFIFO{rotation: rotation, library: lib}
}

// AppendTrack pushes item onto the tail of the rotation's queue.
func (f *RotationFIFO) AppendTrack(ctx context.Context, item sources.Item) error {
	var id int64
	if _, err := fmt.Sscanf(item.ID, "local:track:%d", &id); err != nil {
		return fmt.Errorf("%w: not a local track id %q", sources.ErrNotFound, item.ID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	track := f.library.GetByID(id)
	if track == nil {
		return fmt.Errorf("%w: track %d", sources.ErrNotFound, id)
	}
	f.rotation.AddTrack(track)
	return nil
}

// RemoveOldest pops the track at the head of the rotation's queue, returning
// it as a sources.Item. Unlike Rotation.Next, the track is removed rather
// than cycled back to the tail — the queue is consumed, not looped.
func (f *RotationFIFO) RemoveOldest(ctx context.Context) (sources.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	track, ok := f.rotation.Next()
	if !ok {
		return sources.Item{}, sources.ErrNotFound
	}
	f.rotation.RemoveTracksByChecksum(track.Checksum)
	parentID := fmt.Sprintf("local:rotation:%d", f.rotation.ID)
	return trackToItem(parentID, track), nil
}
