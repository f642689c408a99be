package local

import (
	"math/rand/v2"
	"sync"
)

// TimeTag represents a time-of-day category for playlist scheduling.
type TimeTag string

const (
	TagMorning   TimeTag = "morning"
	TagAfternoon TimeTag = "afternoon"
	TagEvening   TimeTag = "evening"
	TagNight     TimeTag = "night"
)

// ValidTimeTags contains all valid TimeTag values.
var ValidTimeTags = []TimeTag{TagMorning, TagAfternoon, TagEvening, TagNight}

// IsValidTimeTag returns true if the given string is a valid TimeTag.
func IsValidTimeTag(s string) bool {
	for _, t := range ValidTimeTags {
		if string(t) == s {
			return true
		}
	}
	return false
}

var (
	rotationIDMu   sync.Mutex
	lastRotationID int64
)

func nextRotationID() int64 {
	rotationIDMu.Lock()
	defer rotationIDMu.Unlock()
	lastRotationID++
	return lastRotationID
}

// SetLastRotationID sets the global rotation-playlist ID counter. Used when
// loading persisted data so newly created playlists don't collide with
// existing IDs.
func SetLastRotationID(id int64) {
	rotationIDMu.Lock()
	defer rotationIDMu.Unlock()
	lastRotationID = id
}

// Rotation is an ordered queue of library tracks tagged with a time-of-day
// category. Tracks are pointers into a shared TrackLibrary so that metadata
// edits in the library are automatically visible everywhere. This is the
// local source's schedule of "what to feed the channel next" — distinct
// from the renderer-facing PlaybackItem queue in internal/playlist.
type Rotation struct {
	mu                   sync.RWMutex
	ID                   int64    `json:"id"`
	Name                 string   `json:"name"`
	Tag                  TimeTag  `json:"tag"`
	Tracks               []*Track `json:"tracks"`
	CurrentTrackChecksum string   `json:"currentTrackChecksum,omitempty"`
	currentIndex         int
	library              *TrackLibrary
}

// SetLibrary associates this rotation with a TrackLibrary.
func (p *Rotation) SetLibrary(lib *TrackLibrary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.library = lib
}

// Library returns the TrackLibrary associated with this rotation, or nil.
func (p *Rotation) Library() *TrackLibrary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.library
}

// TrackChecksums returns the ordered list of track checksums, used when
// persisting rotations so only references (not full track data) hit disk.
func (p *Rotation) TrackChecksums() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cs := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		cs[i] = t.Checksum
	}
	return cs
}

// relocateCursorUnsafe re-computes currentIndex from CurrentTrackChecksum
// after any structural mutation to the Tracks slice. Must be called with
// p.mu held for writing.
func (p *Rotation) relocateCursorUnsafe() {
	if len(p.Tracks) == 0 {
		p.currentIndex = 0
		p.CurrentTrackChecksum = ""
		return
	}

	if p.CurrentTrackChecksum == "" {
		if p.currentIndex >= len(p.Tracks) {
			p.currentIndex = 0
		}
		return
	}

	for i, t := range p.Tracks {
		if t.Checksum == p.CurrentTrackChecksum {
			p.currentIndex = (i + 1) % len(p.Tracks)
			return
		}
	}

	if p.currentIndex >= len(p.Tracks) {
		p.currentIndex = 0
	}
}

// ResolveFromLibrary replaces the Tracks slice with canonical pointers from
// the given library, matched by checksum.
func (p *Rotation) ResolveFromLibrary(lib *TrackLibrary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.library = lib

	resolved := make([]*Track, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		if canonical := lib.Get(t.Checksum); canonical != nil {
			resolved = append(resolved, canonical)
		}
	}
	p.Tracks = resolved

	p.relocateCursorUnsafe()
}

// NewRotation creates a new empty Rotation with the given name and tag.
func NewRotation(name string, tag TimeTag) *Rotation {
	return &Rotation{
		ID:     nextRotationID(),
		Name:   name,
		Tag:    tag,
		Tracks: make([]*Track, 0),
	}
}

// NewRotationWithID creates a Rotation with a pre-assigned ID, used when
// loading from persisted data.
func NewRotationWithID(id int64, name string, tag TimeTag, tracks []*Track, currentChecksum string) *Rotation {
	if tracks == nil {
		tracks = make([]*Track, 0)
	}
	pl := &Rotation{
		ID:                   id,
		Name:                 name,
		Tag:                  tag,
		Tracks:               tracks,
		CurrentTrackChecksum: currentChecksum,
	}
	if currentChecksum != "" {
		for i, t := range tracks {
			if t.Checksum == currentChecksum {
				pl.currentIndex = i
				return pl
			}
		}
	}
	pl.currentIndex = 0
	return pl
}

// Count returns the number of tracks in the rotation.
func (p *Rotation) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.Tracks)
}

// AddTrack appends a track to the end of the rotation, preferring the
// library's canonical pointer when one is set.
func (p *Rotation) AddTrack(track *Track) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.library != nil && track != nil {
		if canonical := p.library.Get(track.Checksum); canonical != nil {
			track = canonical
		}
	}

	p.Tracks = append(p.Tracks, track)
	p.relocateCursorUnsafe()
}

// AddTracks appends multiple tracks to the end of the rotation.
func (p *Rotation) AddTracks(tracks []*Track) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, track := range tracks {
		t := track
		if p.library != nil && t != nil {
			if canonical := p.library.Get(t.Checksum); canonical != nil {
				t = canonical
			}
		}
		p.Tracks = append(p.Tracks, t)
	}
	p.relocateCursorUnsafe()
}

// RemoveTracksByChecksum removes all occurrences of the given checksum and
// returns the count removed. Used when a track is deleted from the library.
func (p *Rotation) RemoveTracksByChecksum(checksum string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	alive := make([]*Track, 0, len(p.Tracks))
	removed := 0
	for _, t := range p.Tracks {
		if t.Checksum == checksum {
			removed++
		} else {
			alive = append(alive, t)
		}
	}
	p.Tracks = alive

	if p.CurrentTrackChecksum == checksum {
		p.CurrentTrackChecksum = ""
	}
	p.relocateCursorUnsafe()

	return removed
}

// Shuffle randomises the order of tracks in the rotation.
func (p *Rotation) Shuffle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	rand.Shuffle(len(p.Tracks), func(i, j int) {
		p.Tracks[i], p.Tracks[j] = p.Tracks[j], p.Tracks[i]
	})

	p.relocateCursorUnsafe()
}

// Next returns the next track in the rotation and advances the internal
// cursor. Returns nil and false if the rotation is empty.
func (p *Rotation) Next() (*Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.Tracks) == 0 {
		return nil, false
	}

	track := p.Tracks[p.currentIndex]
	p.CurrentTrackChecksum = track.Checksum
	p.currentIndex = (p.currentIndex + 1) % len(p.Tracks)

	return track, true
}

// MaxRotationID returns the highest ID found across a slice of rotations.
func MaxRotationID(rotations []*Rotation) int64 {
	var max int64
	for _, pl := range rotations {
		if pl.ID > max {
			max = pl.ID
		}
	}
	return max
}
