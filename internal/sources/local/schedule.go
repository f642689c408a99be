package local

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Schedule holds collections of rotations organised by time-of-day tags. The
// local source feeds its channel from the active rotation, which is
// determined by the current time and the tag assignments.
type Schedule struct {
	mu        sync.RWMutex
	Morning   []*Rotation `json:"morning"`
	Afternoon []*Rotation `json:"afternoon"`
	Evening   []*Rotation `json:"evening"`
	Night     []*Rotation `json:"night"`

	// Library is the single source of truth for all track data.
	Library *TrackLibrary `json:"-"`

	activeTag           TimeTag
	activeRotationIndex int

	location     *time.Location
	timezoneName string
}

// NewSchedule creates a new Schedule with empty slices for each time tag and
// a fresh TrackLibrary.
func NewSchedule() *Schedule {
	return &Schedule{
		Morning:   make([]*Rotation, 0),
		Afternoon: make([]*Rotation, 0),
		Evening:   make([]*Rotation, 0),
		Night:     make([]*Rotation, 0),
		Library:   NewTrackLibrary(),
	}
}

// NewScheduleWithLibrary creates a new Schedule using an existing TrackLibrary.
func NewScheduleWithLibrary(lib *TrackLibrary) *Schedule {
	if lib == nil {
		lib = NewTrackLibrary()
	}
	return &Schedule{
		Morning:   make([]*Rotation, 0),
		Afternoon: make([]*Rotation, 0),
		Evening:   make([]*Rotation, 0),
		Night:     make([]*Rotation, 0),
		Library:   lib,
	}
}

// GetRotations returns the slice of rotations assigned to the given tag.
func (s *Schedule) GetRotations(tag TimeTag) []*Rotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getRotationsUnsafe(tag)
}

func (s *Schedule) getRotationsUnsafe(tag TimeTag) []*Rotation {
	switch tag {
	case TagMorning:
		return s.Morning
	case TagAfternoon:
		return s.Afternoon
	case TagEvening:
		return s.Evening
	case TagNight:
		return s.Night
	default:
		return nil
	}
}

func (s *Schedule) setRotationsUnsafe(tag TimeTag, pls []*Rotation) {
	switch tag {
	case TagMorning:
		s.Morning = pls
	case TagAfternoon:
		s.Afternoon = pls
	case TagEvening:
		s.Evening = pls
	case TagNight:
		s.Night = pls
	}
}

// AssignRotation adds a rotation to the specified time tag, replacing any
// rotation under that tag sharing its ID.
func (s *Schedule) AssignRotation(tag TimeTag, pl *Rotation) error {
	if !IsValidTimeTag(string(tag)) {
		return fmt.Errorf("invalid time tag: %s", tag)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pl.Tag = tag
	if s.Library != nil {
		pl.SetLibrary(s.Library)
	}

	existing := s.getRotationsUnsafe(tag)
	for i, p := range existing {
		if p.ID == pl.ID {
			existing[i] = pl
			s.setRotationsUnsafe(tag, existing)
			return nil
		}
	}

	s.setRotationsUnsafe(tag, append(existing, pl))
	return nil
}

// AllRotations returns every rotation across all tags.
func (s *Schedule) AllRotations() []*Rotation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*Rotation
	for _, tag := range ValidTimeTags {
		all = append(all, s.getRotationsUnsafe(tag)...)
	}
	return all
}

// AllTracks returns every track across all rotations, possibly with
// duplicates.
func (s *Schedule) AllTracks() []*Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tracks []*Track
	for _, tag := range ValidTimeTags {
		for _, pl := range s.getRotationsUnsafe(tag) {
			pl.mu.RLock()
			tracks = append(tracks, pl.Tracks...)
			pl.mu.RUnlock()
		}
	}
	return tracks
}

// RemoveTrackFromAll removes a track (by checksum) from every rotation.
// Returns the total number of occurrences removed.
func (s *Schedule) RemoveTrackFromAll(checksum string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, tag := range ValidTimeTags {
		for _, pl := range s.getRotationsUnsafe(tag) {
			total += pl.RemoveTracksByChecksum(checksum)
		}
	}
	return total
}

// TimeTagForHour returns the appropriate TimeTag for the given hour (0-23).
func TimeTagForHour(hour int) TimeTag {
	switch {
	case hour >= 6 && hour < 12:
		return TagMorning
	case hour >= 12 && hour < 18:
		return TagAfternoon
	case hour >= 18 && hour < 21:
		return TagEvening
	default:
		return TagNight
	}
}

// CurrentTimeTag returns the TimeTag for the current time in UTC.
func CurrentTimeTag() TimeTag {
	return TimeTagForHour(time.Now().UTC().Hour())
}

// CurrentTimeTagIn returns the TimeTag for the current time in the given
// location. If loc is nil, UTC is used.
func CurrentTimeTagIn(loc *time.Location) TimeTag {
	if loc == nil {
		loc = time.UTC
	}
	return TimeTagForHour(time.Now().In(loc).Hour())
}

// ResolveActiveTag determines which time tag should be active and returns
// whether a change from the previous active tag occurred.
func (s *Schedule) ResolveActiveTag() (TimeTag, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tag := CurrentTimeTagIn(s.location)
	changed := tag != s.activeTag
	if changed {
		s.activeTag = tag
		s.activeRotationIndex = 0
	}
	return tag, changed
}

// SetActiveTag explicitly sets the active tag.
func (s *Schedule) SetActiveTag(tag TimeTag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeTag = tag
	s.activeRotationIndex = 0
}

// SetTimezone sets the IANA timezone used for time-tag resolution. An empty
// string resets to UTC.
func (s *Schedule) SetTimezone(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		s.location = time.UTC
		s.timezoneName = ""
		slog.Info("Timezone set to UTC")
		return nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", name, err)
	}

	s.location = loc
	s.timezoneName = name
	slog.Info("Timezone updated", "timezone", name)
	return nil
}

// Timezone returns the IANA timezone name currently configured.
func (s *Schedule) Timezone() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timezoneName
}

// Location returns the *time.Location currently configured.
func (s *Schedule) Location() *time.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.location == nil {
		return time.UTC
	}
	return s.location
}

// ActiveTag returns the currently active time tag.
func (s *Schedule) ActiveTag() TimeTag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeTag
}

// ActiveRotation returns the rotation that should currently be feeding the
// channel, falling back through the tags in order if the active tag has none.
func (s *Schedule) ActiveRotation() (*Rotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pls := s.getRotationsUnsafe(s.activeTag); len(pls) > 0 {
		if s.activeRotationIndex >= len(pls) {
			s.activeRotationIndex = 0
		}
		return pls[s.activeRotationIndex], nil
	}

	for _, tag := range ValidTimeTags {
		if pls := s.getRotationsUnsafe(tag); len(pls) > 0 {
			return pls[0], nil
		}
	}

	return nil, errors.New("no rotations available in schedule")
}

// Next returns the next track to play from the active rotation, advancing
// through rotations within the active tag as each empties out.
func (s *Schedule) Next() (*Track, *Rotation, error) {
	s.mu.Lock()

	var rotations []*Rotation
	if pls := s.getRotationsUnsafe(s.activeTag); len(pls) > 0 {
		rotations = pls
	} else {
		for _, tag := range ValidTimeTags {
			if pls := s.getRotationsUnsafe(tag); len(pls) > 0 {
				rotations = pls
				break
			}
		}
	}

	if len(rotations) == 0 {
		s.mu.Unlock()
		return nil, nil, errors.New("no rotations available")
	}

	if s.activeRotationIndex >= len(rotations) {
		s.activeRotationIndex = 0
	}

	pl := rotations[s.activeRotationIndex]
	s.mu.Unlock()

	track, ok := pl.Next()
	if !ok {
		s.mu.Lock()
		s.activeRotationIndex = (s.activeRotationIndex + 1) % len(rotations)
		nextPl := rotations[s.activeRotationIndex]
		s.mu.Unlock()

		track, ok = nextPl.Next()
		if !ok {
			return nil, nextPl, errors.New("all rotations are empty")
		}
		return track, nextPl, nil
	}

	return track, pl, nil
}

// Summary returns a map of tag -> number of rotations for quick inspection.
func (s *Schedule) Summary() map[TimeTag]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[TimeTag]int{
		TagMorning:   len(s.Morning),
		TagAfternoon: len(s.Afternoon),
		TagEvening:   len(s.Evening),
		TagNight:     len(s.Night),
	}
}

// LibraryTrackCount returns the number of unique tracks in the library.
func (s *Schedule) LibraryTrackCount() int {
	if s.Library == nil {
		return 0
	}
	return s.Library.Count()
}

// IsEmpty returns true if there are no rotations assigned to any tag.
func (s *Schedule) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tag := range ValidTimeTags {
		if len(s.getRotationsUnsafe(tag)) > 0 {
			return false
		}
	}
	return true
}
