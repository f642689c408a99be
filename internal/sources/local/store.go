package local

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// storeDataV1 is the legacy on-disk format where rotations embed full track
// objects directly. Only used for reading old data files during migration.
type storeDataV1 struct {
	Morning   []*Rotation `json:"morning"`
	Afternoon []*Rotation `json:"afternoon"`
	Evening   []*Rotation `json:"evening"`
	Night     []*Rotation `json:"night"`
}

// storeRotationV2 is the per-rotation representation in the v2 format: an
// ordered list of checksums referencing entries in the library, rather than
// embedded Track objects.
type storeRotationV2 struct {
	ID                   int64    `json:"id"`
	Name                 string   `json:"name"`
	Tag                  TimeTag  `json:"tag"`
	TrackChecksums       []string `json:"trackChecksums"`
	CurrentTrackChecksum string   `json:"currentTrackChecksum,omitempty"`
}

// storeDataV2 is the current on-disk format.
type storeDataV2 struct {
	Version   int                           `json:"version"`
	Timezone  string                        `json:"timezone,omitempty"`
	Library   *TrackLibrary                 `json:"library"`
	Rotations map[string][]*storeRotationV2 `json:"rotations"`
}

// Store handles loading and saving a Schedule to a JSON file on disk.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a new Store reading from and writing to the given file
// path. The parent directory is created automatically if missing.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %q: %w", dir, err)
	}
	return &Store{path: path}, nil
}

// Path returns the file path used by this store.
func (s *Store) Path() string { return s.path }

// Exists returns true if the store file already exists on disk.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Save serialises the Schedule (including its TrackLibrary) to JSON and
// writes it to disk atomically (write to temp file, then rename).
func (s *Store) Save(schedule *Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule.mu.RLock()

	data := storeDataV2{
		Version:   2,
		Timezone:  schedule.Timezone(),
		Library:   schedule.Library,
		Rotations: make(map[string][]*storeRotationV2),
	}

	for _, tag := range ValidTimeTags {
		pls := schedule.getRotationsUnsafe(tag)
		storePls := make([]*storeRotationV2, 0, len(pls))
		for _, pl := range pls {
			storePls = append(storePls, rotationToStoreV2(pl))
		}
		data.Rotations[string(tag)] = storePls
	}

	schedule.mu.RUnlock()

	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "schedule-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(jsonBytes); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file to %q: %w", s.path, err)
	}

	slog.Info("Schedule saved to disk", "path", s.path)
	return nil
}

func rotationToStoreV2(pl *Rotation) *storeRotationV2 {
	pl.mu.RLock()
	defer pl.mu.RUnlock()

	checksums := make([]string, len(pl.Tracks))
	for i, t := range pl.Tracks {
		checksums[i] = t.Checksum
	}

	return &storeRotationV2{
		ID:                   pl.ID,
		Name:                 pl.Name,
		Tag:                  pl.Tag,
		TrackChecksums:       checksums,
		CurrentTrackChecksum: pl.CurrentTrackChecksum,
	}
}

// Load reads the JSON file from disk and reconstructs a Schedule. It
// transparently handles both v1 (legacy) and v2 (current) formats.
func (s *Store) Load() (*Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file %q: %w", s.path, err)
	}

	var versionProbe struct {
		Version int `json:"version"`
	}
	_ = json.Unmarshal(raw, &versionProbe)

	if versionProbe.Version >= 2 {
		return s.loadV2(raw)
	}
	return s.loadV1(raw)
}

func (s *Store) loadV2(raw []byte) (*Schedule, error) {
	var data storeDataV2
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse v2 schedule file %q: %w", s.path, err)
	}

	lib := data.Library
	if lib == nil {
		lib = NewTrackLibrary()
	}

	schedule := NewScheduleWithLibrary(lib)

	if data.Timezone != "" {
		if err := schedule.SetTimezone(data.Timezone); err != nil {
			slog.Warn("Ignoring invalid persisted timezone", "timezone", data.Timezone, "error", err)
		}
	}

	for _, tag := range ValidTimeTags {
		storePls, ok := data.Rotations[string(tag)]
		if !ok {
			continue
		}
		for _, sp := range storePls {
			pl := storeV2ToRotation(sp, tag, lib)
			schedule.setRotationsUnsafe(tag, append(schedule.getRotationsUnsafe(tag), pl))
		}
	}

	syncRotationIDCounter(schedule)

	slog.Info("Schedule loaded from disk (v2)",
		"path", s.path,
		"timezone", data.Timezone,
		"library_tracks", lib.Count(),
		"morning", len(schedule.Morning),
		"afternoon", len(schedule.Afternoon),
		"evening", len(schedule.Evening),
		"night", len(schedule.Night),
	)

	return schedule, nil
}

func storeV2ToRotation(sp *storeRotationV2, tag TimeTag, lib *TrackLibrary) *Rotation {
	tracks := lib.Resolve(sp.TrackChecksums)

	pl := &Rotation{
		ID:                   sp.ID,
		Name:                 sp.Name,
		Tag:                  tag,
		Tracks:               tracks,
		CurrentTrackChecksum: sp.CurrentTrackChecksum,
		library:              lib,
	}

	if sp.CurrentTrackChecksum != "" {
		for i, t := range pl.Tracks {
			if t.Checksum == sp.CurrentTrackChecksum {
				pl.currentIndex = i
				break
			}
		}
	}

	return pl
}

func (s *Store) loadV1(raw []byte) (*Schedule, error) {
	var data storeDataV1
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse v1 schedule file %q: %w", s.path, err)
	}

	slog.Info("Migrating v1 schedule format to v2", "path", s.path)

	lib := NewTrackLibrary()
	allRotations := [][]*Rotation{data.Morning, data.Afternoon, data.Evening, data.Night}
	for _, pls := range allRotations {
		for _, pl := range pls {
			if pl.Tracks == nil {
				pl.Tracks = make([]*Track, 0)
			}
			for _, t := range pl.Tracks {
				lib.Import(t)
			}
		}
	}
	lib.SyncNextID()

	schedule := NewScheduleWithLibrary(lib)

	restoreRotationsV1(data.Morning, TagMorning, lib)
	restoreRotationsV1(data.Afternoon, TagAfternoon, lib)
	restoreRotationsV1(data.Evening, TagEvening, lib)
	restoreRotationsV1(data.Night, TagNight, lib)

	schedule.Morning = nonNilRotations(data.Morning)
	schedule.Afternoon = nonNilRotations(data.Afternoon)
	schedule.Evening = nonNilRotations(data.Evening)
	schedule.Night = nonNilRotations(data.Night)

	syncRotationIDCounter(schedule)

	slog.Info("Migration complete",
		"library_tracks", lib.Count(),
		"morning", len(schedule.Morning),
		"afternoon", len(schedule.Afternoon),
		"evening", len(schedule.Evening),
		"night", len(schedule.Night),
	)

	return schedule, nil
}

func restoreRotationsV1(rotations []*Rotation, tag TimeTag, lib *TrackLibrary) {
	for _, pl := range rotations {
		pl.Tag = tag
		if pl.Tracks == nil {
			pl.Tracks = make([]*Track, 0)
		}
		pl.ResolveFromLibrary(lib)
	}
}

func nonNilRotations(pls []*Rotation) []*Rotation {
	if pls == nil {
		return make([]*Rotation, 0)
	}
	return pls
}

func syncRotationIDCounter(schedule *Schedule) {
	var maxRotation int64
	for _, tag := range ValidTimeTags {
		for _, pl := range schedule.getRotationsUnsafe(tag) {
			if pl.ID > maxRotation {
				maxRotation = pl.ID
			}
		}
	}
	SetLastRotationID(maxRotation)
	slog.Debug("Rotation ID counter synced", "max_rotation_id", maxRotation)
}
