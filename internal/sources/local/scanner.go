package local

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScanResult holds the outcome of scanning a music directory.
type ScanResult struct {
	Tracks []*Track
	Errors map[string]error
}

// ScanMusicDirectory walks the given directory recursively and creates Track
// objects for every supported audio file found, sorted by file path.
// Individual file errors are collected in ScanResult.Errors rather than
// aborting the whole scan.
func ScanMusicDirectory(musicDir string) (*ScanResult, error) {
	info, err := os.Stat(musicDir)
	if err != nil {
		return nil, fmt.Errorf("cannot access music directory %q: %w", musicDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%q is not a directory", musicDir)
	}

	result := &ScanResult{
		Tracks: make([]*Track, 0),
		Errors: make(map[string]error),
	}

	err = filepath.Walk(musicDir, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			result.Errors[path] = walkErr
			slog.Warn("Error accessing path during scan", "path", path, "error", walkErr)
			return nil
		}

		if fi.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !IsSupportedFormat(ext) {
			return nil
		}

		track, err := NewTrackFromFile(path)
		if err != nil {
			result.Errors[path] = err
			slog.Warn("Failed to create track from file", "path", path, "error", err)
			return nil
		}

		result.Tracks = append(result.Tracks, track)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("error walking music directory %q: %w", musicDir, err)
	}

	sort.Slice(result.Tracks, func(i, j int) bool {
		return result.Tracks[i].FilePath < result.Tracks[j].FilePath
	})

	slog.Info("Music directory scan complete",
		"directory", musicDir,
		"tracks_found", len(result.Tracks),
		"errors", len(result.Errors),
	)

	return result, nil
}

// ScanIntoLibrary scans the music directory and adds all discovered tracks to
// the provided TrackLibrary, preserving user-edited metadata for tracks that
// already exist (matched by checksum).
func ScanIntoLibrary(musicDir string, lib *TrackLibrary) (*ScanResult, int, error) {
	scanResult, err := ScanMusicDirectory(musicDir)
	if err != nil {
		return nil, 0, err
	}

	added := 0
	for i, t := range scanResult.Tracks {
		canonical := lib.AddOrUpdate(t)
		scanResult.Tracks[i] = canonical
		if canonical == t {
			added++
		}
	}

	slog.Info("Scan into library complete",
		"directory", musicDir,
		"total_scanned", len(scanResult.Tracks),
		"newly_added", added,
		"library_total", lib.Count(),
	)

	return scanResult, added, nil
}

// FindOrphanedTracksFromLibrary returns tracks on disk that are not in the
// library.
func FindOrphanedTracksFromLibrary(musicDir string, lib *TrackLibrary) ([]*Track, error) {
	scanResult, err := ScanMusicDirectory(musicDir)
	if err != nil {
		return nil, err
	}

	orphaned := make([]*Track, 0)
	for _, track := range scanResult.Tracks {
		if !lib.Contains(track.Checksum) {
			orphaned = append(orphaned, track)
		}
	}

	slog.Info("Orphaned track detection complete",
		"total_scanned", len(scanResult.Tracks),
		"orphaned", len(orphaned),
	)

	return orphaned, nil
}

// BuildDefaultRotation scans the music directory, registers all discovered
// tracks in the library with stable IDs, and creates a rotation containing
// all of them, tagged with the current time-of-day tag. Used for first-run
// initialisation when no saved schedule exists.
func BuildDefaultRotation(musicDir string, lib *TrackLibrary) (*Rotation, error) {
	scanResult, _, err := ScanIntoLibrary(musicDir, lib)
	if err != nil {
		return nil, fmt.Errorf("failed to scan music directory: %w", err)
	}

	if len(scanResult.Tracks) == 0 {
		return nil, fmt.Errorf("no supported audio files found in %q", musicDir)
	}

	tag := CurrentTimeTag()
	pl := NewRotation("Default Rotation", tag)
	pl.SetLibrary(lib)
	pl.AddTracks(scanResult.Tracks)

	slog.Info("Default rotation created", "name", pl.Name, "tag", pl.Tag, "tracks", pl.Count())

	return pl, nil
}

// ReconcileTracks compares the tracks known to the schedule against the files
// currently on disk: it drops tracks whose files were deleted and returns
// newly discovered files as orphaned tracks. This is the core of hot-reload.
func ReconcileTracks(musicDir string, schedule *Schedule) (orphaned []*Track, removedCount int, err error) {
	if schedule.Library != nil {
		stale := schedule.Library.RemoveStale()
		removedCount = len(stale)

		for _, t := range stale {
			schedule.RemoveTrackFromAll(t.Checksum)
		}

		if removedCount > 0 {
			slog.Info("Removed stale tracks from library and rotations", "count", removedCount)
		}
	}

	orphaned, err = FindOrphanedTracksFromLibrary(musicDir, schedule.Library)
	if err != nil {
		return nil, removedCount, fmt.Errorf("failed to find orphaned tracks: %w", err)
	}

	if schedule.Library != nil && len(orphaned) > 0 {
		for i, t := range orphaned {
			canonical := schedule.Library.AddOrUpdate(t)
			orphaned[i] = canonical
		}
		slog.Info("Added orphaned tracks to library", "count", len(orphaned))
	}

	return orphaned, removedCount, nil
}
