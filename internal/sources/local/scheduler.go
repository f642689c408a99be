package local

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// TransitionEvent describes a schedule switch triggered by the scheduler.
type TransitionEvent struct {
	PreviousTag TimeTag
	NewTag      TimeTag
	Rotation    *Rotation
	Timestamp   time.Time
}

// TransitionCallback is called whenever the scheduler detects a time-tag
// transition. Implementations must be safe for concurrent use.
type TransitionCallback func(event TransitionEvent)

// Scheduler periodically checks the current time and compares it against the
// active tag of a Schedule. When the time-of-day category changes (e.g.
// morning -> afternoon) the scheduler triggers a callback so the channel
// feeding loop can switch rotations.
type Scheduler struct {
	mu       sync.RWMutex
	schedule *Schedule
	callback TransitionCallback
	interval time.Duration

	lastTag TimeTag
	running bool
}

// NewScheduler creates a Scheduler that watches the given Schedule for
// time-tag transitions.
func NewScheduler(schedule *Schedule, callback TransitionCallback, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 1 * time.Minute
	}

	return &Scheduler{
		schedule: schedule,
		callback: callback,
		interval: interval,
		lastTag:  CurrentTimeTagIn(schedule.Location()),
	}
}

// Start begins the scheduler loop. It blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	slog.Info("Local source scheduler started", "interval", s.interval, "initial_tag", s.lastTag)

	s.check()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Local source scheduler stopping")
			return
		case <-ticker.C:
			s.check()
		}
	}
}

func (s *Scheduler) check() {
	newTag, changed := s.schedule.ResolveActiveTag()
	if !changed {
		return
	}

	s.mu.Lock()
	previousTag := s.lastTag
	s.lastTag = newTag
	s.mu.Unlock()

	slog.Info("Time-tag transition detected", "previous", previousTag, "new", newTag)

	activeRotation, err := s.schedule.ActiveRotation()
	if err != nil {
		slog.Warn("No rotation available for new time tag", "tag", newTag, "error", err)
	}

	if s.callback != nil {
		s.callback(TransitionEvent{
			PreviousTag: previousTag,
			NewTag:      newTag,
			Rotation:    activeRotation,
			Timestamp:   time.Now(),
		})
	}
}

// Running returns true if the scheduler loop is currently active.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// ForceCheck triggers an immediate time-tag check outside the normal ticker
// interval.
func (s *Scheduler) ForceCheck() {
	s.check()
}
