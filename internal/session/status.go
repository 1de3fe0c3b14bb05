package session

import (
	"time"

	"github.com/satindergrewal/crossfade/internal/track"
)

// TrackStatus is a read-only view of one slot.
type TrackStatus struct {
	Loaded   bool
	ID       string
	Title    string
	Source   string
	Duration time.Duration
	Position time.Duration
	Volume   float64
	Playing  bool
}

// Status is a snapshot of the whole session.
type Status struct {
	Running   bool
	Requested time.Duration
	Effective time.Duration
	MaxSecs   int
	A, B      TrackStatus
}

// Status returns a snapshot for display. It has no side effects.
func (s *Session) Status() Status {
	s.mu.Lock()
	requested := s.requested
	effective := s.effectiveLocked()
	s.mu.Unlock()

	return Status{
		Running:   s.sched.Running(),
		Requested: requested,
		Effective: effective,
		MaxSecs:   s.MaxCrossfadeSeconds(),
		A:         slotStatus(s.slots[track.RoleA]),
		B:         slotStatus(s.slots[track.RoleB]),
	}
}

func slotStatus(sl *track.Slot) TrackStatus {
	if !sl.Loaded() {
		return TrackStatus{}
	}
	meta := sl.Metadata()
	return TrackStatus{
		Loaded:   true,
		ID:       meta.ID,
		Title:    meta.DisplayName(),
		Source:   meta.Source,
		Duration: meta.Duration,
		Position: sl.Position(),
		Volume:   sl.Volume(),
		Playing:  sl.IsPlaying(),
	}
}
