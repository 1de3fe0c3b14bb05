// Package session is the caller-facing lifecycle around two track slots and
// the crossfade scheduler: load, configure, play/stop, release.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/crossfade/internal/crossfade"
	"github.com/satindergrewal/crossfade/internal/timer"
	"github.com/satindergrewal/crossfade/internal/track"
)

var (
	// ErrNotReady is returned by Play until both slots are loaded.
	ErrNotReady = errors.New("both tracks must be loaded before playing")
	// ErrReleased is returned by every operation after Release.
	ErrReleased = errors.New("session released")
)

// PlaybackError is a failure reported by a player while the session was
// active. The scheduler is stopped before it is delivered.
type PlaybackError struct {
	Role track.Role
	Err  error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback of track %s failed: %v", e.Role, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }

// Options configure a session.
type Options struct {
	// Crossfade is the initial requested crossfade length.
	Crossfade    time.Duration
	StepInterval time.Duration
	Curve        crossfade.Curve
	// NoToggle makes Play a no-op while running instead of stopping.
	NoToggle bool
}

// DefaultCrossfade is used when Options.Crossfade is zero.
const DefaultCrossfade = 10 * time.Second

// Session owns both slots and the scheduler.
type Session struct {
	slots  [2]*track.Slot
	sched  *crossfade.Scheduler
	opts   Options
	logger zerolog.Logger

	mu        sync.Mutex
	requested time.Duration
	released  bool
	errCh     chan error
}

// New creates a session playing through players a and b.
func New(a, b track.Player, timers timer.Service, opts Options, logger zerolog.Logger) *Session {
	if opts.Crossfade <= 0 {
		opts.Crossfade = DefaultCrossfade
	}
	s := &Session{
		opts:      opts,
		logger:    logger,
		requested: opts.Crossfade,
		errCh:     make(chan error, 4),
	}
	s.slots[track.RoleA] = track.NewSlot(track.RoleA, a, logger)
	s.slots[track.RoleB] = track.NewSlot(track.RoleB, b, logger)
	for _, sl := range s.slots {
		sl.OnError(s.handlePlaybackError)
	}
	s.sched = crossfade.NewScheduler(s.slots[track.RoleA], s.slots[track.RoleB], timers, crossfade.Options{
		StepInterval: opts.StepInterval,
		Curve:        opts.Curve,
	}, logger)
	return s
}

// Errors delivers PlaybackErrors. It is closed by Release.
func (s *Session) Errors() <-chan error {
	return s.errCh
}

// Slot returns the slot for role.
func (s *Session) Slot(role track.Role) *track.Slot {
	return s.slots[role]
}

// LoadTrack stops playback and loads source into the slot for role. The
// outcome arrives on the returned channel; the other slot is untouched.
func (s *Session) LoadTrack(ctx context.Context, role track.Role, source string) (<-chan track.LoadResult, error) {
	if role != track.RoleA && role != track.RoleB {
		return nil, fmt.Errorf("load track: unknown role %v", role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, ErrReleased
	}
	s.sched.Stop()
	s.logger.Info().Str("role", role.String()).Str("source", source).Msg("loading track")
	return s.slots[role].Load(ctx, source), nil
}

// SetCrossfadeDuration stores the requested crossfade length. It is clamped
// against the track durations and applied at the next Play.
func (s *Session) SetCrossfadeDuration(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrReleased
	}
	if d < 0 {
		d = 0
	}
	s.requested = d
	s.logger.Debug().
		Dur("requested", d).
		Dur("effective", s.effectiveLocked()).
		Msg("crossfade length set")
	return nil
}

// SetCrossfadeSeconds is SetCrossfadeDuration in whole seconds.
func (s *Session) SetCrossfadeSeconds(seconds int) error {
	return s.SetCrossfadeDuration(time.Duration(seconds) * time.Second)
}

// RequestedCrossfade returns the last requested length.
func (s *Session) RequestedCrossfade() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requested
}

// EffectiveCrossfade returns the requested length clamped to the loaded
// tracks.
func (s *Session) EffectiveCrossfade() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effectiveLocked()
}

func (s *Session) effectiveLocked() time.Duration {
	return crossfade.EffectiveCrossfade(s.requested,
		s.loadedDuration(track.RoleA), s.loadedDuration(track.RoleB))
}

func (s *Session) loadedDuration(role track.Role) time.Duration {
	if !s.slots[role].Loaded() {
		return 0
	}
	return s.slots[role].Duration()
}

// MaxCrossfadeSeconds is the top of the crossfade control in whole seconds:
// half the shorter track, capped at 10. Zero when a track is missing.
func (s *Session) MaxCrossfadeSeconds() int {
	da, db := s.loadedDuration(track.RoleA), s.loadedDuration(track.RoleB)
	if da == 0 || db == 0 {
		return 0
	}
	return int(min(min(da, db)/2/time.Second, 10))
}

// Play starts the crossfade loop. While running it stops instead, unless
// Options.NoToggle is set.
func (s *Session) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrReleased
	}
	if s.sched.Running() {
		if s.opts.NoToggle {
			return nil
		}
		s.sched.Stop()
		return nil
	}
	if !s.slots[track.RoleA].Loaded() || !s.slots[track.RoleB].Loaded() {
		return ErrNotReady
	}
	if _, err := s.sched.Configure(s.effectiveLocked()); err != nil {
		return err
	}
	return s.sched.Start()
}

// Stop halts playback and rewinds both tracks.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrReleased
	}
	s.sched.Stop()
	return nil
}

// IsPlaying reports whether the crossfade loop is running.
func (s *Session) IsPlaying() bool {
	return s.sched.Running()
}

// Release stops playback and closes both players. The session cannot be
// used afterwards.
func (s *Session) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrReleased
	}
	s.sched.Stop()
	s.released = true
	var errs []error
	for _, sl := range s.slots {
		if err := sl.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close track %s: %w", sl.Role(), err))
		}
	}
	close(s.errCh)
	s.logger.Info().Msg("session released")
	return errors.Join(errs...)
}

// handlePlaybackError must not be invoked from inside a Player method call.
func (s *Session) handlePlaybackError(role track.Role, err error) {
	s.sched.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	select {
	case s.errCh <- &PlaybackError{Role: role, Err: err}:
	default:
		s.logger.Warn().Err(err).Str("role", role.String()).Msg("playback error dropped")
	}
}

// CurrentTrackTitle returns track A's display name, empty when not loaded.
func (s *Session) CurrentTrackTitle() string { return s.title(track.RoleA) }

// NextTrackTitle returns track B's display name, empty when not loaded.
func (s *Session) NextTrackTitle() string { return s.title(track.RoleB) }

// CurrentTrackDuration returns track A's duration, zero when not loaded.
func (s *Session) CurrentTrackDuration() time.Duration { return s.loadedDuration(track.RoleA) }

// NextTrackDuration returns track B's duration, zero when not loaded.
func (s *Session) NextTrackDuration() time.Duration { return s.loadedDuration(track.RoleB) }

func (s *Session) title(role track.Role) string {
	if !s.slots[role].Loaded() {
		return ""
	}
	return s.slots[role].Metadata().DisplayName()
}
