package crossfade

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/crossfade/internal/timer"
)

// Track is what the scheduler needs from a slot.
type Track interface {
	Volumer
	Start() error
	Pause() error
	SeekToStart() error
	IsPlaying() bool
	Duration() time.Duration
	Position() time.Duration
}

// Direction names which track a boundary fades in.
type Direction int

const (
	// TowardB fades A out and B in.
	TowardB Direction = iota
	// TowardA fades B out and A in.
	TowardA
)

func (d Direction) String() string {
	if d == TowardA {
		return "B->A"
	}
	return "A->B"
}

// Options tune the ramp.
type Options struct {
	StepInterval time.Duration
	Curve        Curve
}

type activeRamp struct {
	ramp   *Ramp
	handle timer.Handle
}

// Scheduler alternates two tracks forever with a crossfade at every
// boundary. All volume changes happen on timer callbacks under mu, so once
// Stop returns no earlier callback can touch the tracks.
type Scheduler struct {
	a, b   Track
	timers timer.Service
	opts   Options
	logger zerolog.Logger

	mu         sync.Mutex
	timing     Timing
	configured bool
	running    bool
	gen        uint64
	boundaries [2]timer.Handle
	ramps      [2]*activeRamp
}

// NewScheduler creates a stopped scheduler over tracks a and b.
func NewScheduler(a, b Track, timers timer.Service, opts Options, logger zerolog.Logger) *Scheduler {
	if opts.StepInterval <= 0 {
		opts.StepInterval = DefaultStepInterval
	}
	return &Scheduler{
		a:      a,
		b:      b,
		timers: timers,
		opts:   opts,
		logger: logger,
	}
}

// Configure recomputes the cycle timing for an effective crossfade length
// from the tracks' current durations. Only valid while stopped.
func (s *Scheduler) Configure(crossfade time.Duration) (Timing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return Timing{}, ErrAlreadyRunning
	}
	t, err := ComputeTiming(s.a.Duration(), s.b.Duration(), crossfade)
	if err != nil {
		s.configured = false
		return Timing{}, err
	}
	s.timing = t
	s.configured = true
	s.logger.Debug().
		Dur("crossfade", t.Crossfade).
		Dur("initial_delay_b", t.InitialDelayB).
		Dur("period", t.Period).
		Msg("crossfade configured")
	return t, nil
}

// Timing returns the last configured timing.
func (s *Scheduler) Timing() Timing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timing
}

// Running reports whether the boundary triggers are armed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RampActive reports whether a ramp in direction d is in flight.
func (s *Scheduler) RampActive(d Direction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ramps[d] != nil
}

// Start plays track A at full volume with B silent, then arms the two
// boundary triggers.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	if !s.configured {
		return fmt.Errorf("%w: not configured", ErrInvalidConfiguration)
	}
	// durations may have changed since Configure
	t, err := ComputeTiming(s.a.Duration(), s.b.Duration(), s.timing.Crossfade)
	if err != nil {
		return err
	}
	s.timing = t

	if err := s.a.Start(); err != nil {
		return fmt.Errorf("start track A: %w", err)
	}
	s.a.SetVolume(1)
	s.b.SetVolume(0)

	s.gen++
	gen := s.gen
	s.running = true
	s.boundaries[TowardB] = s.timers.Schedule(t.InitialDelayB, t.Period, func() { s.boundary(gen, TowardB) })
	s.boundaries[TowardA] = s.timers.Schedule(t.InitialDelayA, t.Period, func() { s.boundary(gen, TowardA) })

	s.logger.Info().
		Dur("crossfade", t.Crossfade).
		Dur("period", t.Period).
		Msg("crossfade started")
	return nil
}

// Stop cancels every trigger and ramp, silences and pauses both tracks and
// rewinds them. It is a no-op when not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.gen++

	for i, h := range s.boundaries {
		if h != nil {
			h.Cancel()
			s.boundaries[i] = nil
		}
	}
	for i := range s.ramps {
		s.cancelRamp(Direction(i))
	}

	for _, t := range []Track{s.a, s.b} {
		t.SetVolume(0)
		if t.IsPlaying() {
			if err := t.Pause(); err != nil {
				s.logger.Warn().Err(err).Msg("pause failed")
			}
		}
		if err := t.SeekToStart(); err != nil {
			s.logger.Warn().Err(err).Msg("seek failed")
		}
	}
	s.logger.Info().Msg("crossfade stopped")
}

func (s *Scheduler) pair(d Direction) (out, in Track) {
	if d == TowardA {
		return s.b, s.a
	}
	return s.a, s.b
}

// boundary starts the incoming track and replaces the ramp for direction d.
func (s *Scheduler) boundary(gen uint64, d Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || gen != s.gen {
		return
	}

	out, in := s.pair(d)
	if err := s.restart(in); err != nil {
		s.logger.Error().Err(err).Str("direction", d.String()).Msg("start incoming track failed")
	}

	s.cancelRamp(d)
	ar := &activeRamp{ramp: NewRamp(out, in, s.timing.Crossfade, s.opts.StepInterval, s.opts.Curve)}
	s.ramps[d] = ar
	// the remainder of an uneven length goes into the first step, so the
	// last one lands exactly on the crossfade length
	first := s.timing.Crossfade - time.Duration(ar.ramp.Steps()-1)*s.opts.StepInterval
	ar.handle = s.timers.Schedule(first, s.opts.StepInterval, func() { s.step(d, ar) })

	s.logger.Info().
		Str("direction", d.String()).
		Int("steps", ar.ramp.Steps()).
		Msg("crossfade boundary")
}

// restart plays in from the top. A track still inside its final crossfade
// window at the boundary, its clock trailing the timers, is rewound first.
func (s *Scheduler) restart(in Track) error {
	if in.IsPlaying() {
		if in.Position() < in.Duration()-s.timing.Crossfade {
			return nil
		}
		if err := in.SeekToStart(); err != nil {
			return err
		}
	}
	return in.Start()
}

func (s *Scheduler) step(d Direction, ar *activeRamp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ramps[d] != ar {
		return
	}
	if ar.ramp.Step() {
		ar.handle.Cancel()
		s.ramps[d] = nil
		s.logger.Debug().
			Str("direction", d.String()).
			Float64("volume_a", s.a.Volume()).
			Float64("volume_b", s.b.Volume()).
			Msg("ramp complete")
	}
}

// cancelRamp must be called with mu held.
func (s *Scheduler) cancelRamp(d Direction) {
	if ar := s.ramps[d]; ar != nil {
		if ar.handle != nil {
			ar.handle.Cancel()
		}
		s.ramps[d] = nil
	}
}
