// Package crossfade schedules the alternating crossfade between two tracks:
// when each track starts, when its volume ramp begins and how both volumes
// move while the tracks overlap.
package crossfade

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultStepInterval is how often a ramp moves the volumes.
	DefaultStepInterval = 10 * time.Millisecond
	// MinCrossfade keeps the ramp step count above zero.
	MinCrossfade = 10 * time.Millisecond
)

var (
	// ErrInvalidConfiguration is returned when the durations and crossfade
	// length cannot produce a positive cycle.
	ErrInvalidConfiguration = errors.New("invalid crossfade configuration")
	// ErrAlreadyRunning is returned by Start and Configure while running.
	ErrAlreadyRunning = errors.New("crossfade already running")
)

// EffectiveCrossfade clamps the requested length to half of the shorter
// track, in whole milliseconds, and never below MinCrossfade. Unknown
// durations (zero) do not clamp.
func EffectiveCrossfade(requested, durationA, durationB time.Duration) time.Duration {
	eff := requested.Truncate(time.Millisecond)
	if eff < 0 {
		eff = 0
	}
	if durationA > 0 && durationB > 0 {
		half := (min(durationA, durationB) / 2).Truncate(time.Millisecond)
		if eff > half {
			eff = half
		}
	}
	if eff < MinCrossfade {
		eff = MinCrossfade
	}
	return eff
}

// Timing is the derived schedule of one crossfade cycle.
type Timing struct {
	Crossfade time.Duration
	// InitialDelayB is when track B first starts, relative to Start.
	InitialDelayB time.Duration
	// InitialDelayA is when track A first restarts, relative to Start.
	InitialDelayA time.Duration
	// Period is the length of a full A+B cycle with both overlaps removed.
	Period time.Duration
}

// ComputeTiming derives the cycle from the two durations and an effective
// crossfade length. Each track must be at least twice the crossfade long.
func ComputeTiming(durationA, durationB, crossfade time.Duration) (Timing, error) {
	if durationA <= 0 || durationB <= 0 {
		return Timing{}, fmt.Errorf("%w: track durations unknown (A=%v, B=%v)", ErrInvalidConfiguration, durationA, durationB)
	}
	if crossfade <= 0 {
		return Timing{}, fmt.Errorf("%w: crossfade %v is not positive", ErrInvalidConfiguration, crossfade)
	}
	if durationA < 2*crossfade || durationB < 2*crossfade {
		return Timing{}, fmt.Errorf("%w: crossfade %v exceeds half of a track (A=%v, B=%v)",
			ErrInvalidConfiguration, crossfade, durationA, durationB)
	}
	period := durationA + durationB - 2*crossfade
	if period <= 0 {
		return Timing{}, fmt.Errorf("%w: period %v is not positive", ErrInvalidConfiguration, period)
	}
	return Timing{
		Crossfade:     crossfade,
		InitialDelayB: durationA - crossfade,
		InitialDelayA: period,
		Period:        period,
	}, nil
}
