package crossfade

import "time"

// Volumer is the part of a track a ramp drives.
type Volumer interface {
	SetVolume(v float64)
	Volume() float64
}

// Ramp moves one track's volume toward 0 and the other's toward 1 in a fixed
// number of equal steps. It is not safe for concurrent use; the scheduler
// serialises calls.
type Ramp struct {
	out, in Volumer
	curve   Curve

	steps   int
	taken   int
	fromOut float64
	fromIn  float64
}

// NewRamp creates a ramp over length split into step-sized increments,
// starting from the tracks' current volumes.
func NewRamp(out, in Volumer, length, step time.Duration, curve Curve) *Ramp {
	steps := 1
	if step > 0 {
		steps = int(length / step)
	}
	if steps < 1 {
		steps = 1
	}
	return &Ramp{
		out:     out,
		in:      in,
		curve:   curve,
		steps:   steps,
		fromOut: out.Volume(),
		fromIn:  in.Volume(),
	}
}

// Steps returns the total number of steps.
func (r *Ramp) Steps() int { return r.steps }

// StepSize is the volume change per step on a linear curve.
func (r *Ramp) StepSize() float64 { return 1.0 / float64(r.steps) }

// Done reports whether the incoming track has reached full volume.
func (r *Ramp) Done() bool { return r.taken >= r.steps }

// Step advances the ramp once and reports whether it has completed. The
// final step pins both volumes at exactly 0 and 1.
func (r *Ramp) Step() bool {
	if r.Done() {
		return true
	}
	r.taken++
	if r.taken >= r.steps {
		r.out.SetVolume(0)
		r.in.SetVolume(1)
		return true
	}
	g := r.curve.At(float64(r.taken) / float64(r.steps))
	r.out.SetVolume(r.fromOut * (1 - g))
	r.in.SetVolume(r.fromIn + (1-r.fromIn)*g)
	return false
}
