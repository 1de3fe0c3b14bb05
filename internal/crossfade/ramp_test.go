package crossfade

import (
	"math"
	"testing"
	"time"
)

type vol struct{ v float64 }

func (x *vol) SetVolume(v float64) { x.v = v }
func (x *vol) Volume() float64     { return x.v }

func TestRampSteps(t *testing.T) {
	tests := []struct {
		length, step time.Duration
		want         int
	}{
		{10 * time.Second, 10 * time.Millisecond, 1000},
		{2500 * time.Millisecond, 10 * time.Millisecond, 250},
		{10 * time.Millisecond, 10 * time.Millisecond, 1},
		{5 * time.Millisecond, 10 * time.Millisecond, 1},
		{time.Second, 0, 1},
	}
	for _, tt := range tests {
		r := NewRamp(&vol{1}, &vol{0}, tt.length, tt.step, Linear)
		if r.Steps() != tt.want {
			t.Errorf("NewRamp(%v, %v).Steps() = %d, want %d", tt.length, tt.step, r.Steps(), tt.want)
		}
		if got := r.StepSize(); math.Abs(got-1/float64(tt.want)) > 1e-12 {
			t.Errorf("StepSize = %v, want %v", got, 1/float64(tt.want))
		}
	}
}

func TestRampLinearPinsEnds(t *testing.T) {
	for _, curve := range []Curve{Linear, Smooth} {
		out, in := &vol{1}, &vol{0}
		r := NewRamp(out, in, 3*time.Second, 10*time.Millisecond, curve)

		steps := 0
		prevOut, prevIn := out.v, in.v
		for !r.Step() {
			steps++
			if out.v < 0 || out.v > 1 || in.v < 0 || in.v > 1 {
				t.Fatalf("%v step %d: volumes out of range out=%v in=%v", curve, steps, out.v, in.v)
			}
			if out.v > prevOut || in.v < prevIn {
				t.Fatalf("%v step %d: not monotonic", curve, steps)
			}
			if sum := out.v + in.v; math.Abs(sum-1) > 1e-9 {
				t.Fatalf("%v step %d: sum = %v, want 1", curve, steps, sum)
			}
			prevOut, prevIn = out.v, in.v
		}
		steps++
		if steps != 300 {
			t.Errorf("%v: completed in %d steps, want 300", curve, steps)
		}
		if out.v != 0 || in.v != 1 {
			t.Errorf("%v: final volumes out=%v in=%v, want exactly 0 and 1", curve, out.v, in.v)
		}
		if !r.Done() || !r.Step() {
			t.Errorf("%v: ramp not done after completion", curve)
		}
	}
}

func TestRampFromPartialVolumes(t *testing.T) {
	out, in := &vol{0.6}, &vol{0.4}
	r := NewRamp(out, in, 100*time.Millisecond, 10*time.Millisecond, Linear)
	r.Step()
	if math.Abs(out.v-0.54) > 1e-9 || math.Abs(in.v-0.46) > 1e-9 {
		t.Errorf("after one step out=%v in=%v, want 0.54 and 0.46", out.v, in.v)
	}
	for !r.Step() {
	}
	if out.v != 0 || in.v != 1 {
		t.Errorf("final volumes out=%v in=%v", out.v, in.v)
	}
}

func TestParseCurve(t *testing.T) {
	for in, want := range map[string]Curve{"": Linear, "linear": Linear, "SmoothStep": Smooth} {
		got, err := ParseCurve(in)
		if err != nil || got != want {
			t.Errorf("ParseCurve(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseCurve("cubic"); err == nil {
		t.Error("ParseCurve(cubic) succeeded")
	}
}

func TestSmoothstepBoundaries(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{1.5, 1},
	}
	for _, tt := range tests {
		got := Smoothstep(tt.input)
		if got != tt.want {
			t.Errorf("Smoothstep(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSmoothstepSymmetry(t *testing.T) {
	// f(0.5+d) + f(0.5-d) = 1
	for _, d := range []float64{0.1, 0.2, 0.3, 0.4, 0.5} {
		sum := Smoothstep(0.5+d) + Smoothstep(0.5-d)
		if diff := sum - 1.0; diff > 1e-10 || diff < -1e-10 {
			t.Errorf("Smoothstep symmetry broken at d=%v: sum=%v", d, sum)
		}
	}
}
