package crossfade

import (
	"fmt"
	"strings"
)

// Curve shapes ramp progress into gain. Both curves keep the outgoing and
// incoming gains summing to one.
type Curve int

const (
	Linear Curve = iota
	Smooth
)

// ParseCurve accepts "linear" and "smoothstep".
func ParseCurve(s string) (Curve, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear":
		return Linear, nil
	case "smoothstep", "smooth":
		return Smooth, nil
	}
	return Linear, fmt.Errorf("unknown ramp curve %q", s)
}

func (c Curve) String() string {
	if c == Smooth {
		return "smoothstep"
	}
	return "linear"
}

// At maps progress t in [0,1] to a gain in [0,1].
func (c Curve) At(t float64) float64 {
	if c == Smooth {
		return Smoothstep(t)
	}
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t
}

// Smoothstep returns the smoothstep interpolation for t in [0,1].
// Formula: 3t^2 - 2t^3.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}
