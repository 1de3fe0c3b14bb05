package crossfade

import (
	"errors"
	"testing"
	"time"
)

func TestEffectiveCrossfade(t *testing.T) {
	tests := []struct {
		name              string
		requested, da, db time.Duration
		want              time.Duration
	}{
		{"under half", 10 * time.Second, 60 * time.Second, 90 * time.Second, 10 * time.Second},
		{"clamped to half of shorter", 8 * time.Second, 5 * time.Second, 5 * time.Second, 2500 * time.Millisecond},
		{"odd millisecond floors", 10 * time.Second, 3001 * time.Millisecond, 9 * time.Second, 1500 * time.Millisecond},
		{"zero gets floor", 0, 60 * time.Second, 60 * time.Second, MinCrossfade},
		{"negative gets floor", -time.Second, 60 * time.Second, 60 * time.Second, MinCrossfade},
		{"unknown durations do not clamp", 10 * time.Second, 0, 60 * time.Second, 10 * time.Second},
		{"sub-millisecond truncated", 2500*time.Millisecond + 700*time.Microsecond, time.Minute, time.Minute, 2500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectiveCrossfade(tt.requested, tt.da, tt.db); got != tt.want {
				t.Errorf("EffectiveCrossfade(%v, %v, %v) = %v, want %v", tt.requested, tt.da, tt.db, got, tt.want)
			}
		})
	}
}

func TestEffectiveCrossfadeProperty(t *testing.T) {
	for da := time.Second; da <= 120*time.Second; da += 7919 * time.Millisecond {
		for db := time.Second; db <= 120*time.Second; db += 6007 * time.Millisecond {
			for req := time.Duration(0); req <= 70*time.Second; req += 3331 * time.Millisecond {
				got := EffectiveCrossfade(req, da, db)
				want := min(req, (min(da, db)/2).Truncate(time.Millisecond))
				if want < MinCrossfade {
					want = MinCrossfade
				}
				if got != want {
					t.Fatalf("EffectiveCrossfade(%v, %v, %v) = %v, want %v", req, da, db, got, want)
				}
				if got < MinCrossfade {
					t.Fatalf("EffectiveCrossfade below floor: %v", got)
				}
				if got*2 > min(da, db) {
					t.Fatalf("EffectiveCrossfade(%v, %v, %v) = %v exceeds half of shorter track", req, da, db, got)
				}
				tm, err := ComputeTiming(da, db, got)
				if err != nil {
					t.Fatalf("ComputeTiming(%v, %v, %v) error: %v", da, db, got, err)
				}
				if tm.Period <= 0 {
					t.Fatalf("Period = %v, want > 0", tm.Period)
				}
			}
		}
	}
}

func TestComputeTimingScenario(t *testing.T) {
	da, db := 60*time.Second, 90*time.Second
	cf := EffectiveCrossfade(10*time.Second, da, db)
	if cf != 10*time.Second {
		t.Fatalf("effective crossfade = %v, want 10s", cf)
	}
	tm, err := ComputeTiming(da, db, cf)
	if err != nil {
		t.Fatal(err)
	}
	if tm.Period != 130*time.Second {
		t.Errorf("Period = %v, want 130s", tm.Period)
	}
	if tm.InitialDelayB != 50*time.Second {
		t.Errorf("InitialDelayB = %v, want 50s", tm.InitialDelayB)
	}
	if tm.InitialDelayA != 130*time.Second {
		t.Errorf("InitialDelayA = %v, want 130s", tm.InitialDelayA)
	}
}

func TestComputeTimingInvalid(t *testing.T) {
	tests := []struct {
		name          string
		da, db, cross time.Duration
	}{
		{"unknown A", 0, time.Minute, time.Second},
		{"unknown B", time.Minute, 0, time.Second},
		{"zero crossfade", time.Minute, time.Minute, 0},
		{"A shorter than double crossfade", 3 * time.Second, time.Minute, 2 * time.Second},
		{"B shorter than double crossfade", time.Minute, 1500 * time.Millisecond, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeTiming(tt.da, tt.db, tt.cross)
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("err = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}
