package audio

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Mixer plays two decks at real-time rate and outputs the mixed PCM frames.
type Mixer struct {
	a, b    *Deck
	frameCh chan []int16
	logger  zerolog.Logger

	mu     sync.RWMutex
	frames uint64
	gain   float64
}

// NewMixer creates a mixer over decks a and b.
func NewMixer(a, b *Deck, logger zerolog.Logger) *Mixer {
	return &Mixer{
		a:       a,
		b:       b,
		frameCh: make(chan []int16, 100),
		logger:  logger,
		gain:    1,
	}
}

// SetGain sets the master gain applied on top of the deck volumes,
// clamped to [0, 1].
func (m *Mixer) SetGain(g float64) {
	g = max(0, min(1, g))
	m.mu.Lock()
	m.gain = g
	m.mu.Unlock()
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (m *Mixer) Frames() <-chan []int16 {
	return m.frameCh
}

// Elapsed returns how much audio the mixer has produced.
func (m *Mixer) Elapsed() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Duration(m.frames) * FrameDuration
}

// Run starts the mixer. Blocks until ctx is cancelled, then reports
// ErrOutputStopped to any deck still playing.
func (m *Mixer) Run(ctx context.Context) {
	defer close(m.frameCh)
	defer func() {
		m.a.fail(ErrOutputStopped)
		m.b.fail(ErrOutputStopped)
	}()

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	m.logger.Info().Msg("mixer started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("mixer stopped")
			return
		case <-ticker.C:
		}

		frame := m.mixNext()
		select {
		case m.frameCh <- frame:
		case <-ctx.Done():
			return
		}
	}
}

// mixNext pulls one frame from each deck and mixes them. Silence is
// emitted while neither deck plays so listeners keep real-time pacing.
func (m *Mixer) mixNext() []int16 {
	fa, va := m.a.nextFrame()
	fb, vb := m.b.nextFrame()

	m.mu.Lock()
	m.frames++
	g := m.gain
	m.mu.Unlock()

	return MixFrames(fa, fb, va*g, vb*g)
}
