package track

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Slot wraps one Player and tracks its loaded state and last set volume.
type Slot struct {
	role   Role
	player Player
	logger zerolog.Logger

	mu      sync.RWMutex
	loaded  bool
	meta    Metadata
	volume  float64
	gen     uint64
	onError func(Role, error)
}

// NewSlot creates an empty slot for role backed by p.
func NewSlot(role Role, p Player, logger zerolog.Logger) *Slot {
	s := &Slot{
		role:   role,
		player: p,
		logger: logger.With().Str("role", role.String()).Logger(),
	}
	p.OnError(s.handleError)
	return s
}

// Role returns the slot's role.
func (s *Slot) Role() Role { return s.role }

// OnError registers the handler for mid-playback failures.
func (s *Slot) OnError(fn func(Role, error)) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

func (s *Slot) handleError(err error) {
	s.mu.RLock()
	fn := s.onError
	s.mu.RUnlock()
	s.logger.Error().Err(err).Msg("playback failed")
	if fn != nil {
		fn(s.role, err)
	}
}

// Load resets the slot and prepares source in the background. The result is
// delivered on the returned channel, which receives exactly one value. A
// playing track is paused first.
func (s *Slot) Load(ctx context.Context, source string) <-chan LoadResult {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.loaded = false
	s.meta = Metadata{}
	s.mu.Unlock()

	if s.player.IsPlaying() {
		if err := s.player.Pause(); err != nil {
			s.logger.Warn().Err(err).Msg("pause before load failed")
		}
	}

	ch := make(chan LoadResult, 1)
	go func() {
		meta, err := s.player.Load(ctx, source)
		if err == nil && meta.Duration <= 0 {
			err = errors.New("track has no playable duration")
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.gen {
			ch <- LoadResult{Role: s.role, Err: &LoadError{Role: s.role, Source: source, Err: ErrSuperseded}}
			return
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("source", source).Msg("track load failed")
			ch <- LoadResult{Role: s.role, Err: &LoadError{Role: s.role, Source: source, Err: err}}
			return
		}

		meta.ID = uuid.NewString()
		if meta.Source == "" {
			meta.Source = source
		}
		s.meta = meta
		s.loaded = true
		s.logger.Info().
			Str("source", source).
			Str("title", meta.DisplayName()).
			Dur("duration", meta.Duration).
			Msg("track loaded")
		ch <- LoadResult{Role: s.role, Track: meta}
	}()
	return ch
}

// Loaded reports whether the last load finished successfully.
func (s *Slot) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Metadata returns the loaded track's metadata, zero when not loaded.
func (s *Slot) Metadata() Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// Duration returns the loaded track's duration, zero when not loaded.
func (s *Slot) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta.Duration
}

// SetVolume clamps v to [0,1], stores it and forwards it to the player.
func (s *Slot) SetVolume(v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
	s.player.SetVolume(v)
}

// Volume returns the last volume set through the slot.
func (s *Slot) Volume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volume
}

func (s *Slot) Start() error       { return s.player.Start() }
func (s *Slot) Pause() error       { return s.player.Pause() }
func (s *Slot) SeekToStart() error { return s.player.SeekToStart() }
func (s *Slot) IsPlaying() bool    { return s.player.IsPlaying() }

// Position returns the player's playback position.
func (s *Slot) Position() time.Duration { return s.player.Position() }

// Close releases the player and forgets the loaded track.
func (s *Slot) Close() error {
	s.mu.Lock()
	s.gen++
	s.loaded = false
	s.meta = Metadata{}
	s.mu.Unlock()
	return s.player.Close()
}
