// Package stream serves the mixed crossfade output to remote listeners over
// HTTP (MP3) and WebRTC (Opus).
package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// listenerBuffer holds ~3 seconds of 20ms frames.
const listenerBuffer = 150

// Broadcaster fans out mixed PCM frames to every connected listener.
type Broadcaster struct {
	logger zerolog.Logger

	mu        sync.RWMutex
	listeners map[*Listener]struct{}
	dropped   atomic.Uint64
}

// Listener receives PCM frames from the broadcaster.
type Listener struct {
	Kind string
	C    chan []int16
	done chan struct{}
	once sync.Once
}

// Done is closed when the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// NewBroadcaster creates a broadcaster with no listeners.
func NewBroadcaster(logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		logger:    logger,
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a listener of the given kind ("http", "webrtc").
func (b *Broadcaster) Subscribe(kind string) *Listener {
	l := &Listener{
		Kind: kind,
		C:    make(chan []int16, listenerBuffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	n := len(b.listeners)
	b.mu.Unlock()
	b.logger.Info().Str("kind", kind).Int("listeners", n).Msg("listener connected")
	return l
}

// Unsubscribe removes a listener and signals it to stop. Calling it twice
// is harmless.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	delete(b.listeners, l)
	n := len(b.listeners)
	b.mu.Unlock()
	l.once.Do(func() {
		close(l.done)
		b.logger.Info().Str("kind", l.Kind).Int("listeners", n).Msg("listener disconnected")
	})
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Dropped returns how many frames were dropped for slow listeners.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Run reads frames from source and fans out to all listeners.
// Slow listeners get frames dropped rather than blocking the mixer.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.mu.RLock()
			for l := range b.listeners {
				select {
				case l.C <- frame:
				default:
					b.dropped.Add(1)
				}
			}
			b.mu.RUnlock()
		}
	}
}
