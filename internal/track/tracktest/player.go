// Package tracktest provides an in-memory track.Player for tests.
package tracktest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/satindergrewal/crossfade/internal/track"
)

// Player is a fake playback primitive. Position advances with the supplied
// clock while playing and the track completes when it reaches its duration.
type Player struct {
	mu sync.Mutex

	meta    track.Metadata
	loadErr error
	gate    chan struct{}
	now     func() time.Duration

	loaded    bool
	playing   bool
	base      time.Duration // position when playing last started
	startedAt time.Duration
	volume    float64
	onError   func(error)
	closed    bool

	Starts  int
	Pauses  int
	Seeks   int
	Volumes []float64
}

// New returns a player whose Load succeeds with meta. now supplies the clock
// used for the playback position; nil freezes the position.
func New(meta track.Metadata, now func() time.Duration) *Player {
	if now == nil {
		now = func() time.Duration { return 0 }
	}
	return &Player{meta: meta, now: now}
}

// Failing returns a player whose Load fails with err.
func Failing(err error) *Player {
	p := New(track.Metadata{}, nil)
	p.loadErr = err
	return p
}

// Gate makes Load block until Release is called.
func (p *Player) Gate() {
	p.mu.Lock()
	p.gate = make(chan struct{})
	p.mu.Unlock()
}

// Release unblocks a gated Load.
func (p *Player) Release() {
	p.mu.Lock()
	g := p.gate
	p.gate = nil
	p.mu.Unlock()
	if g != nil {
		close(g)
	}
}

// SetMetadata changes what the next Load returns.
func (p *Player) SetMetadata(meta track.Metadata) {
	p.mu.Lock()
	p.meta = meta
	p.loadErr = nil
	p.mu.Unlock()
}

// Fail reports err through the registered error handler.
func (p *Player) Fail(err error) {
	p.mu.Lock()
	fn := p.onError
	p.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (p *Player) Load(ctx context.Context, source string) (track.Metadata, error) {
	p.mu.Lock()
	g := p.gate
	p.mu.Unlock()
	if g != nil {
		select {
		case <-g:
		case <-ctx.Done():
			return track.Metadata{}, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return track.Metadata{}, errors.New("player closed")
	}
	if p.loadErr != nil {
		return track.Metadata{}, p.loadErr
	}
	p.loaded = true
	p.playing = false
	p.base = 0
	meta := p.meta
	meta.Source = source
	return meta, nil
}

func (p *Player) position() time.Duration {
	pos := p.base
	if p.playing {
		pos += p.now() - p.startedAt
	}
	if pos > p.meta.Duration {
		pos = p.meta.Duration
	}
	return pos
}

func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return errors.New("not loaded")
	}
	p.Starts++
	pos := p.position()
	if p.playing && pos < p.meta.Duration {
		return nil
	}
	if pos >= p.meta.Duration {
		pos = 0
	}
	p.base = pos
	p.startedAt = p.now()
	p.playing = true
	return nil
}

func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Pauses++
	p.base = p.position()
	p.playing = false
	return nil
}

func (p *Player) SeekToStart() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Seeks++
	p.base = 0
	p.startedAt = p.now()
	return nil
}

func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	p.volume = v
	p.Volumes = append(p.Volumes, v)
	p.mu.Unlock()
}

func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *Player) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.meta.Duration
}

func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position()
}

func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing && p.position() < p.meta.Duration
}

func (p *Player) OnError(fn func(error)) {
	p.mu.Lock()
	p.onError = fn
	p.mu.Unlock()
}

func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.playing = false
	return nil
}

// Closed reports whether Close was called.
func (p *Player) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Counts returns the Start, Pause and Seek call counts.
func (p *Player) Counts() (starts, pauses, seeks int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Starts, p.Pauses, p.Seeks
}

var _ track.Player = (*Player)(nil)
