package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/crossfade/internal/track"
)

// ErrOutputStopped is reported to playing decks when their mixer exits.
var ErrOutputStopped = errors.New("audio output stopped")

// DecodeFunc turns a source into interleaved 48kHz stereo samples.
type DecodeFunc func(ctx context.Context, source string) ([]int16, error)

// Deck is a decoded track played frame by frame by a Mixer. It implements
// track.Player.
type Deck struct {
	decode DecodeFunc
	logger zerolog.Logger

	mu      sync.Mutex
	samples []int16
	frame   int // next frame to play
	playing bool
	volume  float64
	onError func(error)
	closed  bool
	loadGen uint64
}

// NewDeck creates an empty deck. A nil decode uses DecodeFile.
func NewDeck(decode DecodeFunc, logger zerolog.Logger) *Deck {
	if decode == nil {
		decode = DecodeFile
	}
	return &Deck{decode: decode, logger: logger}
}

// Load decodes source fully into memory.
func (d *Deck) Load(ctx context.Context, source string) (track.Metadata, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return track.Metadata{}, errors.New("deck closed")
	}
	d.loadGen++
	gen := d.loadGen
	d.samples = nil
	d.frame = 0
	d.playing = false
	d.mu.Unlock()

	samples, err := d.decode(ctx, source)
	if err != nil {
		return track.Metadata{}, err
	}
	frames := len(samples) / FrameSamples
	if frames == 0 {
		return track.Metadata{}, errors.New("decoded track is shorter than one frame")
	}

	tags, err := ReadTags(source)
	if err != nil {
		d.logger.Debug().Err(err).Str("source", source).Msg("no tags")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.loadGen || d.closed {
		return track.Metadata{}, track.ErrSuperseded
	}
	d.samples = samples[:frames*FrameSamples]

	return track.Metadata{
		Source:   source,
		Title:    tags.Title,
		Artist:   tags.Artist,
		Duration: time.Duration(frames) * FrameDuration,
	}, nil
}

func (d *Deck) totalFrames() int {
	return len(d.samples) / FrameSamples
}

func (d *Deck) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.samples == nil {
		return errors.New("deck not loaded")
	}
	if d.frame >= d.totalFrames() {
		d.frame = 0
	}
	d.playing = true
	return nil
}

func (d *Deck) Pause() error {
	d.mu.Lock()
	d.playing = false
	d.mu.Unlock()
	return nil
}

func (d *Deck) SeekToStart() error {
	d.mu.Lock()
	d.frame = 0
	d.mu.Unlock()
	return nil
}

func (d *Deck) SetVolume(v float64) {
	d.mu.Lock()
	d.volume = v
	d.mu.Unlock()
}

func (d *Deck) Volume() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

func (d *Deck) Duration() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Duration(d.totalFrames()) * FrameDuration
}

func (d *Deck) Position() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Duration(d.frame) * FrameDuration
}

func (d *Deck) IsPlaying() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

func (d *Deck) OnError(fn func(error)) {
	d.mu.Lock()
	d.onError = fn
	d.mu.Unlock()
}

func (d *Deck) Close() error {
	d.mu.Lock()
	d.closed = true
	d.playing = false
	d.samples = nil
	d.mu.Unlock()
	return nil
}

// nextFrame returns the next frame and the volume to play it at, or nil
// when the deck is not playing. The deck stops itself after its last frame.
func (d *Deck) nextFrame() ([]int16, float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.playing || d.frame >= d.totalFrames() {
		d.playing = false
		return nil, 0
	}
	frame := d.samples[d.frame*FrameSamples : (d.frame+1)*FrameSamples]
	d.frame++
	if d.frame >= d.totalFrames() {
		d.playing = false
	}
	return frame, d.volume
}

// fail reports err if the deck is playing.
func (d *Deck) fail(err error) {
	d.mu.Lock()
	fn := d.onError
	playing := d.playing
	d.playing = false
	d.mu.Unlock()
	if playing && fn != nil {
		fn(err)
	}
}

var _ track.Player = (*Deck)(nil)
