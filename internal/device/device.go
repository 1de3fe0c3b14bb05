// Package device plays tracks on the local sound card through beep's
// speaker mixer.
package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/crossfade/internal/audio"
	"github.com/satindergrewal/crossfade/internal/track"
)

const resampleQuality = 4

var (
	initOnce sync.Once
	initErr  error
	outRate  = beep.SampleRate(audio.SampleRate)
)

// Init opens the sound card once for the process. Later calls return the
// first result.
func Init(buffer time.Duration) error {
	initOnce.Do(func() {
		initErr = speaker.Init(outRate, outRate.N(buffer))
	})
	return initErr
}

type decodeFunc func(f *os.File) (beep.StreamSeekCloser, beep.Format, error)

func decoderFor(path string) (decodeFunc, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return mp3.Decode(f) }, nil
	case ".flac":
		return func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return flac.Decode(f) }, nil
	case ".wav":
		return func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(f) }, nil
	case ".ogg", ".oga":
		return func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return vorbis.Decode(f) }, nil
	}
	return nil, fmt.Errorf("unsupported audio format %q", filepath.Ext(path))
}

// gain maps a linear volume to beep's exponential volume effect.
func gain(v float64) (level float64, silent bool) {
	if v <= 0 {
		return 0, true
	}
	if v > 1 {
		v = 1
	}
	return math.Log2(v), false
}

// Player is a track.Player on the local speaker. Fields read by the speaker
// goroutine are guarded by speaker.Lock, the rest by mu.
type Player struct {
	logger zerolog.Logger

	mu      sync.Mutex
	file    *os.File
	stream  beep.StreamSeekCloser
	format  beep.Format
	ctrl    *beep.Ctrl
	vol     *effects.Volume
	volume  float64
	onError func(error)
	loadGen uint64

	// queued holds the loadGen of the stream sitting in the speaker mixer,
	// zero when none is.
	queued atomic.Uint64
}

// NewPlayer creates an empty player. Init must have succeeded.
func NewPlayer(logger zerolog.Logger) *Player {
	return &Player{logger: logger}
}

func (p *Player) Load(ctx context.Context, source string) (track.Metadata, error) {
	decode, err := decoderFor(source)
	if err != nil {
		return track.Metadata{}, err
	}
	if err := ctx.Err(); err != nil {
		return track.Metadata{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.unloadLocked(); err != nil {
		p.logger.Warn().Err(err).Msg("closing previous track failed")
	}

	f, err := os.Open(source)
	if err != nil {
		return track.Metadata{}, fmt.Errorf("open %s: %w", source, err)
	}
	stream, format, err := decode(f)
	if err != nil {
		f.Close()
		return track.Metadata{}, fmt.Errorf("decode %s: %w", source, err)
	}

	p.loadGen++
	p.file = f
	p.stream = stream
	p.format = format
	p.ctrl = &beep.Ctrl{Streamer: p.source(), Paused: true}
	level, silent := gain(p.volume)
	p.vol = &effects.Volume{Streamer: p.ctrl, Base: 2, Volume: level, Silent: silent}

	tags, err := audio.ReadTags(source)
	if err != nil {
		p.logger.Debug().Err(err).Str("source", source).Msg("no tags")
	}
	return track.Metadata{
		Source:   source,
		Title:    tags.Title,
		Artist:   tags.Artist,
		Duration: format.SampleRate.D(stream.Len()),
	}, nil
}

// unloadLocked detaches the current stream from the speaker and closes it.
func (p *Player) unloadLocked() error {
	if p.stream == nil {
		return nil
	}
	speaker.Lock()
	p.ctrl.Streamer = nil
	speaker.Unlock()
	p.queued.Store(0)

	err := p.stream.Close()
	if cerr := p.file.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) && err == nil {
		err = cerr
	}
	p.stream, p.file, p.ctrl, p.vol = nil, nil, nil, nil
	return err
}

// source wraps the decoder for the output rate. A Resampler keeps its
// drained state after its source ends, so each rewind needs a new one.
func (p *Player) source() beep.Streamer {
	if p.format.SampleRate == outRate {
		return p.stream
	}
	return beep.Resample(resampleQuality, p.format.SampleRate, outRate, p.stream)
}

// rewindLocked seeks the decoder to the start and rebuilds the chain under
// the ctrl. Both mu and the speaker lock must be held.
func (p *Player) rewindLocked() error {
	if err := p.stream.Seek(0); err != nil {
		return err
	}
	p.ctrl.Streamer = p.source()
	return nil
}

func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return errors.New("player not loaded")
	}
	speaker.Lock()
	if p.stream.Position() >= p.stream.Len() {
		if err := p.rewindLocked(); err != nil {
			speaker.Unlock()
			return fmt.Errorf("rewind: %w", err)
		}
	}
	p.ctrl.Paused = false
	speaker.Unlock()

	if p.queued.Swap(p.loadGen) != p.loadGen {
		speaker.Play(beep.Seq(p.vol, beep.Callback(p.finished(p.loadGen, p.stream))))
	}
	return nil
}

// finished runs on the speaker goroutine with the speaker lock held, so it
// must not take mu.
func (p *Player) finished(gen uint64, stream beep.StreamSeekCloser) func() {
	return func() {
		if !p.queued.CompareAndSwap(gen, 0) {
			return
		}
		if err := stream.Err(); err != nil && !errors.Is(err, io.EOF) {
			go p.report(err)
		}
	}
}

func (p *Player) report(err error) {
	p.mu.Lock()
	fn := p.onError
	p.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl == nil {
		return nil
	}
	speaker.Lock()
	p.ctrl.Paused = true
	speaker.Unlock()
	return nil
}

func (p *Player) SeekToStart() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return nil
	}
	speaker.Lock()
	defer speaker.Unlock()
	return p.rewindLocked()
}

func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
	if p.vol == nil {
		return
	}
	level, silent := gain(v)
	speaker.Lock()
	p.vol.Volume = level
	p.vol.Silent = silent
	speaker.Unlock()
}

func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *Player) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return 0
	}
	return p.format.SampleRate.D(p.stream.Len())
}

func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return 0
	}
	speaker.Lock()
	defer speaker.Unlock()
	return p.format.SampleRate.D(p.stream.Position())
}

func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl == nil || p.queued.Load() != p.loadGen {
		return false
	}
	speaker.Lock()
	defer speaker.Unlock()
	return !p.ctrl.Paused
}

func (p *Player) OnError(fn func(error)) {
	p.mu.Lock()
	p.onError = fn
	p.mu.Unlock()
}

func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unloadLocked()
}

var _ track.Player = (*Player)(nil)
