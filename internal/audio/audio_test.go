package audio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/crossfade/internal/track"
)

// --- Constants ---

func TestConstants(t *testing.T) {
	// 48kHz * 20ms = 960 samples per channel
	if got := SampleRate * int(FrameDuration/time.Millisecond) / 1000; got != FrameSize {
		t.Errorf("FrameSize mismatch: want %d, got %d", got, FrameSize)
	}
	if FrameSamples != FrameSize*Channels {
		t.Errorf("FrameSamples = %d, want %d", FrameSamples, FrameSize*Channels)
	}
	if FrameBytes != FrameSamples*2 {
		t.Errorf("FrameBytes = %d, want %d", FrameBytes, FrameSamples*2)
	}
}

// --- MixFrames ---

func TestMixAllA(t *testing.T) {
	a := []int16{1000, -1000, 500, -500}
	b := []int16{2000, -2000, 1500, -1500}
	result := MixFrames(a, b, 1, 0)
	for i, v := range result {
		if v != a[i] {
			t.Errorf("gains 1/0 sample[%d] = %d, want %d", i, v, a[i])
		}
	}
}

func TestMixMidpoint(t *testing.T) {
	a := []int16{1000, -1000}
	b := []int16{3000, -3000}
	result := MixFrames(a, b, 0.5, 0.5)
	for i, want := range []int16{2000, -2000} {
		if result[i] != want {
			t.Errorf("gains 0.5/0.5 sample[%d] = %d, want %d", i, result[i], want)
		}
	}
}

func TestMixClipping(t *testing.T) {
	a := []int16{32767, -32768}
	b := []int16{32767, -32768}
	result := MixFrames(a, b, 1, 1)
	if result[0] != 32767 {
		t.Errorf("positive overflow: got %d, want 32767", result[0])
	}
	if result[1] != -32768 {
		t.Errorf("negative overflow: got %d, want -32768", result[1])
	}
}

func TestMixSilence(t *testing.T) {
	result := MixFrames(nil, nil, 1, 1)
	if len(result) != FrameSamples {
		t.Fatalf("silent frame length = %d, want %d", len(result), FrameSamples)
	}
	for i, v := range result {
		if v != 0 {
			t.Fatalf("silent frame sample[%d] = %d", i, v)
		}
	}

	b := []int16{400, -400}
	one := MixFrames(nil, b, 1, 0.25)
	if one[0] != 100 || one[1] != -100 {
		t.Errorf("single frame mix = %v, want [100 -100]", one)
	}
}

// --- SamplesToBytes / round-trip ---

func TestSamplesToBytes(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 256}
	buf := SamplesToBytes(samples)
	if len(buf) != len(samples)*2 {
		t.Fatalf("SamplesToBytes length = %d, want %d", len(buf), len(samples)*2)
	}

	// 256 = 0x0100 -> bytes [0x00, 0x01]
	idx := 5 * 2
	if buf[idx] != 0x00 || buf[idx+1] != 0x01 {
		t.Errorf("Sample 256 encoded as [%02x, %02x], want [00, 01]", buf[idx], buf[idx+1])
	}
}

// --- Tags ---

func TestReadTagsMissingFile(t *testing.T) {
	tags, err := ReadTags("/nonexistent/dir/Night Drive.flac")
	if err == nil {
		t.Error("ReadTags on missing file returned nil error")
	}
	if tags.Title != "Night Drive" {
		t.Errorf("fallback Title = %q, want %q", tags.Title, "Night Drive")
	}
}

// --- Deck ---

func constDecode(frames int, value int16) DecodeFunc {
	return func(ctx context.Context, source string) ([]int16, error) {
		s := make([]int16, frames*FrameSamples+7) // trailing partial frame is dropped
		for i := range s {
			s[i] = value
		}
		return s, nil
	}
}

func loadDeck(t *testing.T, frames int, value int16) *Deck {
	t.Helper()
	d := NewDeck(constDecode(frames, value), zerolog.Nop())
	meta, err := d.Load(context.Background(), "/tmp/deck.wav")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if want := time.Duration(frames) * FrameDuration; meta.Duration != want {
		t.Fatalf("Duration = %v, want %v", meta.Duration, want)
	}
	return d
}

func TestDeckLoadErrors(t *testing.T) {
	cause := errors.New("ffmpeg missing")
	d := NewDeck(func(context.Context, string) ([]int16, error) { return nil, cause }, zerolog.Nop())
	if _, err := d.Load(context.Background(), "x"); !errors.Is(err, cause) {
		t.Errorf("Load err = %v, want %v", err, cause)
	}

	d = NewDeck(constDecode(0, 1), zerolog.Nop())
	if _, err := d.Load(context.Background(), "x"); err == nil {
		t.Error("Load of a sub-frame track succeeded")
	}
	if err := d.Start(); err == nil {
		t.Error("Start on unloaded deck succeeded")
	}
}

func TestDeckPlaysToCompletionAndRestarts(t *testing.T) {
	d := loadDeck(t, 3, 100)
	if f, _ := d.nextFrame(); f != nil {
		t.Fatal("paused deck produced a frame")
	}
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	d.SetVolume(0.5)
	for i := 0; i < 3; i++ {
		f, v := d.nextFrame()
		if f == nil || v != 0.5 {
			t.Fatalf("frame %d = (%v, %v)", i, f == nil, v)
		}
	}
	if d.IsPlaying() {
		t.Error("deck still playing after its last frame")
	}
	if d.Position() != 3*FrameDuration {
		t.Errorf("Position = %v, want %v", d.Position(), 3*FrameDuration)
	}

	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	if d.Position() != 0 || !d.IsPlaying() {
		t.Errorf("restart: position %v playing %v", d.Position(), d.IsPlaying())
	}
}

func TestDeckPauseSeek(t *testing.T) {
	d := loadDeck(t, 10, 1)
	d.Start()
	d.nextFrame()
	d.nextFrame()
	d.Pause()
	if d.IsPlaying() || d.Position() != 2*FrameDuration {
		t.Errorf("after pause: playing %v position %v", d.IsPlaying(), d.Position())
	}
	d.SeekToStart()
	if d.Position() != 0 {
		t.Errorf("after seek: position %v", d.Position())
	}
}

func TestMixerMixesDecks(t *testing.T) {
	a := loadDeck(t, 5, 1000)
	b := loadDeck(t, 5, 3000)
	m := NewMixer(a, b, zerolog.Nop())

	a.Start()
	b.Start()
	a.SetVolume(0.75)
	b.SetVolume(0.25)
	frame := m.mixNext()
	if frame[0] != 1500 {
		t.Errorf("mixed sample = %d, want 1500", frame[0])
	}
	if m.Elapsed() != FrameDuration {
		t.Errorf("Elapsed = %v, want %v", m.Elapsed(), FrameDuration)
	}

	m.SetGain(0.5)
	if frame := m.mixNext(); frame[0] != 750 {
		t.Errorf("mixed sample at half gain = %d, want 750", frame[0])
	}
	m.SetGain(4)
	if frame := m.mixNext(); frame[0] != 1500 {
		t.Errorf("gain above 1 not clamped: sample = %d, want 1500", frame[0])
	}
}

func TestMixerRunStopsAndReports(t *testing.T) {
	a := loadDeck(t, 1000, 10)
	b := loadDeck(t, 1000, 10)
	m := NewMixer(a, b, zerolog.Nop())

	var got error
	reported := make(chan struct{})
	a.OnError(func(err error) {
		got = err
		close(reported)
	})
	a.Start()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	select {
	case <-m.Frames():
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for mixed frame")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Mixer did not stop after context cancel")
	}
	select {
	case <-reported:
		if !errors.Is(got, ErrOutputStopped) {
			t.Errorf("reported %v, want ErrOutputStopped", got)
		}
	default:
		t.Error("playing deck not told that output stopped")
	}
	for range m.Frames() {
	}
}

// gatedDecode signals started when it begins decoding "slow" and finishes
// only after release is closed.
func gatedDecode(started chan<- struct{}, release <-chan struct{}) DecodeFunc {
	return func(ctx context.Context, source string) ([]int16, error) {
		if source == "slow" {
			close(started)
			<-release
			return make([]int16, 500*FrameSamples), nil // 10s
		}
		return make([]int16, 50*FrameSamples), nil // 1s
	}
}

func TestDeckOverlappingLoads(t *testing.T) {
	started, release := make(chan struct{}), make(chan struct{})
	d := NewDeck(gatedDecode(started, release), zerolog.Nop())

	slow := make(chan error, 1)
	go func() {
		_, err := d.Load(context.Background(), "slow")
		slow <- err
	}()
	<-started

	meta, err := d.Load(context.Background(), "fast")
	if err != nil {
		t.Fatalf("fast Load: %v", err)
	}
	close(release)

	select {
	case err := <-slow:
		if !errors.Is(err, track.ErrSuperseded) {
			t.Errorf("slow Load err = %v, want ErrSuperseded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for slow load")
	}
	if d.Duration() != meta.Duration || d.Duration() != time.Second {
		t.Errorf("deck Duration = %v, want the later load's 1s", d.Duration())
	}
}

func TestDeckOverlappingLoadsThroughSlot(t *testing.T) {
	started, release := make(chan struct{}), make(chan struct{})
	d := NewDeck(gatedDecode(started, release), zerolog.Nop())
	slot := track.NewSlot(track.RoleA, d, zerolog.Nop())

	first := slot.Load(context.Background(), "slow")
	<-started
	second := slot.Load(context.Background(), "fast")

	select {
	case r := <-second:
		if r.Err != nil {
			t.Fatalf("second load: %v", r.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for second load")
	}
	close(release)
	select {
	case r := <-first:
		if !errors.Is(r.Err, track.ErrSuperseded) {
			t.Errorf("first load err = %v, want ErrSuperseded", r.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for first load")
	}
	if slot.Duration() != d.Duration() {
		t.Errorf("slot Duration = %v, deck Duration = %v", slot.Duration(), d.Duration())
	}
}
