package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// DecodeFile runs FFmpeg to decode an audio file to raw PCM int16 samples.
// Returns interleaved stereo samples at 48kHz.
func DecodeFile(ctx context.Context, path string) ([]int16, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", "48000",
		"-ac", "2",
		"-loglevel", "error",
		"pipe:1",
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}

	// Ensure even byte count for int16 alignment
	if len(out)%2 != 0 {
		out = out[:len(out)-1]
	}

	samples := make([]int16, len(out)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(out[i*2 : i*2+2]))
	}

	return samples, nil
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// Tags is the display metadata of an audio file.
type Tags struct {
	Title  string
	Artist string
}

// ReadTags reads ID3/FLAC/MP4/Ogg tags from path. Files without tags are not
// an error; the title falls back to the file name.
func ReadTags(path string) (Tags, error) {
	base := filepath.Base(path)
	fallback := Tags{Title: strings.TrimSuffix(base, filepath.Ext(base))}

	f, err := os.Open(path)
	if err != nil {
		return fallback, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		if err == tag.ErrNoTagsFound {
			return fallback, nil
		}
		return fallback, fmt.Errorf("read tags %s: %w", path, err)
	}
	t := Tags{Title: strings.TrimSpace(m.Title()), Artist: strings.TrimSpace(m.Artist())}
	if t.Title == "" {
		t.Title = fallback.Title
	}
	return t, nil
}
