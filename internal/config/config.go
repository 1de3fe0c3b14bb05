package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration, loaded from environment variables
// and optionally overlaid by a YAML file.
type Config struct {
	// Server
	Port int `yaml:"port"`

	// Playback backend: "stream" (mixed PCM to HTTP/WebRTC) or "speaker"
	Backend       string        `yaml:"backend"`
	SpeakerBuffer time.Duration `yaml:"-"`

	// Tracks loaded at startup (optional)
	TrackA string `yaml:"track_a"`
	TrackB string `yaml:"track_b"`

	// Crossfade behavior
	CrossfadeSeconds int           `yaml:"crossfade_seconds"`
	StepInterval     time.Duration `yaml:"-"`
	Curve            string        `yaml:"curve"`
	PlayToggles      bool          `yaml:"play_toggles"`
	AutoPlay         bool          `yaml:"autoplay"`

	// Streaming
	MP3Bitrate int      `yaml:"mp3_bitrate"` // kbit/s
	ICEServers []string `yaml:"ice_servers"`

	// Gain applied to the stream output, 0..1
	MasterGain float64 `yaml:"master_gain"`

	LogLevel   string `yaml:"log_level"`
	ConfigFile string `yaml:"-"`
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port: envInt("CROSSFADE_PORT", 8080),

		Backend:       envStr("CROSSFADE_BACKEND", "stream"),
		SpeakerBuffer: time.Duration(envInt("CROSSFADE_SPEAKER_BUFFER_MS", 100)) * time.Millisecond,

		TrackA: envStr("CROSSFADE_TRACK_A", ""),
		TrackB: envStr("CROSSFADE_TRACK_B", ""),

		CrossfadeSeconds: envInt("CROSSFADE_SECONDS", 10),
		StepInterval:     time.Duration(envInt("CROSSFADE_STEP_MS", 10)) * time.Millisecond,
		Curve:            envStr("CROSSFADE_CURVE", "linear"),
		PlayToggles:      envBool("CROSSFADE_PLAY_TOGGLES", true),
		AutoPlay:         envBool("CROSSFADE_AUTOPLAY", false),

		MP3Bitrate: envInt("CROSSFADE_MP3_BITRATE", 192),
		ICEServers: envList("CROSSFADE_ICE_SERVERS"),
		MasterGain: envFloat("CROSSFADE_MASTER_GAIN", 1.0),

		LogLevel:   envStr("CROSSFADE_LOG_LEVEL", "info"),
		ConfigFile: envStr("CROSSFADE_CONFIG_FILE", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envList splits a comma-separated variable, dropping empty entries.
func envList(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
