package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/crossfade/internal/api"
	"github.com/satindergrewal/crossfade/internal/audio"
	"github.com/satindergrewal/crossfade/internal/config"
	"github.com/satindergrewal/crossfade/internal/crossfade"
	"github.com/satindergrewal/crossfade/internal/device"
	"github.com/satindergrewal/crossfade/internal/session"
	"github.com/satindergrewal/crossfade/internal/stream"
	"github.com/satindergrewal/crossfade/internal/timer"
	"github.com/satindergrewal/crossfade/internal/track"
)

func main() {
	cfg := config.Load()
	if cfg.ConfigFile != "" {
		fileCfg, err := config.LoadFile(cfg.ConfigFile, cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = fileCfg
	}

	logger := newLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("crossfade exited")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	curve, err := crossfade.ParseCurve(cfg.Curve)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	var (
		a, b      track.Player
		listeners api.Listeners
	)

	switch cfg.Backend {
	case "stream":
		deckA := audio.NewDeck(audio.DecodeFile, logger.With().Str("deck", "A").Logger())
		deckB := audio.NewDeck(audio.DecodeFile, logger.With().Str("deck", "B").Logger())
		a, b = deckA, deckB

		// Mixer: plays both decks in real time
		mixer := audio.NewMixer(deckA, deckB, logger)
		mixer.SetGain(cfg.MasterGain)
		go mixer.Run(ctx)

		// Broadcaster: fan-out PCM frames to all listeners
		broadcaster := stream.NewBroadcaster(logger)
		go broadcaster.Run(ctx, mixer.Frames())

		webrtcHandler := stream.NewWebRTCHandler(broadcaster, cfg.ICEServers, logger)
		defer webrtcHandler.Close()

		mux.Handle("/stream", stream.NewHTTPHandler(broadcaster, cfg.MP3Bitrate, logger))
		mux.Handle("/offer", webrtcHandler)
		listeners = func() (int, int) {
			return broadcaster.ListenerCount(), webrtcHandler.PeerCount()
		}

	case "speaker":
		if err := device.Init(cfg.SpeakerBuffer); err != nil {
			return fmt.Errorf("init speaker: %w", err)
		}
		a = device.NewPlayer(logger.With().Str("device", "A").Logger())
		b = device.NewPlayer(logger.With().Str("device", "B").Logger())

	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	sess := session.New(a, b, timer.NewReal(), session.Options{
		Crossfade:    time.Duration(cfg.CrossfadeSeconds) * time.Second,
		StepInterval: cfg.StepInterval,
		Curve:        curve,
		NoToggle:     !cfg.PlayToggles,
	}, logger)
	defer func() {
		if err := sess.Release(); err != nil {
			logger.Error().Err(err).Msg("release session")
		}
	}()

	go logPlaybackErrors(sess, logger)
	go loadStartupTracks(ctx, sess, cfg, logger)

	if cfg.ConfigFile != "" {
		err := config.Watch(ctx, cfg.ConfigFile, cfg, func(c config.Config) {
			logger.Info().Int("seconds", c.CrossfadeSeconds).Msg("config reloaded")
			if err := sess.SetCrossfadeSeconds(c.CrossfadeSeconds); err != nil {
				logger.Warn().Err(err).Msg("apply reloaded crossfade")
			}
		}, func(err error) {
			logger.Warn().Err(err).Msg("config watch")
		})
		if err != nil {
			logger.Warn().Err(err).Msg("config file will not be watched")
		}
	}

	mux.Handle("/api/", api.New(sess, listeners, logger))

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		server.Close()
	}()

	logger.Info().
		Str("addr", addr).
		Str("backend", cfg.Backend).
		Int("crossfade", cfg.CrossfadeSeconds).
		Str("curve", curve.String()).
		Msg("crossfade live")
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// loadStartupTracks loads the configured tracks and, with AutoPlay, starts
// the loop once both are ready.
func loadStartupTracks(ctx context.Context, sess *session.Session, cfg config.Config, logger zerolog.Logger) {
	sources := map[track.Role]string{track.RoleA: cfg.TrackA, track.RoleB: cfg.TrackB}
	ok := 0
	for _, role := range []track.Role{track.RoleA, track.RoleB} {
		if sources[role] == "" {
			continue
		}
		results, err := sess.LoadTrack(ctx, role, sources[role])
		if err != nil {
			logger.Error().Err(err).Str("role", role.String()).Msg("startup load")
			return
		}
		select {
		case res := <-results:
			if res.Err != nil {
				logger.Error().Err(res.Err).Str("role", role.String()).Msg("startup load failed")
				continue
			}
			ok++
		case <-ctx.Done():
			return
		}
	}
	if ok < 2 || !cfg.AutoPlay {
		return
	}
	if err := sess.Play(); err != nil {
		logger.Error().Err(err).Msg("autoplay")
	}
}

func logPlaybackErrors(sess *session.Session, logger zerolog.Logger) {
	for err := range sess.Errors() {
		var pe *session.PlaybackError
		if errors.As(err, &pe) {
			logger.Error().Err(pe.Err).Str("role", pe.Role.String()).Msg("playback stopped")
			continue
		}
		logger.Error().Err(err).Msg("playback stopped")
	}
}
