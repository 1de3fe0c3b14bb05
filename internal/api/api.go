// Package api serves the HTTP control surface of a playback session.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/crossfade/internal/crossfade"
	"github.com/satindergrewal/crossfade/internal/session"
	"github.com/satindergrewal/crossfade/internal/track"
)

// Crossfade length bounds accepted from clients, in seconds.
const (
	MinCrossfadeSeconds = 2
	MaxCrossfadeSeconds = 10
)

// Listeners reports the number of connected stream listeners.
type Listeners func() (httpCount, webrtcCount int)

// Handler routes /api requests to a session.
type Handler struct {
	sess      *session.Session
	listeners Listeners
	logger    zerolog.Logger
	mux       *http.ServeMux
}

// New creates the API handler. listeners may be nil when no stream
// backend runs.
func New(sess *session.Session, listeners Listeners, logger zerolog.Logger) *Handler {
	h := &Handler{
		sess:      sess,
		listeners: listeners,
		logger:    logger,
		mux:       http.NewServeMux(),
	}
	h.mux.HandleFunc("/api/status", h.status)
	h.mux.HandleFunc("/api/play", h.post(h.play))
	h.mux.HandleFunc("/api/stop", h.post(h.stop))
	h.mux.HandleFunc("/api/crossfade", h.post(h.crossfade))
	h.mux.HandleFunc("/api/load", h.post(h.load))
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) post(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		fn(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(v)
}

func trackJSON(ts session.TrackStatus) map[string]any {
	return map[string]any{
		"loaded":   ts.Loaded,
		"id":       ts.ID,
		"title":    ts.Title,
		"source":   ts.Source,
		"duration": ts.Duration.Seconds(),
		"position": ts.Position.Seconds(),
		"volume":   ts.Volume,
		"playing":  ts.Playing,
	}
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	st := h.sess.Status()
	resp := map[string]any{
		"running":             st.Running,
		"crossfade":           st.Requested.Seconds(),
		"effective_crossfade": st.Effective.Seconds(),
		"max_crossfade":       st.MaxSecs,
		"track_a":             trackJSON(st.A),
		"track_b":             trackJSON(st.B),
	}
	if h.listeners != nil {
		httpN, webrtcN := h.listeners()
		resp["http_listeners"] = httpN
		resp["webrtc_listeners"] = webrtcN
	}
	writeJSON(w, resp)
}

func (h *Handler) play(w http.ResponseWriter, r *http.Request) {
	err := h.sess.Play()
	switch {
	case errors.Is(err, session.ErrNotReady):
		http.Error(w, "both tracks must be loaded", http.StatusConflict)
		return
	case errors.Is(err, crossfade.ErrInvalidConfiguration):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		h.fail(w, "play", err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "running": h.sess.IsPlaying()})
}

func (h *Handler) stop(w http.ResponseWriter, r *http.Request) {
	if err := h.sess.Stop(); err != nil {
		h.fail(w, "stop", err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (h *Handler) crossfade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seconds *int `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Seconds == nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	v := *req.Seconds
	if v < MinCrossfadeSeconds || v > MaxCrossfadeSeconds {
		http.Error(w, "seconds must be 2-10", http.StatusBadRequest)
		return
	}
	if err := h.sess.SetCrossfadeSeconds(v); err != nil {
		h.fail(w, "crossfade", err)
		return
	}
	writeJSON(w, map[string]any{
		"ok":                  true,
		"crossfade":           h.sess.RequestedCrossfade().Seconds(),
		"effective_crossfade": h.sess.EffectiveCrossfade().Seconds(),
	})
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role   string `json:"role"`
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Source == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	role, err := track.ParseRole(req.Role)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	results, err := h.sess.LoadTrack(r.Context(), role, req.Source)
	if err != nil {
		h.fail(w, "load", err)
		return
	}
	select {
	case res := <-results:
		if res.Err != nil {
			h.logger.Warn().Err(res.Err).Str("role", role.String()).Msg("api load failed")
			http.Error(w, res.Err.Error(), http.StatusUnprocessableEntity)
			return
		}
		writeJSON(w, map[string]any{
			"ok":       true,
			"role":     role.String(),
			"id":       res.Track.ID,
			"title":    res.Track.DisplayName(),
			"duration": res.Track.Duration.Seconds(),
		})
	case <-r.Context().Done():
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, session.ErrReleased) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.logger.Error().Err(err).Str("op", op).Msg("api request failed")
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
