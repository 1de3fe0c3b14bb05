package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestMP3Args(t *testing.T) {
	args := strings.Join(mp3Args(160), " ")
	for _, want := range []string{"-ar 48000", "-ac 2", "-b:a 160k", "-codec:a libmp3lame"} {
		if !strings.Contains(args, want) {
			t.Errorf("mp3Args missing %q: %s", want, args)
		}
	}
}

func TestNewHTTPHandlerDefaultBitrate(t *testing.T) {
	h := NewHTTPHandler(NewBroadcaster(zerolog.Nop()), 0, zerolog.Nop())
	if h.bitrate != DefaultMP3Bitrate {
		t.Errorf("bitrate = %d, want %d", h.bitrate, DefaultMP3Bitrate)
	}
}

func TestWebRTCPreflight(t *testing.T) {
	h := NewWebRTCHandler(NewBroadcaster(zerolog.Nop()), nil, zerolog.Nop())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/offer", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("OPTIONS status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "POST" {
		t.Errorf("Allow-Methods = %q, want POST", got)
	}
}

func TestWebRTCRejectsBadRequests(t *testing.T) {
	h := NewWebRTCHandler(NewBroadcaster(zerolog.Nop()), []string{"stun:stun.l.google.com:19302"}, zerolog.Nop())
	if len(h.config.ICEServers) != 1 {
		t.Errorf("ICEServers = %v, want one entry", h.config.ICEServers)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/offer", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/offer", strings.NewReader("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad offer status = %d, want 400", rec.Code)
	}
	if h.PeerCount() != 0 {
		t.Errorf("PeerCount = %d, want 0", h.PeerCount())
	}
}
