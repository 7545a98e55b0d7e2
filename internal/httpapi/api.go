package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"voice-control/internal/bus"
	"voice-control/internal/correlate"
	"voice-control/internal/session"
)

// API exposes the synchronous-style voice operations. Every handler
// that needs a pipeline result goes through the correlator; nothing
// here talks to the bus connection directly.
type API struct {
	cor      *correlate.Correlator
	pub      bus.Publisher
	sessions *session.Registry
	siteID   string
	timeout  time.Duration
	log      *zap.Logger
}

func New(cor *correlate.Correlator, pub bus.Publisher, sessions *session.Registry, siteID string, timeout time.Duration, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{
		cor:      cor,
		pub:      pub,
		sessions: sessions,
		siteID:   siteID,
		timeout:  timeout,
		log:      log,
	}
}

func (a *API) Routes(r chi.Router) {
	r.Post("/api/listen-for-command", a.ListenForCommand)
	r.Post("/api/listen-for-wake", a.ListenForWake)
	r.Post("/api/text-to-intent", a.TextToIntent)
	r.Post("/api/speech-to-text", a.SpeechToText)
	r.Post("/api/speech-to-intent", a.SpeechToIntent)
	r.Post("/api/start-recording", a.StartRecording)
	r.Post("/api/stop-recording", a.StopRecording)
	r.Post("/api/text-to-speech", a.TextToSpeech)
	r.Post("/api/play-wav", a.PlayWav)
	r.Post("/api/lookup", a.Lookup)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s))
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, correlate.ErrTimedOut):
		status = http.StatusGatewayTimeout
	case errors.Is(err, session.ErrNoSuchSession):
		status = http.StatusNotFound
	}
	a.log.Warn("api error", zap.Error(err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
