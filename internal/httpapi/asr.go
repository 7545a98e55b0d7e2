package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"voice-control/internal/bus"
	"voice-control/internal/hermes"
)

// waitTextCaptured publishes outbound and blocks until the ASR system
// reports a transcription (or error) for this session id. The shared
// textCaptured topic carries every session's results; the predicate's
// session id check is what scopes the wait.
func (a *API) waitTextCaptured(ctx context.Context, outbound []bus.Message, sessionID string) (*hermes.TextCaptured, error) {
	res, err := a.cor.PublishAndWait(ctx, outbound,
		[]string{hermes.AsrTextCaptured, hermes.AsrErrorTopic},
		func(topic string, payload []byte) (any, bool) {
			switch topic {
			case hermes.AsrTextCaptured:
				var tc hermes.TextCaptured
				if err := json.Unmarshal(payload, &tc); err != nil || tc.SessionID != sessionID {
					return nil, false
				}
				return &tc, true
			case hermes.AsrErrorTopic:
				var he hermes.Error
				if err := json.Unmarshal(payload, &he); err != nil || he.SessionID != sessionID {
					return nil, false
				}
				return &he, true
			}
			return nil, false
		},
		a.timeout,
	)
	if err != nil {
		return nil, err
	}
	switch v := res.(type) {
	case *hermes.TextCaptured:
		return v, nil
	case *hermes.Error:
		return nil, fmt.Errorf("asr: %s", v.Error)
	}
	return nil, fmt.Errorf("asr: unexpected reply %T", res)
}

// SpeechToText transcribes a posted WAV: start a listening session,
// feed the audio as one session frame, stop, and wait for the capture.
func (a *API) SpeechToText(w http.ResponseWriter, r *http.Request) {
	wav, err := io.ReadAll(r.Body)
	if err != nil {
		a.writeError(w, err)
		return
	}

	sessionID := hermes.NewID()
	outbound := []bus.Message{
		{Topic: hermes.AsrStartListening, Payload: hermes.MustMarshal(hermes.StartListening{
			SiteID:    a.siteID,
			SessionID: sessionID,
		})},
		{Topic: hermes.AudioFrameTopic(a.siteID, sessionID), Payload: wav},
		{Topic: hermes.AsrStopListening, Payload: hermes.MustMarshal(hermes.StopListening{
			SiteID:    a.siteID,
			SessionID: sessionID,
		})},
	}

	tc, err := a.waitTextCaptured(r.Context(), outbound, sessionID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	if r.URL.Query().Get("outputFormat") == "hermes" {
		writeJSON(w, map[string]any{"type": "textCaptured", "value": tc})
		return
	}
	writeText(w, tc.Text)
}

// SpeechToIntent transcribes a posted WAV and runs the transcription
// through intent recognition, both stages sharing one session id.
// ?nohass=true suppresses downstream intent handling for the duration
// of the query.
func (a *API) SpeechToIntent(w http.ResponseWriter, r *http.Request) {
	wav, err := io.ReadAll(r.Body)
	if err != nil {
		a.writeError(w, err)
		return
	}

	if strings.EqualFold(r.URL.Query().Get("nohass"), "true") {
		if err := a.pub.Publish(r.Context(), hermes.HandleToggleOff, hermes.MustMarshal(hermes.HandleToggle{SiteID: a.siteID})); err != nil {
			a.writeError(w, err)
			return
		}
		defer func() {
			if err := a.pub.Publish(r.Context(), hermes.HandleToggleOn, hermes.MustMarshal(hermes.HandleToggle{SiteID: a.siteID})); err != nil {
				a.log.Warn("handle toggle on", zap.Error(err))
			}
		}()
	}

	sessionID := hermes.NewID()
	outbound := []bus.Message{
		{Topic: hermes.AsrStartListening, Payload: hermes.MustMarshal(hermes.StartListening{
			SiteID:    a.siteID,
			SessionID: sessionID,
		})},
		{Topic: hermes.AudioFrameTopic(a.siteID, sessionID), Payload: wav},
		{Topic: hermes.AsrStopListening, Payload: hermes.MustMarshal(hermes.StopListening{
			SiteID:    a.siteID,
			SessionID: sessionID,
		})},
	}
	tc, err := a.waitTextCaptured(r.Context(), outbound, sessionID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	outbound = []bus.Message{
		{Topic: hermes.NluQueryTopic, Payload: hermes.MustMarshal(hermes.NluQuery{
			Input:  tc.Text,
			ID:     sessionID,
			SiteID: a.siteID,
		})},
	}
	res, err := a.waitIntent(r.Context(), outbound, sessionID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	// The Rhasspy shape carries the transcription confidence alongside
	// the recognized intent.
	if in, ok := res.(*hermes.NluIntent); ok && r.URL.Query().Get("outputFormat") != "hermes" {
		d := in.RhasspyDict()
		d.SpeechConfidence = tc.Likelihood
		writeJSON(w, d)
		return
	}
	a.writeIntent(w, r, res)
}

// StartRecording opens a named ASR session; the correlation id is
// returned and also remembered by name so StopRecording can find it.
func (a *API) StartRecording(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	sessionID := a.sessions.Start(name)

	err := a.pub.Publish(r.Context(), hermes.AsrStartListening, hermes.MustMarshal(hermes.StartListening{
		SiteID:            a.siteID,
		SessionID:         sessionID,
		SendAudioCaptured: true,
	}))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeText(w, sessionID)
}

// StopRecording closes the named session, waits for the transcription
// and runs it through intent recognition.
func (a *API) StopRecording(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	sessionID, err := a.sessions.Finish(name)
	if err != nil {
		a.writeError(w, err)
		return
	}

	outbound := []bus.Message{
		{Topic: hermes.AsrStopListening, Payload: hermes.MustMarshal(hermes.StopListening{
			SiteID:    a.siteID,
			SessionID: sessionID,
		})},
	}
	tc, err := a.waitTextCaptured(r.Context(), outbound, sessionID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.respondIntent(w, r, tc.Text, sessionID)
}
