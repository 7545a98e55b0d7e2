package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"voice-control/internal/bus"
	"voice-control/internal/hermes"
)

// waitIntent publishes outbound and blocks until the NLU system
// answers the query with this id: a parsed intent, a not-recognized
// notice, or an error. Intents arrive on per-intent topics, hence the
// wildcard subscription.
func (a *API) waitIntent(ctx context.Context, outbound []bus.Message, id string) (any, error) {
	res, err := a.cor.PublishAndWait(ctx, outbound,
		[]string{hermes.IntentTopic("#"), hermes.NluIntentNotRecognized, hermes.NluErrorTopic},
		func(topic string, payload []byte) (any, bool) {
			switch {
			case strings.HasPrefix(topic, "hermes/intent/"):
				var in hermes.NluIntent
				if err := json.Unmarshal(payload, &in); err != nil || in.ID != id {
					return nil, false
				}
				return &in, true
			case topic == hermes.NluIntentNotRecognized:
				var nr hermes.IntentNotRecognized
				if err := json.Unmarshal(payload, &nr); err != nil || nr.ID != id {
					return nil, false
				}
				return &nr, true
			case topic == hermes.NluErrorTopic:
				var ne hermes.Error
				if err := json.Unmarshal(payload, &ne); err != nil || ne.SessionID != id {
					return nil, false
				}
				return &ne, true
			}
			return nil, false
		},
		a.timeout,
	)
	if err != nil {
		return nil, err
	}
	if ne, ok := res.(*hermes.Error); ok {
		return nil, fmt.Errorf("nlu: %s", ne.Error)
	}
	return res, nil
}

// respondIntent runs text through NLU and writes the result in the
// requested output format.
func (a *API) respondIntent(w http.ResponseWriter, r *http.Request, text, id string) {
	outbound := []bus.Message{
		{Topic: hermes.NluQueryTopic, Payload: hermes.MustMarshal(hermes.NluQuery{
			Input:  text,
			ID:     id,
			SiteID: a.siteID,
		})},
	}
	res, err := a.waitIntent(r.Context(), outbound, id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeIntent(w, r, res)
}

func (a *API) writeIntent(w http.ResponseWriter, r *http.Request, res any) {
	hermesFormat := r.URL.Query().Get("outputFormat") == "hermes"
	switch v := res.(type) {
	case *hermes.NluIntent:
		if hermesFormat {
			writeJSON(w, map[string]any{"type": "intent", "value": v})
			return
		}
		writeJSON(w, v.RhasspyDict())
	case *hermes.IntentNotRecognized:
		if hermesFormat {
			writeJSON(w, map[string]any{"type": "intentNotRecognized", "value": v})
			return
		}
		writeJSON(w, v.RhasspyDict())
	default:
		a.writeError(w, fmt.Errorf("nlu: unexpected reply %T", res))
	}
}

// TextToIntent recognizes an intent from posted text.
func (a *API) TextToIntent(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.respondIntent(w, r, string(data), hermes.NewID())
}

// ListenForCommand wakes the assistant and runs one full voice
// command: listen until silence, transcribe, then recognize the
// intent. Both stages share one session id.
func (a *API) ListenForCommand(w http.ResponseWriter, r *http.Request) {
	sessionID := hermes.NewID()

	outbound := []bus.Message{
		{Topic: hermes.AsrStartListening, Payload: hermes.MustMarshal(hermes.StartListening{
			SiteID:            a.siteID,
			SessionID:         sessionID,
			StopOnSilence:     true,
			SendAudioCaptured: true,
		})},
	}
	a.log.Debug("waiting for transcription")
	tc, err := a.waitTextCaptured(r.Context(), outbound, sessionID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	outbound = []bus.Message{
		{Topic: hermes.AsrStopListening, Payload: hermes.MustMarshal(hermes.StopListening{
			SiteID:    a.siteID,
			SessionID: sessionID,
		})},
		{Topic: hermes.NluQueryTopic, Payload: hermes.MustMarshal(hermes.NluQuery{
			Input:  tc.Text,
			ID:     sessionID,
			SiteID: a.siteID,
		})},
	}
	a.log.Debug("waiting for intent")
	res, err := a.waitIntent(r.Context(), outbound, sessionID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeIntent(w, r, res)
}

// ListenForWake toggles the wake word system on or off.
func (a *API) ListenForWake(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		a.writeError(w, err)
		return
	}
	off := false
	switch strings.ToLower(strings.TrimSpace(string(body))) {
	case "false", "off":
		off = true
	}

	topic := hermes.HotwordToggleOnTopic
	state := "on"
	if off {
		topic = hermes.HotwordToggleOffTopic
		state = "off"
	}
	if err := a.pub.Publish(r.Context(), topic, hermes.MustMarshal(hermes.HotwordToggle{SiteID: a.siteID})); err != nil {
		a.writeError(w, err)
		return
	}
	writeText(w, state)
}
