package wsapi

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"voice-control/internal/bus"
	"voice-control/internal/hermes"
)

// Typed one-way event streams. Each registers a queue for a fixed set
// of patterns and pushes a client-friendly JSON shape per message
// until the transport closes.

// EventsIntent streams recognized (and unrecognized) intents in
// Rhasspy JSON format.
func (s *Server) EventsIntent(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, []string{hermes.IntentTopic("#"), hermes.NluIntentNotRecognized},
		func(m bus.Message) (any, bool) {
			if m.Topic == hermes.NluIntentNotRecognized {
				var nr hermes.IntentNotRecognized
				if err := json.Unmarshal(m.Payload, &nr); err != nil {
					return nil, false
				}
				return nr.RhasspyDict(), true
			}
			var in hermes.NluIntent
			if err := json.Unmarshal(m.Payload, &in); err != nil {
				return nil, false
			}
			return in.RhasspyDict(), true
		})
}

// EventsText streams transcriptions as they are captured.
func (s *Server) EventsText(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, []string{hermes.AsrTextCaptured},
		func(m bus.Message) (any, bool) {
			var tc hermes.TextCaptured
			if err := json.Unmarshal(m.Payload, &tc); err != nil {
				return nil, false
			}
			return map[string]any{
				"text":       tc.Text,
				"siteId":     tc.SiteID,
				"wakewordId": tc.WakewordID,
			}, true
		})
}

// EventsWake notifies clients when a wake word fires. The model id
// lives in the topic, not the payload.
func (s *Server) EventsWake(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, []string{hermes.HotwordDetectedPattern},
		func(m bus.Message) (any, bool) {
			var hd hermes.HotwordDetected
			if err := json.Unmarshal(m.Payload, &hd); err != nil {
				return nil, false
			}
			return map[string]any{
				"wakewordId": hermes.WakewordID(m.Topic),
				"siteId":     hd.SiteID,
			}, true
		})
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, patterns []string, shape func(bus.Message) (any, bool)) {
	sess, err := s.open(w, r, patterns...)
	if err != nil {
		s.log.Debug("websocket open", zap.Error(err))
		return
	}
	defer sess.release()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	sess.discardReads(cancel)

	for {
		m, err := sess.q.Receive(ctx)
		if err != nil {
			return
		}
		out, ok := shape(m)
		if !ok {
			s.log.Debug("unparseable event payload", zap.String("topic", m.Topic))
			continue
		}
		if err := sess.conn.WriteJSON(out); err != nil {
			return
		}
	}
}
