package wsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"voice-control/internal/bus"
	"voice-control/internal/metrics"
)

// controlFrame is the inbound half of the websocket bus protocol.
type controlFrame struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// outFrame is one matched bus message pushed to the client.
type outFrame struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// MQTT is the full subscribe/publish websocket endpoint. The session
// races two waits (next transport frame, next queue message) and
// re-arms only the one that completed; each direction stays strictly
// ordered and an error on one side never tears down the other.
func (s *Server) MQTT(w http.ResponseWriter, r *http.Request) {
	sess, err := s.open(w, r)
	if err != nil {
		s.log.Debug("websocket open", zap.Error(err))
		return
	}
	defer sess.release()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	frames := make(chan []byte)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, data, err := sess.conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case frames <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	msgs := make(chan bus.Message)
	go func() {
		for {
			m, err := sess.q.Receive(ctx)
			if err != nil {
				return
			}
			select {
			case msgs <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case data := <-frames:
			if err := sess.handleControl(ctx, data); err != nil {
				// Drop the frame, keep the session.
				metrics.WSFramesDropped.Inc()
				s.log.Debug("dropping control frame", zap.Error(err))
			}
		case m := <-msgs:
			if err := sess.conn.WriteJSON(outFrame{Topic: m.Topic, Payload: asJSON(m.Payload)}); err != nil {
				s.log.Debug("websocket write", zap.Error(err))
				return
			}
		case <-readDone:
			return
		case <-ctx.Done():
			return
		}
	}
}

// MQTTTopic streams messages for the single pattern in the URL; no
// inbound control protocol.
func (s *Server) MQTTTopic(w http.ResponseWriter, r *http.Request) {
	pattern := chi.URLParam(r, "*")
	if unescaped, err := url.PathUnescape(pattern); err == nil {
		pattern = unescaped
	}
	sess, err := s.open(w, r, pattern)
	if err != nil {
		s.log.Debug("websocket open", zap.String("pattern", pattern), zap.Error(err))
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
		if err := sess.conn.WriteJSON(outFrame{Topic: m.Topic, Payload: asJSON(m.Payload)}); err != nil {
			return
		}
	}
}

func (sess *session) handleControl(ctx context.Context, data []byte) error {
	var f controlFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse control frame: %w", err)
	}
	switch f.Type {
	case "subscribe":
		if err := sess.subscribe(f.Topic); err != nil {
			return err
		}
		sess.srv.log.Debug("websocket subscribed", zap.String("pattern", f.Topic))
		return nil
	case "publish":
		payload := []byte(f.Payload)
		if len(payload) == 0 {
			payload = []byte("null")
		}
		return sess.srv.bus.Publish(ctx, f.Topic, payload)
	default:
		return fmt.Errorf("invalid control frame type %q", f.Type)
	}
}

// asJSON passes JSON payloads through untouched and wraps anything
// else as a JSON string.
func asJSON(payload []byte) json.RawMessage {
	if json.Valid(payload) {
		return json.RawMessage(payload)
	}
	quoted, _ := json.Marshal(string(payload))
	return quoted
}
