package wsapi_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-control/internal/bus"
	"voice-control/internal/fanout"
	"voice-control/internal/hermes"
	"voice-control/internal/topic"
	"voice-control/internal/wsapi"
)

type fakeBus struct {
	mu           sync.Mutex
	published    []bus.Message
	subscribed   []string
	unsubscribed []string
}

func (f *fakeBus) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, bus.Message{Topic: topic, Payload: payload})
	return nil
}

func (f *fakeBus) Subscribe(pattern string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, pattern)
	return nil
}

func (f *fakeBus) Unsubscribe(pattern string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, pattern)
	return nil
}

func (f *fakeBus) subscribedTo(pattern string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.subscribed {
		if p == pattern {
			return true
		}
	}
	return false
}

func (f *fakeBus) publishedTo(pattern string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.published {
		if m.Topic == pattern {
			return true
		}
	}
	return false
}

type fixture struct {
	hub *fanout.Hub
	bus *fakeBus
	srv *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hub := fanout.New(nil)
	fb := &fakeBus{}
	ws := wsapi.New(hub, fb, topic.NewRegistry(), nil)

	r := chi.NewRouter()
	r.Get("/api/mqtt", ws.MQTT)
	r.Get("/api/mqtt/*", ws.MQTTTopic)
	r.Get("/api/events/text", ws.EventsText)
	r.Get("/api/events/wake", ws.EventsWake)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &fixture{hub: hub, bus: fb, srv: srv}
}

func (fx *fixture) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(fx.srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type outFrame struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

func readFrame(t *testing.T, conn *websocket.Conn) outFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f outFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestMQTTSubscribeAndStream(t *testing.T) {
	fx := newFixture(t)
	conn := fx.dial(t, "/api/mqtt")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "subscribe", "topic": "events/#"}))
	require.Eventually(t, func() bool { return fx.bus.subscribedTo("events/#") },
		time.Second, 10*time.Millisecond)

	fx.hub.Deliver("events/x", []byte(`{"a":1}`))

	f := readFrame(t, conn)
	assert.Equal(t, "events/x", f.Topic)
	assert.JSONEq(t, `{"a":1}`, string(f.Payload))
}

func TestMQTTPublish(t *testing.T) {
	fx := newFixture(t)
	conn := fx.dial(t, "/api/mqtt")

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "publish",
		"topic":   "cmd/go",
		"payload": map[string]int{"x": 1},
	}))
	require.Eventually(t, func() bool { return fx.bus.publishedTo("cmd/go") },
		time.Second, 10*time.Millisecond)
}

func TestMQTTMalformedFrameKeepsSession(t *testing.T) {
	fx := newFixture(t)
	conn := fx.dial(t, "/api/mqtt")

	// Garbage, then a frame with a bad type; both dropped.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "bogus", "topic": "x"}))

	// The session must still accept a valid subscribe afterwards.
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "subscribe", "topic": "events/#"}))
	require.Eventually(t, func() bool { return fx.bus.subscribedTo("events/#") },
		time.Second, 10*time.Millisecond)

	fx.hub.Deliver("events/x", []byte(`"still alive"`))
	f := readFrame(t, conn)
	assert.Equal(t, "events/x", f.Topic)
}

func TestTwoSessionsEachGetOneCopy(t *testing.T) {
	fx := newFixture(t)
	c1 := fx.dial(t, "/api/mqtt")
	c2 := fx.dial(t, "/api/mqtt")

	// Each session follows the shared pattern with a unique marker
	// pattern; frames are processed in order, so once the marker's
	// bus subscribe is visible, events/# is in place for that session.
	require.NoError(t, c1.WriteJSON(map[string]any{"type": "subscribe", "topic": "events/#"}))
	require.NoError(t, c1.WriteJSON(map[string]any{"type": "subscribe", "topic": "ready/c1"}))
	require.NoError(t, c2.WriteJSON(map[string]any{"type": "subscribe", "topic": "events/#"}))
	require.NoError(t, c2.WriteJSON(map[string]any{"type": "subscribe", "topic": "ready/c2"}))
	require.Eventually(t, func() bool {
		return fx.bus.subscribedTo("ready/c1") && fx.bus.subscribedTo("ready/c2")
	}, time.Second, 10*time.Millisecond)

	fx.bus.mu.Lock()
	shared := 0
	for _, p := range fx.bus.subscribed {
		if p == "events/#" {
			shared++
		}
	}
	fx.bus.mu.Unlock()
	assert.Equal(t, 1, shared, "duplicate broker subscriptions must coalesce")

	fx.hub.Deliver("events/x", []byte(`1`))

	f1 := readFrame(t, c1)
	f2 := readFrame(t, c2)
	assert.Equal(t, "events/x", f1.Topic)
	assert.Equal(t, "events/x", f2.Topic)

	// No duplicates: nothing further arrives on either connection.
	_ = c1.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var extra outFrame
	assert.Error(t, c1.ReadJSON(&extra))
}

func TestSessionTeardownDeregisters(t *testing.T) {
	fx := newFixture(t)
	conn := fx.dial(t, "/api/mqtt")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "subscribe", "topic": "events/#"}))
	require.Eventually(t, func() bool { return fx.hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return fx.hub.Len() == 0 },
		time.Second, 10*time.Millisecond, "queue must be deregistered on close")
	require.Eventually(t, func() bool {
		fx.bus.mu.Lock()
		defer fx.bus.mu.Unlock()
		return len(fx.bus.unsubscribed) == 1
	}, time.Second, 10*time.Millisecond, "broker-side subscription must be released")
}

func TestMQTTTopicStream(t *testing.T) {
	fx := newFixture(t)
	conn := fx.dial(t, "/api/mqtt/hermes/intent/%23")

	require.Eventually(t, func() bool { return fx.hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	fx.hub.Deliver("hermes/intent/GetTime", []byte(`{"id":"s1"}`))
	fx.hub.Deliver("hermes/asr/textCaptured", []byte(`{}`)) // not matched

	f := readFrame(t, conn)
	assert.Equal(t, "hermes/intent/GetTime", f.Topic)
}

func TestEventsText(t *testing.T) {
	fx := newFixture(t)
	conn := fx.dial(t, "/api/events/text")

	require.Eventually(t, func() bool { return fx.hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	fx.hub.Deliver(hermes.AsrTextCaptured, hermes.MustMarshal(hermes.TextCaptured{
		Text:   "hello world",
		SiteID: "default",
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var out map[string]any
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "hello world", out["text"])
	assert.Equal(t, "default", out["siteId"])
}

func TestEventsWake(t *testing.T) {
	fx := newFixture(t)
	conn := fx.dial(t, "/api/events/wake")

	require.Eventually(t, func() bool { return fx.hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	fx.hub.Deliver("hermes/hotword/porcupine/detected", hermes.MustMarshal(hermes.HotwordDetected{
		ModelID: "porcupine",
		SiteID:  "default",
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var out map[string]any
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "porcupine", out["wakewordId"])
	assert.Equal(t, "default", out["siteId"])
}
