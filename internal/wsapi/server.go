package wsapi

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voice-control/internal/bus"
	"voice-control/internal/fanout"
	"voice-control/internal/metrics"
	"voice-control/internal/topic"
)

// Bus is what a websocket session needs from the transport: publishing
// on behalf of the client and broker-side subscribe bookkeeping.
type Bus interface {
	bus.Publisher
	bus.Subscriber
}

// Server hosts the long-lived websocket consumers over the fan-out
// hub. Each connection owns exactly one queue; the queue never
// outlives its session.
type Server struct {
	hub *fanout.Hub
	bus Bus
	reg *topic.Registry
	log *zap.Logger
	up  websocket.Upgrader
}

func New(hub *fanout.Hub, b Bus, reg *topic.Registry, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		hub: hub,
		bus: b,
		reg: reg,
		log: log,
		up: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// session ties one websocket connection to one hub queue plus the
// registry references it holds. release undoes everything on every
// exit path.
type session struct {
	srv      *Server
	conn     *websocket.Conn
	q        *fanout.Queue
	patterns []string
}

// open upgrades the connection and registers a queue for the given
// patterns, with the registry references already taken so broker-side
// subscriptions exist before the first message can arrive.
func (s *Server) open(w http.ResponseWriter, r *http.Request, patterns ...string) (*session, error) {
	conn, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	sess := &session{srv: s, conn: conn}

	for _, p := range patterns {
		if err := sess.subscribeBus(p); err != nil {
			sess.release()
			return nil, err
		}
	}
	q, err := s.hub.Register(patterns...)
	if err != nil {
		sess.release()
		return nil, err
	}
	sess.q = q
	metrics.WSSessions.Inc()
	return sess, nil
}

// subscribe adds a pattern to both the session queue and the broker.
func (sess *session) subscribe(pattern string) error {
	if err := sess.q.Subscribe(pattern); err != nil {
		return err
	}
	return sess.subscribeBus(pattern)
}

func (sess *session) subscribeBus(pattern string) error {
	first, err := sess.srv.reg.Add(pattern)
	if err != nil {
		return err
	}
	sess.patterns = append(sess.patterns, pattern)
	if first {
		if err := sess.srv.bus.Subscribe(pattern); err != nil {
			return err
		}
	}
	return nil
}

func (sess *session) release() {
	if sess.q != nil {
		sess.srv.hub.Deregister(sess.q)
		metrics.WSSessions.Dec()
	}
	for _, p := range sess.patterns {
		if last := sess.srv.reg.Remove(p); last {
			if err := sess.srv.bus.Unsubscribe(p); err != nil {
				sess.srv.log.Warn("bus unsubscribe", zap.String("pattern", p), zap.Error(err))
			}
		}
	}
	_ = sess.conn.Close()
}

// discardReads drains inbound frames so close handshakes are
// processed, cancelling the session when the transport ends.
func (sess *session) discardReads(cancel context.CancelFunc) {
	go func() {
		defer cancel()
		for {
			if _, _, err := sess.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
