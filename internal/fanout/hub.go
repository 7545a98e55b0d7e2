package fanout

import (
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"voice-control/internal/bus"
	"voice-control/internal/topic"
)

var ErrUnknownConsumer = errors.New("fanout: unknown consumer queue")

// Hub multiplexes the single inbound bus stream across independently
// registered consumer queues. Queues are created on Register and
// destroyed only by an explicit Deregister; the hub never tears one
// down on its own.
type Hub struct {
	log *zap.Logger

	mu     sync.RWMutex
	queues map[uint64]*Queue

	nextID atomic.Uint64
}

func New(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:    log,
		queues: map[uint64]*Queue{},
	}
}

// Register allocates a new consumer queue subscribed to the given
// patterns. Zero patterns is legal: the queue receives nothing until
// Subscribe adds one. No message delivered before Register returns is
// visible to the queue.
func (h *Hub) Register(patterns ...string) (*Queue, error) {
	for _, p := range patterns {
		if err := topic.Validate(p); err != nil {
			return nil, err
		}
	}

	q := &Queue{
		hub:      h,
		id:       h.nextID.Add(1),
		notify:   make(chan struct{}, 1),
		patterns: map[string]struct{}{},
	}
	for _, p := range patterns {
		q.patterns[p] = struct{}{}
	}

	h.mu.Lock()
	h.queues[q.id] = q
	h.mu.Unlock()
	h.log.Debug("consumer queue registered",
		zap.Uint64("queue_id", q.id),
		zap.Strings("patterns", patterns),
	)
	return q, nil
}

// Deliver appends the message to every registered queue with at least
// one matching pattern. Buffering is append-only and unbounded: a
// stalled consumer accumulates memory rather than stalling delivery to
// the others. Accepted trade-off; revisit bounded-drop-oldest only with
// a semantics decision, not silently.
func (h *Hub) Deliver(t string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, q := range h.queues {
		q.append(bus.Message{Topic: t, Payload: payload})
	}
}

// Deregister removes the queue and discards anything still buffered.
// Safe to call concurrently with Deliver; append and removal are
// mutually exclusive per queue. Deregistering twice is a no-op.
func (h *Hub) Deregister(q *Queue) {
	if q == nil {
		return
	}
	h.mu.Lock()
	delete(h.queues, q.id)
	h.mu.Unlock()

	q.close()
	h.log.Debug("consumer queue deregistered", zap.Uint64("queue_id", q.id))
}

// Len reports the number of registered queues.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.queues)
}
