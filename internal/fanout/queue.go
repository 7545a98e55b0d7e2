package fanout

import (
	"context"
	"sync"

	"voice-control/internal/bus"
	"voice-control/internal/topic"
)

// Queue is one consumer's private, ordered view of the bus. Owned
// exclusively by whoever registered it; nothing here is shared between
// consumers except the hub itself.
type Queue struct {
	hub *Hub
	id  uint64

	mu       sync.Mutex
	buf      []bus.Message
	closed   bool
	patterns map[string]struct{}

	// notify carries a coalesced "buffer is non-empty (or queue
	// closed)" wakeup; capacity 1 so a signal is never lost between
	// a receiver's buffer check and its wait.
	notify chan struct{}
}

// Subscribe adds a pattern to the queue's subscription set. Not
// retroactive: messages delivered before the call are unaffected.
func (q *Queue) Subscribe(pattern string) error {
	if err := topic.Validate(pattern); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrUnknownConsumer
	}
	q.patterns[pattern] = struct{}{}
	return nil
}

// Patterns returns a snapshot of the queue's subscription set.
func (q *Queue) Patterns() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.patterns))
	for p := range q.patterns {
		out = append(out, p)
	}
	return out
}

// Receive returns the oldest buffered message, blocking until one is
// available or ctx is done. A deregistered queue fails with
// ErrUnknownConsumer.
func (q *Queue) Receive(ctx context.Context) (bus.Message, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return bus.Message{}, ErrUnknownConsumer
		}
		if len(q.buf) > 0 {
			m := q.buf[0]
			q.buf = q.buf[1:]
			q.mu.Unlock()
			return m, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return bus.Message{}, ctx.Err()
		}
	}
}

func (q *Queue) append(m bus.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	matched := false
	for p := range q.patterns {
		if topic.Match(p, m.Topic) {
			matched = true
			break
		}
	}
	if !matched {
		return
	}
	q.buf = append(q.buf, m)
	q.signal()
}

func (q *Queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.buf = nil
	q.signal()
}

// signal must be called with q.mu held.
func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
