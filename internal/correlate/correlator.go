package correlate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"voice-control/internal/bus"
	"voice-control/internal/fanout"
	"voice-control/internal/metrics"
)

// ErrTimedOut reports that no inbound message satisfied the predicate
// within the deadline. Expected and non-fatal; surfaced to the caller,
// never retried here.
var ErrTimedOut = errors.New("correlate: timed out waiting for reply")

// Predicate inspects one inbound message and either produces the final
// result of the wait or declines it. Non-matching messages are
// discarded, not replayed. Correlation ids live in payload bodies, so
// checking them is the predicate's job, not the topic layer's.
type Predicate func(topic string, payload []byte) (any, bool)

// Correlator implements the one-shot publish-then-wait pattern behind
// every synchronous-style API operation: a private queue on the hub,
// the outbound publishes, then a receive loop until the predicate is
// satisfied or the deadline passes.
type Correlator struct {
	hub *fanout.Hub
	pub bus.Publisher
	log *zap.Logger
}

func New(hub *fanout.Hub, pub bus.Publisher, log *zap.Logger) *Correlator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Correlator{hub: hub, pub: pub, log: log}
}

// PublishAndWait registers a private queue for patterns, publishes the
// outbound messages in order, and receives until pred yields a result.
// The queue is registered before the first publish so a fast reply
// cannot slip past it, and deregistered on every exit path.
func (c *Correlator) PublishAndWait(
	ctx context.Context,
	outbound []bus.Message,
	patterns []string,
	pred Predicate,
	timeout time.Duration,
) (any, error) {
	q, err := c.hub.Register(patterns...)
	if err != nil {
		return nil, err
	}
	defer c.hub.Deregister(q)

	for _, m := range outbound {
		if err := c.pub.Publish(ctx, m.Topic, m.Payload); err != nil {
			return nil, fmt.Errorf("publish %s: %w", m.Topic, err)
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		m, err := q.Receive(waitCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				metrics.CorrelationTimeouts.Inc()
				c.log.Debug("publish-and-wait timed out",
					zap.Strings("patterns", patterns),
					zap.Duration("timeout", timeout),
				)
				return nil, fmt.Errorf("%w after %s", ErrTimedOut, timeout)
			}
			return nil, err
		}
		if res, ok := pred(m.Topic, m.Payload); ok {
			return res, nil
		}
	}
}
