package natsbus

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"voice-control/internal/bus"
)

type Config struct {
	URL     string
	Timeout time.Duration
}

// Client is the concrete bus over core NATS. Hermes '/'-topics map to
// NATS subjects segment for segment; wildcard translation keeps the
// subscription semantics identical on both sides of the bridge.
type Client struct {
	nc      *nats.Conn
	log     *zap.Logger
	handler bus.Handler

	mu   sync.Mutex
	subs map[string][]*nats.Subscription
}

// Connect dials the broker. handler is invoked once per inbound
// message, in connection arrival order.
func Connect(cfg Config, handler bus.Handler, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Timeout(cfg.Timeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(*nats.Conn) {
			// A reconnect simply resumes delivery; queue state is
			// untouched by the gap.
			log.Info("bus reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}
	return &Client{
		nc:      nc,
		log:     log,
		handler: handler,
		subs:    map[string][]*nats.Subscription{},
	}, nil
}

func (c *Client) Close() error {
	if c.nc == nil {
		return nil
	}
	return c.nc.Drain()
}

func (c *Client) Publish(_ context.Context, topic string, payload []byte) error {
	return c.nc.Publish(topicToSubject(topic), payload)
}

// Subscribe opens the broker-side subscriptions for pattern.
// Subscribing to the same pattern twice is a no-op; coalescing is the
// subscription registry's job and this is the backstop.
func (c *Client) Subscribe(pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[pattern]; ok {
		return nil
	}
	var subs []*nats.Subscription
	for _, subject := range patternToSubjects(pattern) {
		sub, err := c.nc.Subscribe(subject, func(m *nats.Msg) {
			c.handler(subjectToTopic(m.Subject), m.Data)
		})
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return err
		}
		subs = append(subs, sub)
	}
	c.subs[pattern] = subs
	c.log.Debug("bus subscribe", zap.String("pattern", pattern))
	return nil
}

func (c *Client) Unsubscribe(pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs, ok := c.subs[pattern]
	if !ok {
		return nil
	}
	delete(c.subs, pattern)
	c.log.Debug("bus unsubscribe", zap.String("pattern", pattern))
	var first error
	for _, s := range subs {
		if err := s.Unsubscribe(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// topicToSubject maps a '/'-delimited topic to a NATS subject.
func topicToSubject(topic string) string {
	return strings.ReplaceAll(topic, "/", ".")
}

func subjectToTopic(subject string) string {
	return strings.ReplaceAll(subject, ".", "/")
}

// patternToSubjects maps the MQTT-style wildcards onto their NATS
// equivalents: '+' -> '*', trailing '#' -> '>'. NATS '>' matches one
// or more tokens where '#' matches zero or more, so "a/#" needs a
// second subscription on the bare parent subject "a".
func patternToSubjects(pattern string) []string {
	segs := strings.Split(pattern, "/")
	for i, s := range segs {
		if s == "+" {
			segs[i] = "*"
		}
	}
	last := len(segs) - 1
	if segs[last] != "#" {
		return []string{strings.Join(segs, ".")}
	}
	segs[last] = ">"
	deep := strings.Join(segs, ".")
	if last == 0 {
		return []string{deep}
	}
	parent := strings.Join(segs[:last], ".")
	return []string{deep, parent}
}
