package bus

import "context"

// Message is one event on the bus: a '/'-delimited topic and an opaque
// payload. Immutable once received; arrival order from the connection
// is the only ordering this core relies on.
type Message struct {
	Topic   string
	Payload []byte
}

type Publisher interface {
	// Publish is fire-and-forget; no delivery acknowledgement is
	// observed by this core.
	Publish(ctx context.Context, topic string, payload []byte) error
}

type Subscriber interface {
	Subscribe(pattern string) error
	Unsubscribe(pattern string) error
}

// Handler is the dispatch point for the inbound stream. The transport
// calls it once per received message, in arrival order.
type Handler func(topic string, payload []byte)
