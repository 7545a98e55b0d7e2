package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BusMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_bus_messages_total",
		Help: "Messages received from the bus connection.",
	})

	BusPublishes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_bus_publishes_total",
		Help: "Messages published to the bus.",
	})

	CorrelationTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_correlation_timeouts_total",
		Help: "Publish-and-wait calls that expired before a matching reply.",
	})

	WSFramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_ws_frames_dropped_total",
		Help: "Malformed websocket control frames dropped.",
	})

	WSSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_ws_sessions",
		Help: "Currently open websocket sessions.",
	})
)
