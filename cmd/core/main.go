package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"voice-control/internal/bus/embeddednats"
	"voice-control/internal/bus/natsbus"
	"voice-control/internal/config"
	"voice-control/internal/correlate"
	"voice-control/internal/fanout"
	"voice-control/internal/hermes"
	"voice-control/internal/httpapi"
	"voice-control/internal/logging"
	"voice-control/internal/metrics"
	"voice-control/internal/session"
	"voice-control/internal/topic"
	"voice-control/internal/version"
	"voice-control/internal/wsapi"
)

// instrumentedBus counts publishes on the way through.
type instrumentedBus struct {
	*natsbus.Client
}

func (b instrumentedBus) Publish(ctx context.Context, topic string, payload []byte) error {
	metrics.BusPublishes.Inc()
	return b.Client.Publish(ctx, topic, payload)
}

// baselinePatterns are the reply topics the correlator-backed API
// operations wait on. Subscribed once at startup; websocket sessions
// add their own on top through the registry.
var baselinePatterns = []string{
	hermes.AsrTextCaptured,
	"hermes/error/#",
	hermes.IntentTopic("#"),
	hermes.NluIntentNotRecognized,
	hermes.HotwordDetectedPattern,
	hermes.TtsSayFinished,
	"hermes/audioServer/+/playFinished",
	hermes.G2pPhonemesTopic,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Embedded NATS (optional) — start before the client connects.
	if cfg.NATS.Embedded {
		emb, err := embeddednats.Start(embeddednats.Config{
			Host: cfg.NATS.Host,
			Port: cfg.NATS.Port,
		})
		if err != nil {
			log.Fatal("embedded nats start", zap.Error(err))
		}
		defer emb.Shutdown()
		cfg.NATS.URL = emb.ClientURL()
		log.Info("embedded nats started", zap.String("url", cfg.NATS.URL))
	}

	hub := fanout.New(log)
	reg := topic.NewRegistry()

	busClient, err := natsbus.Connect(natsbus.Config{
		URL:     cfg.NATS.URL,
		Timeout: cfg.NATS.Timeout,
	}, func(t string, payload []byte) {
		metrics.BusMessages.Inc()
		hub.Deliver(t, payload)
	}, log)
	if err != nil {
		log.Fatal("bus connect", zap.Error(err))
	}
	defer func() { _ = busClient.Close() }()

	b := instrumentedBus{busClient}

	for _, p := range baselinePatterns {
		first, err := reg.Add(p)
		if err != nil {
			log.Fatal("baseline pattern", zap.String("pattern", p), zap.Error(err))
		}
		if first {
			if err := busClient.Subscribe(p); err != nil {
				log.Fatal("bus subscribe", zap.String("pattern", p), zap.Error(err))
			}
		}
	}

	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "voice_fanout_queues",
		Help: "Currently registered consumer queues.",
	}, func() float64 { return float64(hub.Len()) }))

	cor := correlate.New(hub, b, log)
	sessions := session.NewRegistry()
	api := httpapi.New(cor, b, sessions, cfg.Voice.SiteID, cfg.Voice.ResponseTimeout, log)
	ws := wsapi.New(hub, b, reg, log)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/api/version", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(version.String()))
	})
	r.Handle("/metrics", promhttp.Handler())

	api.Routes(r)

	r.Get("/api/mqtt", ws.MQTT)
	r.Get("/api/mqtt/*", ws.MQTTTopic)
	r.Get("/api/events/intent", ws.EventsIntent)
	r.Get("/api/events/text", ws.EventsText)
	r.Get("/api/events/wake", ws.EventsWake)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http serve", zap.Error(err))
		}
	}()
	log.Info("listening",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("site_id", cfg.Voice.SiteID),
		zap.String("nats_url", cfg.NATS.URL),
		zap.String("version", version.String()),
	)

	<-rootCtx.Done()
	log.Info("shutting down")

	ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxTimeout)
}
