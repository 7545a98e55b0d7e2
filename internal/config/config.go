package config

import (
	"time"

	"github.com/caarlos0/env/v11"

	"voice-control/internal/logging"
)

type HTTP struct {
	Addr string `env:"HTTP_ADDR" envDefault:":12101"`
}

type NATS struct {
	URL      string        `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	Timeout  time.Duration `env:"NATS_TIMEOUT" envDefault:"5s"`
	Embedded bool          `env:"NATS_EMBEDDED" envDefault:"false"`
	Host     string        `env:"NATS_EMBEDDED_HOST" envDefault:"127.0.0.1"`
	Port     int           `env:"NATS_EMBEDDED_PORT" envDefault:"14222"`
}

type Voice struct {
	// SiteID scopes every published Hermes message to this deployment.
	SiteID string `env:"SITE_ID" envDefault:"default"`
	// ResponseTimeout bounds every publish-and-wait operation.
	ResponseTimeout time.Duration `env:"RESPONSE_TIMEOUT" envDefault:"30s"`
}

type Config struct {
	HTTP  HTTP
	NATS  NATS
	Voice Voice
	Log   logging.Config
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
