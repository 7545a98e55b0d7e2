package embeddednats

import (
	"fmt"
	"time"

	natssrv "github.com/nats-io/nats-server/v2/server"
)

type Config struct {
	Host string
	Port int
}

// Server is an in-process NATS broker for development and tests. Core
// NATS only; messages are not persisted (durability is a non-goal).
type Server struct {
	s *natssrv.Server
}

func Start(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 14222
	}

	opts := &natssrv.Options{
		ServerName: "voice-embedded-nats",
		Host:       cfg.Host,
		Port:       cfg.Port,

		NoSigs: true,
		// Keep embedded quiet; the app logger owns stdout.
		NoLog: true,
	}

	s, err := natssrv.NewServer(opts)
	if err != nil {
		return nil, err
	}
	go s.Start()
	if !s.ReadyForConnections(5 * time.Second) {
		s.Shutdown()
		return nil, fmt.Errorf("embedded nats not ready on %s:%d", cfg.Host, cfg.Port)
	}
	return &Server{s: s}, nil
}

// ClientURL returns the URL clients should dial.
func (s *Server) ClientURL() string {
	return s.s.ClientURL()
}

func (s *Server) Shutdown() {
	if s == nil || s.s == nil {
		return
	}
	s.s.Shutdown()
}
