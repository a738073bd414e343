package app

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huestrip/internal/api"
	"github.com/dokzlo13/huestrip/internal/config"
	"github.com/dokzlo13/huestrip/internal/engine"
	"github.com/dokzlo13/huestrip/internal/eventbus"
	"github.com/dokzlo13/huestrip/internal/ledger"
	"github.com/dokzlo13/huestrip/internal/protocol"
)

// APIService runs the HTTP server and its websocket hub.
type APIService struct {
	cfg    *config.Config
	Server *api.Server
	Hub    *api.Hub
	ready  atomic.Bool
}

// NewAPIService creates an APIService. l may be nil.
func NewAPIService(cfg *config.Config, e *engine.Engine, l *ledger.Ledger, mac net.HardwareAddr) *APIService {
	s := &APIService{cfg: cfg}
	if !cfg.API.IsEnabled() {
		return s
	}

	detect := protocol.NewDetect(cfg.Strip.Name, cfg.Strip.Lights, cfg.Strip.Type, mac)
	s.Hub = api.NewHub(cfg.API.AllowedOrigins)

	var rec api.Recorder
	if l != nil {
		rec = l
	}
	s.Server = api.NewServer(cfg.API.Host, cfg.API.Port, e, detect, rec, s.Hub)
	s.Server.SetReadyCheck(s.ready.Load)
	return s
}

// Start serves HTTP until ctx is cancelled.
func (s *APIService) Start(ctx context.Context, bus *eventbus.Bus, onFatalError func(error)) {
	if s.Server == nil {
		log.Info().Msg("HTTP API is disabled")
		return
	}

	s.Hub.Attach(bus)
	go s.Hub.Run()

	go func() {
		if err := s.Server.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
			onFatalError(err)
		}
	}()
	s.ready.Store(true)
}

// Close stops the websocket hub.
func (s *APIService) Close() {
	if s.Hub != nil {
		s.Hub.Stop()
	}
}
