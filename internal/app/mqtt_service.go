package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huestrip/internal/config"
	"github.com/dokzlo13/huestrip/internal/engine"
	"github.com/dokzlo13/huestrip/internal/eventbus"
	"github.com/dokzlo13/huestrip/internal/ledger"
	"github.com/dokzlo13/huestrip/internal/mqtt"
)

// MQTTService runs the MQTT bridge when enabled.
type MQTTService struct {
	cfg    mqtt.Config
	Bridge *mqtt.Bridge
}

// NewMQTTService creates an MQTTService. l may be nil.
func NewMQTTService(cfg *config.Config, e *engine.Engine, l *ledger.Ledger) *MQTTService {
	s := &MQTTService{
		cfg: mqtt.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		},
	}
	if !cfg.MQTT.Enabled {
		return s
	}

	var rec mqtt.Recorder
	if l != nil {
		rec = l
	}
	s.Bridge = mqtt.NewBridge(e, s.cfg, rec)
	return s
}

// Start connects in the background; the client keeps retrying until the
// broker is reachable.
func (s *MQTTService) Start(ctx context.Context, bus *eventbus.Bus) {
	if s.Bridge == nil {
		log.Info().Msg("MQTT bridge is disabled")
		return
	}

	s.Bridge.Attach(bus)
	go func() {
		if err := s.Bridge.Connect(s.cfg); err != nil {
			log.Error().Err(err).Str("broker", s.cfg.Broker).Msg("MQTT bridge not connected")
			return
		}
		log.Info().Str("prefix", s.cfg.TopicPrefix).Msg("MQTT bridge started")
	}()
}

// Close disconnects from the broker.
func (s *MQTTService) Close() {
	if s.Bridge != nil {
		s.Bridge.Stop()
	}
}
