package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huestrip/internal/config"
	"github.com/dokzlo13/huestrip/internal/engine"
	"github.com/dokzlo13/huestrip/internal/eventbus"
	"github.com/dokzlo13/huestrip/internal/ledger"
	"github.com/dokzlo13/huestrip/internal/storage"
)

const metaBridgeID = "bridge_id"

// PersistService saves light snapshots when they change, restores them on
// start and prunes the ledger.
type PersistService struct {
	cfg    *config.Config
	store  storage.Store
	engine *engine.Engine
	bus    *eventbus.Bus
	ledger *ledger.Ledger

	mu sync.Mutex
}

// NewPersistService creates a PersistService. l may be nil.
func NewPersistService(cfg *config.Config, store storage.Store, e *engine.Engine, bus *eventbus.Bus, l *ledger.Ledger) *PersistService {
	return &PersistService{
		cfg:    cfg,
		store:  store,
		engine: e,
		bus:    bus,
		ledger: l,
	}
}

// BridgeMAC returns the address reported to the bridge, derived from a
// bridge id generated on first start.
func (s *PersistService) BridgeMAC() (net.HardwareAddr, error) {
	raw, err := s.store.GetMeta(metaBridgeID)
	if errors.Is(err, storage.ErrNotFound) {
		raw = uuid.NewString()
		if err := s.store.SetMeta(metaBridgeID, raw); err != nil {
			return nil, fmt.Errorf("failed to store bridge id: %w", err)
		}
		log.Info().Str("bridge_id", raw).Msg("Generated bridge id")
	} else if err != nil {
		return nil, fmt.Errorf("failed to load bridge id: %w", err)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid bridge id %q: %w", raw, err)
	}
	return macFromID(id), nil
}

// macFromID takes the first six bytes of id as a locally administered
// unicast address.
func macFromID(id uuid.UUID) net.HardwareAddr {
	mac := make(net.HardwareAddr, 6)
	copy(mac, id[:6])
	mac[0] = (mac[0] | 0x02) &^ 0x01
	return mac
}

// Restore loads stored snapshots into the engine. Failures leave the
// default state in place.
func (s *PersistService) Restore() {
	snaps, err := s.store.LoadLights()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load light state")
		return
	}
	if len(snaps) == 0 {
		log.Info().Msg("No stored light state, using defaults")
		return
	}
	if err := s.engine.Restore(snaps); err != nil {
		log.Warn().Err(err).Msg("Some stored light state could not be restored")
	}
	log.Info().Int("lights", len(snaps)).Msg("Restored light state")
}

// Start runs the save loop and, with a ledger, the cleanup loop.
func (s *PersistService) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runSaveLoop(ctx)
	}()

	if s.ledger != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runLedgerCleanup(ctx)
		}()
	}
}

// interval returns d, or fallback when d is not positive.
func interval(d config.Duration, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d.Duration()
}

func (s *PersistService) runSaveLoop(ctx context.Context) {
	ticker := time.NewTicker(interval(s.cfg.Storage.SaveInterval, 5*time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Flush saves the snapshots if anything changed since the last save.
func (s *PersistService) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps, dirty := s.engine.TakeSnapshot()
	if !dirty {
		return
	}
	if err := s.store.SaveLights(snaps); err != nil {
		log.Error().Err(err).Msg("Failed to save light state")
		s.engine.MarkDirty()
		return
	}

	log.Debug().Int("lights", len(snaps)).Msg("Saved light state")
	s.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeSaved,
		Data: map[string]any{"lights": len(snaps)},
	})
}

func (s *PersistService) runLedgerCleanup(ctx context.Context) {
	retention := s.cfg.Ledger.Retention()
	ticker := time.NewTicker(interval(s.cfg.Ledger.CleanupInterval, 24*time.Hour))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.ledger.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
			} else if deleted > 0 {
				log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
			}
		}
	}
}
