package app

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huestrip/internal/color"
	"github.com/dokzlo13/huestrip/internal/config"
	"github.com/dokzlo13/huestrip/internal/db"
	"github.com/dokzlo13/huestrip/internal/driver"
	"github.com/dokzlo13/huestrip/internal/engine"
	"github.com/dokzlo13/huestrip/internal/eventbus"
	"github.com/dokzlo13/huestrip/internal/ledger"
	"github.com/dokzlo13/huestrip/internal/light"
	"github.com/dokzlo13/huestrip/internal/storage"
)

// Services is a container for all application services.
type Services struct {
	cfg *config.Config

	// Core infrastructure. DB backs the sqlite store and, when the paths
	// match, the ledger; LedgerDB is only set for a separate ledger file.
	DB       *db.DB
	LedgerDB *db.DB
	Store    storage.Store
	Ledger   *ledger.Ledger
	Bus      *eventbus.Bus

	Engine *engine.Engine
	MAC    net.HardwareAddr

	Persist *PersistService
	API     *APIService
	MQTT    *MQTTService
	Lua     *LuaService

	wg sync.WaitGroup
}

// NewServices creates all services.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	if err := s.openStorage(); err != nil {
		s.Close()
		return nil, err
	}

	s.Bus = eventbus.NewWithConfig(cfg.EventBus.Workers, cfg.EventBus.QueueSize)

	out, err := driver.New(driver.Config{
		Type:       cfg.Driver.Type,
		Host:       cfg.Driver.Host,
		Port:       cfg.Driver.Port,
		Channel:    cfg.Driver.Channel,
		SerialPort: cfg.Driver.SerialPort,
		BaudRate:   cfg.Driver.BaudRate,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}

	conv := color.NewConverter(color.Calibration{
		Red:   cfg.Strip.Calibration.Percent(cfg.Strip.Calibration.R),
		Green: cfg.Strip.Calibration.Percent(cfg.Strip.Calibration.G),
		Blue:  cfg.Strip.Calibration.Percent(cfg.Strip.Calibration.B),
	})
	layout := light.Layout{
		Lights:            cfg.Strip.Lights,
		PixelsPerLight:    cfg.Strip.PixelsPerLight,
		GapPixels:         cfg.Strip.GapPixels,
		FirstNumber:       cfg.Strip.FirstLightNumber,
		DefaultTransition: cfg.Strip.GetDefaultTransition(),
	}
	s.Engine, err = engine.New(conv, layout, out, s.Bus, engine.Options{
		Pixels:  cfg.Strip.Pixels,
		FPS:     cfg.Strip.FPS,
		Refresh: cfg.Strip.GetRefresh(),
	})
	if err != nil {
		out.Close()
		s.Close()
		return nil, fmt.Errorf("invalid strip layout: %w", err)
	}

	s.Persist = NewPersistService(cfg, s.Store, s.Engine, s.Bus, s.Ledger)

	s.MAC, err = s.Persist.BridgeMAC()
	if err != nil {
		s.Close()
		return nil, err
	}

	s.API = NewAPIService(cfg, s.Engine, s.Ledger, s.MAC)
	s.MQTT = NewMQTTService(cfg, s.Engine, s.Ledger)
	s.Lua = NewLuaService(cfg, s.Engine)

	return s, nil
}

func (s *Services) openStorage() error {
	cfg := s.cfg

	switch cfg.Storage.Backend {
	case storage.BackendSQLite:
		database, err := db.Open(cfg.Storage.Path)
		if err != nil {
			return err
		}
		s.DB = database
		s.Store = storage.NewSQLiteStore(database.DB)
	case storage.BackendBolt:
		store, err := storage.OpenBolt(cfg.Storage.Path)
		if err != nil {
			return err
		}
		s.Store = store
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if !cfg.Ledger.IsEnabled() {
		return nil
	}
	if s.DB != nil && samePath(cfg.Ledger.Path, cfg.Storage.Path) {
		s.Ledger = ledger.New(s.DB.DB)
		return nil
	}
	database, err := db.Open(cfg.Ledger.Path)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	s.LedgerDB = database
	s.Ledger = ledger.New(database.DB)
	return nil
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

// Start restores state and starts all background services.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	s.Persist.Restore()

	if err := s.Lua.LoadScript(); err != nil {
		return err
	}

	s.Lua.Start(ctx, s.Bus, &s.wg)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Engine.Run(ctx); err != nil {
			onFatalError(err)
		}
	}()

	s.Persist.Start(ctx, &s.wg)
	s.API.Start(ctx, s.Bus, onFatalError)
	s.MQTT.Start(ctx, s.Bus)

	return nil
}

// ClearState removes persisted snapshots. The bridge id is kept so the
// bridge keeps recognising the device.
func (s *Services) ClearState() error {
	id, _ := s.Store.GetMeta(metaBridgeID)
	if err := s.Store.Clear(); err != nil {
		return err
	}
	if id != "" {
		return s.Store.SetMeta(metaBridgeID, id)
	}
	return nil
}

// Stop waits for the frame loop and persistence, flushes a final snapshot
// and releases resources.
func (s *Services) Stop() error {
	s.wg.Wait()
	s.Persist.Flush()
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.MQTT != nil {
		s.MQTT.Close()
	}
	if s.API != nil {
		s.API.Close()
	}
	if s.Lua != nil {
		s.Lua.Close()
	}
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		s.Bus.Close(ctx)
		cancel()
	}
	if s.Engine != nil {
		if err := s.Engine.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close driver")
		}
	}
	if s.Store != nil {
		s.Store.Close()
	}
	if s.LedgerDB != nil {
		s.LedgerDB.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
