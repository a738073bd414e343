// Package app wires the strip engine, its drivers, storage and front ends
// together and manages their lifecycle.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huestrip/internal/config"
)

// App is the application container.
type App struct {
	cfg      *config.Config
	services *Services
	ctx      context.Context
	cancel   context.CancelCauseFunc
}

// New creates an App with all services initialized but not started.
func New(cfg *config.Config) (*App, error) {
	services, err := NewServices(cfg)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		services: services,
	}, nil
}

// Start restores the last light state, starts the frame loop and front
// ends. Cancelling ctx stops them.
func (a *App) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancelCause(ctx)

	if err := a.services.Start(a.ctx, a.fail); err != nil {
		return err
	}

	a.logStartup()
	return nil
}

// fail stops the application and records err as the reason.
func (a *App) fail(err error) {
	log.Error().Err(err).Msg("Fatal error, initiating shutdown")
	a.cancel(err)
}

func (a *App) logStartup() {
	layout := a.services.Engine.Layout()
	numbers := a.services.Engine.Numbers()

	ev := log.Info().
		Str("name", a.cfg.Strip.Name).
		Int("lights", layout.Lights).
		Int("pixels_per_light", layout.PixelsPerLight).
		Int("pixels", len(a.services.Engine.Frame())).
		Str("driver", a.cfg.Driver.Type).
		Str("storage", a.cfg.Storage.Backend).
		Str("mac", a.services.MAC.String())
	if len(numbers) > 0 {
		ev = ev.Ints("numbers", numbers)
	}
	if a.cfg.API.IsEnabled() {
		ev = ev.Int("api_port", a.cfg.API.Port)
	}
	if a.cfg.MQTT.Enabled {
		ev = ev.Str("mqtt", a.cfg.MQTT.Broker)
	}
	ev.Msg("huestrip started")
}

// Stop waits for the frame loop, saves the final light state and releases
// the driver and storage.
func (a *App) Stop() error {
	log.Info().Msg("Shutting down...")

	if a.cancel != nil {
		a.cancel(nil)
	}

	if a.services != nil {
		return a.services.Stop()
	}

	return nil
}

// Wait blocks until the application context is cancelled. It returns the
// fatal error that stopped the application, or nil after a normal shutdown.
func (a *App) Wait() error {
	if a.ctx == nil {
		return nil
	}
	<-a.ctx.Done()
	err := context.Cause(a.ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ClearState drops persisted light snapshots. Must be called before Start.
func (a *App) ClearState() error {
	if a.services != nil {
		return a.services.ClearState()
	}
	return nil
}

// SignalContext creates a context that is cancelled when SIGINT or SIGTERM is received.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}
