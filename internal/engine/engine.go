// Package engine hosts the light registry: it owns the pixel buffer,
// serialises commands against frame ticks, paces the frame loop and pushes
// frames to the strip driver.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/huestrip/internal/color"
	"github.com/dokzlo13/huestrip/internal/driver"
	"github.com/dokzlo13/huestrip/internal/eventbus"
	"github.com/dokzlo13/huestrip/internal/light"
	"github.com/dokzlo13/huestrip/internal/scene"
)

// Defaults for Options.
const (
	DefaultFPS     = 60
	DefaultRefresh = time.Second
)

// Options configures an Engine.
type Options struct {
	// Pixels is the physical strip length. It is raised to the layout's
	// pixel count when smaller.
	Pixels int
	// FPS caps the frame rate while lights are fading.
	FPS float64
	// Refresh resends the current frame while idle. Zero disables it.
	Refresh time.Duration
}

// Engine wraps a light.Registry for concurrent use.
type Engine struct {
	mu  sync.Mutex
	reg *light.Registry
	px  []color.RGB

	out     driver.Driver
	bus     *eventbus.Bus
	limiter *rate.Limiter
	refresh time.Duration

	wake   chan struct{}
	moving bool
	frame  []color.RGB
}

// New builds the registry on a fresh, dark pixel buffer. bus may be nil.
func New(conv *color.Converter, layout light.Layout, out driver.Driver, bus *eventbus.Bus, opts Options) (*Engine, error) {
	n := opts.Pixels
	if n < layout.PixelCount() {
		n = layout.PixelCount()
	}
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}

	px := make([]color.RGB, n)
	reg, err := light.NewRegistry(conv, layout, px)
	if err != nil {
		return nil, err
	}

	return &Engine{
		reg:     reg,
		px:      px,
		out:     out,
		bus:     bus,
		limiter: rate.NewLimiter(rate.Limit(opts.FPS), 1),
		refresh: opts.Refresh,
		wake:    make(chan struct{}, 1),
		frame:   make([]color.RGB, n),
	}, nil
}

// Layout returns the registry layout.
func (e *Engine) Layout() light.Layout { return e.reg.Layout() }

// Numbers returns the light numbers.
func (e *Engine) Numbers() []int { return e.reg.Numbers() }

// Apply applies a batch of commands. See light.Registry.Apply for the error
// contract.
func (e *Engine) Apply(batch map[int]light.Command) error {
	e.mu.Lock()
	err := e.reg.Apply(e.px, batch)
	states := make(map[int]light.State, len(batch))
	for n := range batch {
		if st, serr := e.reg.State(n); serr == nil {
			states[n] = st
		}
	}
	e.mu.Unlock()

	e.kick()
	for n, st := range states {
		e.publish(eventbus.Event{Type: eventbus.EventTypeState, Light: n, Data: stateData(st)})
	}
	return err
}

// ApplyScene applies a scene by id; unknown ids use the fallback scene.
func (e *Engine) ApplyScene(id, duration int) scene.Scene {
	e.mu.Lock()
	s := e.reg.ApplyScene(e.px, id, duration)
	e.mu.Unlock()

	e.kick()
	e.publishScene(s)
	return s
}

// ApplySceneByName applies a scene by name.
func (e *Engine) ApplySceneByName(name string, duration int) (scene.Scene, error) {
	e.mu.Lock()
	s, err := e.reg.ApplySceneByName(e.px, name, duration)
	e.mu.Unlock()
	if err != nil {
		return s, err
	}

	e.kick()
	e.publishScene(s)
	return s, nil
}

// State returns the stored state of a light.
func (e *Engine) State(number int) (light.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.State(number)
}

// States returns the state of every light keyed by number.
func (e *Engine) States() map[int]light.State {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[int]light.State, e.reg.Len())
	for _, n := range e.reg.Numbers() {
		st, _ := e.reg.State(n)
		out[n] = st
	}
	return out
}

// Info returns the transition status of every light in strip order.
func (e *Engine) Info() []light.Info {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]light.Info, 0, e.reg.Len())
	for _, n := range e.reg.Numbers() {
		info, _ := e.reg.Info(e.px, n)
		out = append(out, info)
	}
	return out
}

// Frame returns a copy of the pixel buffer.
func (e *Engine) Frame() []color.RGB {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]color.RGB(nil), e.px...)
}

// TakeSnapshot returns the light snapshots and clears the dirty flag when
// anything changed since the previous call.
func (e *Engine) TakeSnapshot() ([]light.Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.reg.NeedsSave() {
		return nil, false
	}
	e.reg.MarkSaved()
	return e.reg.Snapshot(), true
}

// MarkDirty forces the next TakeSnapshot to report changes, after a failed
// save for instance.
func (e *Engine) MarkDirty() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reg.MarkDirty()
}

// Restore loads persisted snapshots and starts fading toward them.
func (e *Engine) Restore(snaps []light.Snapshot) error {
	e.mu.Lock()
	err := e.reg.Restore(e.px, snaps)
	e.mu.Unlock()

	e.kick()
	return err
}

// Step advances one frame and writes it to the driver when anything moved.
// It reports whether lights are still fading and the suggested delay.
func (e *Engine) Step() (bool, time.Duration, error) {
	e.mu.Lock()
	moved, delay := e.reg.Tick(e.px)
	if moved {
		copy(e.frame, e.px)
	}
	e.mu.Unlock()

	if moved != e.moving {
		e.moving = moved
		e.publish(eventbus.Event{
			Type: eventbus.EventTypeTransition,
			Data: map[string]any{"active": moved},
		})
	}
	if !moved {
		return false, 0, nil
	}
	return true, delay, e.write()
}

// Run drives the frame loop until ctx is cancelled. While lights fade,
// frames are produced at up to FPS; otherwise the loop sleeps until a
// command arrives or the refresh interval elapses.
func (e *Engine) Run(ctx context.Context) error {
	log.Info().
		Int("lights", e.reg.Len()).
		Int("pixels", len(e.px)).
		Float64("fps", float64(e.limiter.Limit())).
		Msg("Frame loop started")

	var refresh <-chan time.Time
	if e.refresh > 0 {
		t := time.NewTicker(e.refresh)
		defer t.Stop()
		refresh = t.C
	}

	for {
		moving, delay, err := e.Step()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to write frame")
		}

		if moving {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil
			}
			if delay > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(delay):
				}
			}
			continue
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("Frame loop stopped")
			return nil
		case <-e.wake:
		case <-refresh:
			e.mu.Lock()
			copy(e.frame, e.px)
			e.mu.Unlock()
			if err := e.write(); err != nil {
				log.Debug().Err(err).Msg("Failed to refresh frame")
			}
		}
	}
}

// Close closes the driver.
func (e *Engine) Close() error {
	if e.out == nil {
		return nil
	}
	return e.out.Close()
}

func (e *Engine) write() error {
	if e.out == nil {
		return nil
	}
	return e.out.Write(e.frame)
}

// kick wakes an idle frame loop.
func (e *Engine) kick() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) publish(ev eventbus.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

func (e *Engine) publishScene(s scene.Scene) {
	e.publish(eventbus.Event{
		Type: eventbus.EventTypeScene,
		Data: map[string]any{"id": s.ID, "name": s.Name},
	})
}

func stateData(st light.State) map[string]any {
	return map[string]any{
		"on":        st.On,
		"bri":       st.Bri,
		"ct":        st.Ct,
		"hue":       st.Hue,
		"sat":       st.Sat,
		"colormode": st.ColorMode,
		"xy":        []float64{st.Xy[0], st.Xy[1]},
	}
}

// IsInvalid reports whether err only carries validation failures, as opposed
// to an internal error.
func IsInvalid(err error) bool {
	return errors.Is(err, light.ErrInvalidValue) || errors.Is(err, light.ErrUnknownLight) || errors.Is(err, color.ErrZeroMired)
}
