// Package lua runs user scripts against the strip. All access to the Lua
// VM goes through a single worker goroutine.
package lua

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/huestrip/internal/eventbus"
	"github.com/dokzlo13/huestrip/internal/lua/modules"
)

// ErrRuntimeClosed is returned when the Lua runtime is closed
var ErrRuntimeClosed = fmt.Errorf("lua runtime closed")

// LuaWork is work executed on the Lua VM.
type LuaWork func(ctx context.Context)

// Runtime manages the Lua VM with single-threaded execution
type Runtime struct {
	L         *lua.LState
	configDir string

	stripModule *modules.StripModule

	workQueue chan LuaWork

	// closing is closed to stop senders and the worker.
	closing   chan struct{}
	closeOnce sync.Once
}

// NewRuntime creates a runtime with the log and strip modules preloaded.
// configDir is used to resolve relative script paths.
func NewRuntime(strip modules.Strip, configDir string) *Runtime {
	r := &Runtime{
		L:           lua.NewState(),
		configDir:   configDir,
		stripModule: modules.NewStripModule(strip),
		workQueue:   make(chan LuaWork, 100),
		closing:     make(chan struct{}),
	}

	r.L.PreloadModule("log", modules.NewLogModule().Loader)
	r.L.PreloadModule("strip", r.stripModule.Loader)

	return r
}

// Close stops accepting work and closes the Lua state.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		close(r.closing)
	})
	r.L.Close()
}

// Do queues work without blocking. It returns false if the runtime is
// closing, the queue is full or ctx is done.
func (r *Runtime) Do(ctx context.Context, work LuaWork) bool {
	select {
	case <-r.closing:
		log.Warn().Msg("Lua runtime closing, dropping work")
		return false
	case <-ctx.Done():
		log.Warn().Msg("Context cancelled, dropping Lua work")
		return false
	case r.workQueue <- work:
		return true
	default:
		log.Warn().Msg("Lua work queue full, dropping work")
		return false
	}
}

// DoSync queues work, waiting for queue space, and waits for its result.
func (r *Runtime) DoSync(ctx context.Context, work func(context.Context) error) error {
	done := make(chan error, 1)
	wrapped := LuaWork(func(c context.Context) {
		done <- work(c)
	})

	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case r.workQueue <- wrapped:
	}

	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Attach forwards bus events to script handlers registered with strip.on.
func (r *Runtime) Attach(ctx context.Context, bus *eventbus.Bus) {
	bus.Subscribe(func(ev eventbus.Event) {
		if !r.stripModule.HasHandlers() {
			return
		}
		r.Do(ctx, func(context.Context) {
			r.stripModule.Dispatch(r.L, ev)
		})
	})
}

// Run is the worker loop, the only goroutine that touches the VM after the
// script is loaded. It exits when ctx is done or the runtime is closed.
func (r *Runtime) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.drainQueue(ctx)
			return
		case <-r.closing:
			return
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		}
	}
}

func (r *Runtime) drainQueue(ctx context.Context) {
	for {
		select {
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		default:
			return
		}
	}
}

func (r *Runtime) executeWork(ctx context.Context, work LuaWork) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Msg("Lua work panicked - worker continuing")
		}
	}()
	r.L.SetContext(ctx)
	work(ctx)
}

// LoadScript executes a script file. It must be called before Run.
func (r *Runtime) LoadScript(path string) error {
	if !filepath.IsAbs(path) {
		if _, err := os.Stat(path); os.IsNotExist(err) && r.configDir != "" {
			path = filepath.Join(r.configDir, path)
		}
	}

	log.Info().Str("path", path).Msg("Loading Lua script")

	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to execute Lua script: %w", err)
	}

	log.Info().Msg("Lua script loaded successfully")
	return nil
}

// DoString executes a chunk of Lua. It must be called before Run.
func (r *Runtime) DoString(src string) error {
	if err := r.L.DoString(src); err != nil {
		return fmt.Errorf("failed to execute Lua: %w", err)
	}
	return nil
}
