package app

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/dokzlo13/huestrip/internal/config"
	"github.com/dokzlo13/huestrip/internal/engine"
	"github.com/dokzlo13/huestrip/internal/eventbus"
	luart "github.com/dokzlo13/huestrip/internal/lua"
)

// LuaService runs the optional startup script.
type LuaService struct {
	cfg     *config.Config
	Runtime *luart.Runtime
}

// NewLuaService creates a LuaService. Without a script it does nothing.
func NewLuaService(cfg *config.Config, e *engine.Engine) *LuaService {
	s := &LuaService{cfg: cfg}
	if cfg.Script == "" {
		return s
	}
	s.Runtime = luart.NewRuntime(e, filepath.Dir(cfg.ConfigPath))
	return s
}

// LoadScript executes the script. Must be called before Start.
func (s *LuaService) LoadScript() error {
	if s.Runtime == nil {
		return nil
	}
	return s.Runtime.LoadScript(s.cfg.Script)
}

// Start begins the Lua worker goroutine and forwards events to script
// handlers.
func (s *LuaService) Start(ctx context.Context, bus *eventbus.Bus, wg *sync.WaitGroup) {
	if s.Runtime == nil {
		return
	}
	s.Runtime.Attach(ctx, bus)

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Runtime.Run(ctx)
	}()
}

// Close closes the Lua runtime.
func (s *LuaService) Close() {
	if s.Runtime != nil {
		s.Runtime.Close()
	}
}
