package modules

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/huestrip/internal/eventbus"
	"github.com/dokzlo13/huestrip/internal/light"
	"github.com/dokzlo13/huestrip/internal/protocol"
	"github.com/dokzlo13/huestrip/internal/scene"
)

// Strip is the part of the engine exposed to scripts.
type Strip interface {
	Numbers() []int
	Apply(batch map[int]light.Command) error
	ApplyScene(id, duration int) scene.Scene
	ApplySceneByName(name string, duration int) (scene.Scene, error)
	State(number int) (light.State, error)
}

// StripModule provides strip.set/scene/state/lights/on to Lua.
//
// Commands return (ok, err_string) so scripts can recover; registering a
// handler for an unknown event type raises.
type StripModule struct {
	strip    Strip
	handlers map[eventbus.EventType][]*lua.LFunction
}

// NewStripModule creates a strip module.
func NewStripModule(strip Strip) *StripModule {
	return &StripModule{
		strip:    strip,
		handlers: make(map[eventbus.EventType][]*lua.LFunction),
	}
}

// Loader is the module loader for Lua
func (m *StripModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "set", L.NewFunction(m.set))
	L.SetField(mod, "scene", L.NewFunction(m.scene))
	L.SetField(mod, "state", L.NewFunction(m.state))
	L.SetField(mod, "lights", L.NewFunction(m.lights))
	L.SetField(mod, "on", L.NewFunction(m.on))

	L.Push(mod)
	return 1
}

// set(n, {on=, bri=, bri_inc=, xy=, ct=, hue=, sat=, transitiontime=, alert=}) -> (ok, err)
func (m *StripModule) set(L *lua.LState) int {
	n := L.CheckInt(1)
	fields := L.CheckTable(2)

	data, err := json.Marshal(LuaTableToMap(fields))
	if err != nil {
		return fail(L, err)
	}
	cmd, decodeErr := protocol.DecodeCommand(data)
	if err := errors.Join(decodeErr, m.strip.Apply(map[int]light.Command{n: cmd})); err != nil {
		return fail(L, err)
	}

	L.Push(lua.LTrue)
	return 1
}

// scene(id_or_name, transitiontime?) -> (ok, err)
func (m *StripModule) scene(L *lua.LState) int {
	duration := L.OptInt(2, -1)

	switch arg := L.CheckAny(1).(type) {
	case lua.LNumber:
		s := m.strip.ApplyScene(int(arg), duration)
		log.Debug().Str("source", "lua").Str("scene", s.Name).Msg("Scene applied")
	case lua.LString:
		if _, err := m.strip.ApplySceneByName(string(arg), duration); err != nil {
			return fail(L, err)
		}
	default:
		L.ArgError(1, "scene id or name expected")
		return 0
	}

	L.Push(lua.LTrue)
	return 1
}

// state(n) -> table | nil, err
func (m *StripModule) state(L *lua.LState) int {
	st, err := m.strip.State(L.CheckInt(1))
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	tbl := L.NewTable()
	L.SetField(tbl, "on", lua.LBool(st.On))
	L.SetField(tbl, "bri", lua.LNumber(st.Bri))
	L.SetField(tbl, "ct", lua.LNumber(st.Ct))
	L.SetField(tbl, "hue", lua.LNumber(st.Hue))
	L.SetField(tbl, "sat", lua.LNumber(st.Sat))
	L.SetField(tbl, "colormode", lua.LString(st.ColorMode))
	L.SetField(tbl, "xy", GoToLuaValue(L, st.Xy))
	L.Push(tbl)
	return 1
}

// lights() -> {n, ...}
func (m *StripModule) lights(L *lua.LState) int {
	L.Push(GoToLuaValue(L, m.strip.Numbers()))
	return 1
}

// on(event_type, fn) registers fn(event) for "state", "scene",
// "transition" or "saved" events.
func (m *StripModule) on(L *lua.LState) int {
	name := strings.ToLower(L.CheckString(1))
	fn := L.CheckFunction(2)

	typ := eventbus.EventType(name)
	known := false
	for _, t := range eventbus.AllTypes {
		if t == typ {
			known = true
			break
		}
	}
	if !known {
		L.RaiseError("unknown event type %q", name)
		return 0
	}

	m.handlers[typ] = append(m.handlers[typ], fn)
	return 0
}

// HasHandlers reports whether any script handler is registered.
func (m *StripModule) HasHandlers() bool {
	return len(m.handlers) > 0
}

// Dispatch calls the handlers registered for ev.Type. It must run on the
// goroutine that owns L.
func (m *StripModule) Dispatch(L *lua.LState, ev eventbus.Event) {
	fns := m.handlers[ev.Type]
	if len(fns) == 0 {
		return
	}

	tbl := MapToLuaTable(L, ev.Data)
	L.SetField(tbl, "type", lua.LString(ev.Type))
	L.SetField(tbl, "light", lua.LNumber(ev.Light))
	L.SetField(tbl, "time", lua.LNumber(ev.Time.Unix()))

	for _, fn := range fns {
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, tbl); err != nil {
			log.Error().Err(err).Str("event_type", string(ev.Type)).Msg("Lua event handler failed")
		}
	}
}

func fail(L *lua.LState, err error) int {
	L.Push(lua.LFalse)
	L.Push(lua.LString(fmt.Sprint(err)))
	return 2
}
