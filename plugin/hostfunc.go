// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chafer Contributors

package plugin

import (
	"context"
	"log/slog"

	lua "github.com/yuin/gopher-lua"

	"github.com/chafer-dev/chafer/plugin/luavm"
)

// registerHostFuncs installs the chafer.* API into a plugin state:
//
//	chafer.log(level, msg)        structured logging with plugin context
//	chafer.dispatch(event, ...)   dispatch through the bound event registry
//	chafer.require(name)          late dependency declaration
//	chafer.plugin_name()          the instance's registered name
func (r *Registry) registerHostFuncs(L *lua.LState, inst *Instance) {
	mod := L.NewTable()
	L.SetField(mod, "log", L.NewFunction(r.luaLog(inst)))
	L.SetField(mod, "dispatch", L.NewFunction(r.luaDispatch(inst)))
	L.SetField(mod, "require", L.NewFunction(r.luaRequire(inst)))
	L.SetField(mod, "plugin_name", L.NewFunction(func(ls *lua.LState) int {
		name := inst.unit.Name()
		if inst.desc != nil {
			name = inst.desc.Name
		}
		ls.Push(lua.LString(name))
		return 1
	}))
	L.SetGlobal("chafer", mod)
}

func (r *Registry) luaLog(inst *Instance) lua.LGFunction {
	return func(ls *lua.LState) int {
		level := ls.CheckString(1)
		msg := ls.CheckString(2)
		attrs := []any{"registry", r.name, "plugin", inst.unit.Name()}
		switch level {
		case "debug":
			slog.Debug(msg, attrs...)
		case "warn":
			slog.Warn(msg, attrs...)
		case "error":
			slog.Error(msg, attrs...)
		default:
			slog.Info(msg, attrs...)
		}
		return 0
	}
}

func (r *Registry) luaDispatch(inst *Instance) lua.LGFunction {
	return func(ls *lua.LState) int {
		if r.events == nil {
			ls.RaiseError("no event registry bound to registry %s", r.name)
			return 0
		}
		eventName := ls.CheckString(1)
		args := make([]any, 0, ls.GetTop()-1)
		for i := 2; i <= ls.GetTop(); i++ {
			args = append(args, luavm.FromLua(ls.Get(i)))
		}
		ctx := ls.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := r.events.Dispatch(ctx, eventName, args...); err != nil {
			ls.RaiseError("dispatch %s: %v", eventName, err)
		}
		return 0
	}
}

func (r *Registry) luaRequire(inst *Instance) lua.LGFunction {
	return func(ls *lua.LState) int {
		name := ls.CheckString(1)
		ctx := ls.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := inst.Require(ctx, name); err != nil {
			ls.RaiseError("require %s: %v", name, err)
		}
		return 0
	}
}

// injectShared exposes the registry's data bags as the global shared
// table. Each bag is a proxy whose reads and writes go straight to the Go
// map, so mutations are shared by reference across all instances.
func (r *Registry) injectShared(L *lua.LState) {
	if len(r.shared) == 0 {
		return
	}
	root := L.NewTable()
	for _, bag := range r.shared {
		root.RawSetString(bag.Name(), newBagProxy(L, bag))
	}
	L.SetGlobal("shared", root)
}

func newBagProxy(L *lua.LState, bag *Data) *lua.LTable {
	proxy := L.NewTable()
	mt := L.NewTable()
	mt.RawSetString("__index", L.NewFunction(func(ls *lua.LState) int {
		key := ls.CheckString(2)
		v, ok := bag.Get(key)
		if !ok {
			ls.Push(lua.LNil)
			return 1
		}
		ls.Push(luavm.ToLua(ls, v))
		return 1
	}))
	mt.RawSetString("__newindex", L.NewFunction(func(ls *lua.LState) int {
		key := ls.CheckString(2)
		bag.Set(key, luavm.FromLua(ls.Get(3)))
		return 0
	}))
	L.SetMetatable(proxy, mt)
	return proxy
}
