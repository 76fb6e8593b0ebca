// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chafer Contributors

package plugin

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"
	lua "github.com/yuin/gopher-lua"

	"github.com/chafer-dev/chafer/event"
	"github.com/chafer-dev/chafer/plugin/luavm"
)

// Instance is a live plugin: the Lua state the unit was executed in, the
// constructed instance table, and the descriptor read at load time. An
// instance lives for the process lifetime; a name resolves to at most one
// instance per registry.
type Instance struct {
	id    ulid.ULID
	desc  *Descriptor
	reg   *Registry
	unit  *Unit
	state *lua.LState
	self  *lua.LTable

	mu   sync.Mutex
	deps []string
}

// ID returns the instance's load-time ULID.
func (i *Instance) ID() ulid.ULID { return i.id }

// Descriptor returns the plugin's static metadata.
func (i *Instance) Descriptor() *Descriptor { return i.desc }

// Registry returns the owning plugin registry.
func (i *Instance) Registry() *Registry { return i.reg }

// Unit returns the source unit the instance was loaded from. Instances of
// the same unit share capability identity.
func (i *Instance) Unit() *Unit { return i.unit }

// Dependencies returns the instance's dependency names, the declared list
// plus any added later through Require.
func (i *Instance) Dependencies() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]string, len(i.deps))
	copy(out, i.deps)
	return out
}

// Require declares a dependency after load and triggers its loading
// through the owning registry when not already declared.
func (i *Instance) Require(ctx context.Context, name string) error {
	i.mu.Lock()
	for _, dep := range i.deps {
		if dep == name {
			i.mu.Unlock()
			return nil
		}
	}
	i.mu.Unlock()

	if _, err := i.reg.Load(ctx, Ref{Name: name}); err != nil {
		return err
	}

	i.mu.Lock()
	i.deps = append(i.deps, name)
	i.mu.Unlock()
	return nil
}

// adoptDeclaredDependencies merges the descriptor's declared list in front
// of any dependencies the unit already required during its top-level
// execution.
func (i *Instance) adoptDeclaredDependencies(declared []string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	merged := append([]string(nil), declared...)
	for _, dep := range i.deps {
		if !slices.Contains(merged, dep) {
			merged = append(merged, dep)
		}
	}
	i.deps = merged
}

// String renders the instance the way hosts list plugins:
// <registry> '<human name>' (<name>).
func (i *Instance) String() string {
	return fmt.Sprintf("%s %q (%s)", i.reg.Name(), i.desc.HumanName, i.desc.Name)
}

// invokeListener calls the handler at the given listeners index in this
// instance's state, with the instance table as self. Positional arguments
// are spread; named arguments, when present, arrive as a trailing table.
func (i *Instance) invokeListener(ctx context.Context, index int, call event.Call) error {
	L := i.state
	L.SetContext(ctx)

	class, ok := L.GetGlobal(i.reg.Name()).(*lua.LTable)
	if !ok {
		return ErrWrongShape(i.desc.Name, i.reg.Name(), "capability table vanished")
	}
	listeners, ok := class.RawGetString("listeners").(*lua.LTable)
	if !ok {
		return ErrWrongShape(i.desc.Name, i.reg.Name(), "listeners list vanished")
	}
	entry, ok := listeners.RawGetInt(index).(*lua.LTable)
	if !ok {
		return ErrWrongShape(i.desc.Name, i.reg.Name(),
			fmt.Sprintf("listeners[%d] vanished", index))
	}
	handler, ok := entry.RawGetString("handler").(*lua.LFunction)
	if !ok {
		return ErrWrongShape(i.desc.Name, i.reg.Name(),
			fmt.Sprintf("listeners[%d] has no handler function", index))
	}

	args := make([]lua.LValue, 0, len(call.Args)+2)
	args = append(args, i.self)
	for _, a := range call.Args {
		args = append(args, luavm.ToLua(L, a))
	}
	if len(call.Named) > 0 {
		args = append(args, luavm.MapToTable(L, call.Named))
	}

	if err := L.CallByParam(lua.P{
		Fn:      handler,
		NRet:    0,
		Protect: true,
	}, args...); err != nil {
		return ErrListenerFailed(i.desc.Name, call.Event, err)
	}
	return nil
}
