// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chafer Contributors

// Package luavm provides sandboxed Lua states for plugin execution and
// value conversion between Go and Lua.
package luavm

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// library pairs a Lua standard library name with its loader.
type library struct {
	name string
	fn   lua.LGFunction
}

// defaultLibraries returns the libraries loaded into plugin states.
// Loaded: base, table, string, math. Withheld: os, io, debug, package.
func defaultLibraries() []library {
	return []library{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
}

// blockedBaseFunctions are base library functions removed after loading.
// Each of them can reach the filesystem or load arbitrary chunks.
var blockedBaseFunctions = []string{"dofile", "loadfile", "loadstring", "load"}

// Factory creates Lua states prepared for plugin units.
type Factory struct {
	libraries []library
}

// NewFactory creates a state factory with the default library set.
func NewFactory() *Factory {
	return &Factory{libraries: defaultLibraries()}
}

// NewState returns a fresh state with only the permitted libraries loaded
// and the given context attached for host function calls.
func (f *Factory) NewState(ctx context.Context) (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	for _, lib := range f.libraries {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, fmt.Errorf("open library %s: %w", lib.name, err)
		}
	}

	for _, fn := range blockedBaseFunctions {
		L.SetGlobal(fn, lua.LNil)
	}

	if ctx != nil {
		L.SetContext(ctx)
	}
	return L, nil
}
