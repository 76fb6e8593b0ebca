// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chafer Contributors

package luavm

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// ToLua converts a Go value to its Lua representation. Slices become array
// tables, maps become hash tables, and values the bridge does not model
// are stringified.
func ToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case []any:
		return SliceToTable(L, val)
	case []string:
		anys := make([]any, len(val))
		for i, s := range val {
			anys[i] = s
		}
		return SliceToTable(L, anys)
	case map[string]any:
		return MapToTable(L, val)
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}

// FromLua converts a Lua value to a Go value. Tables with contiguous
// integer keys starting at 1 become []any, other tables map[string]any.
func FromLua(v lua.LValue) any {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		return tableToGo(val)
	default:
		return val.String()
	}
}

// SliceToTable builds an array-style table.
func SliceToTable(L *lua.LState, items []any) *lua.LTable {
	t := L.NewTable()
	for _, item := range items {
		t.Append(ToLua(L, item))
	}
	return t
}

// MapToTable builds a hash-style table with string keys.
func MapToTable(L *lua.LState, m map[string]any) *lua.LTable {
	t := L.NewTable()
	for k, v := range m {
		t.RawSetString(k, ToLua(L, v))
	}
	return t
}

func tableToGo(t *lua.LTable) any {
	n := t.Len()
	if n > 0 {
		items := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			items = append(items, FromLua(t.RawGetInt(i)))
		}
		return items
	}

	m := make(map[string]any)
	t.ForEach(func(k, v lua.LValue) {
		m[k.String()] = FromLua(v)
	})
	if len(m) == 0 {
		// Empty table: indistinguishable, report as empty map.
		return map[string]any{}
	}
	return m
}

// StringsFromTable extracts the array part of a table as strings. The
// second return is false when a non-string entry is present.
func StringsFromTable(t *lua.LTable) ([]string, bool) {
	n := t.Len()
	out := make([]string, 0, n)
	valid := true
	for i := 1; i <= n; i++ {
		v := t.RawGetInt(i)
		s, ok := v.(lua.LString)
		if !ok {
			valid = false
			break
		}
		out = append(out, string(s))
	}
	if !valid {
		return nil, false
	}
	return out, true
}
