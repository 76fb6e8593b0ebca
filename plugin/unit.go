// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chafer Contributors

package plugin

import (
	"os"
	"path/filepath"
	"strings"
)

// Unit is a resolved plugin source unit: Lua source text plus the identity
// it was resolved under. Units created once and loaded under several
// instance names share capability identity, which is what owned-listener
// resolution keys on.
type Unit struct {
	name   string
	path   string
	source string
}

// UnitFromFile reads a source unit from disk. The default plugin name is
// the file base name without its extension.
func UnitFromFile(path string) (*Unit, error) {
	name := unitName(path)
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPluginNotFound(name, path)
		}
		return nil, ErrUnitFailed(name, err)
	}
	return &Unit{name: name, path: path, source: string(data)}, nil
}

// UnitFromSource wraps in-memory Lua source as a unit.
func UnitFromSource(name, source string) *Unit {
	return &Unit{name: name, source: source}
}

// Name returns the default plugin name of the unit.
func (u *Unit) Name() string { return u.name }

// Path returns the source path, empty for in-memory units.
func (u *Unit) Path() string { return u.path }

// unitName strips directory and extension from a source path.
func unitName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
