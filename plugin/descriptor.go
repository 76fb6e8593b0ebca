// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chafer Contributors

package plugin

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	lua "github.com/yuin/gopher-lua"

	"github.com/chafer-dev/chafer/plugin/luavm"
)

// Descriptor is the static metadata of a plugin, read once from the
// capability table at load time and immutable afterwards.
type Descriptor struct {
	// Name is the unique key of the plugin within its registry.
	Name string
	// HumanName is the display name, defaulting to Name.
	HumanName string
	// Description is a short free-form description.
	Description string
	// Author names the plugin author.
	Author string
	// Version is the declared version string, empty when absent.
	Version string
	// Dependencies holds the declared dependency entries as written,
	// including any version constraint suffix.
	Dependencies []string
}

// Semver parses the declared version. Fails when the version is empty or
// not a semantic version.
func (d *Descriptor) Semver() (*semver.Version, error) {
	v, err := semver.NewVersion(d.Version)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: version %q: %w", d.Name, d.Version, err)
	}
	return v, nil
}

// dependencyRef is a parsed dependency entry. Entries are either a bare
// plugin name or "name@<constraint>" with a semver range.
type dependencyRef struct {
	name       string
	raw        string
	constraint *semver.Constraints
}

func parseDependency(plugin, raw string) (dependencyRef, error) {
	name, spec, found := strings.Cut(raw, "@")
	name = strings.TrimSpace(name)
	if name == "" {
		return dependencyRef{}, ErrWrongShape(plugin, "", fmt.Sprintf("empty dependency entry %q", raw))
	}
	ref := dependencyRef{name: name, raw: raw}
	if !found {
		return ref, nil
	}
	c, err := semver.NewConstraint(strings.TrimSpace(spec))
	if err != nil {
		return dependencyRef{}, ErrWrongShape(plugin, "",
			fmt.Sprintf("dependency %q has invalid constraint: %v", raw, err))
	}
	ref.constraint = c
	return ref, nil
}

// listenerSpec records one entry of the capability's listeners list by
// position, so it can be re-read from any instance of the same unit.
type listenerSpec struct {
	event string
	index int
}

// describe builds the Descriptor, dependency refs and listener specs from
// a capability table. Shape violations fail with INVALID_PLUGIN.
func describe(name, capability string, class *lua.LTable) (*Descriptor, []dependencyRef, []listenerSpec, error) {
	desc := &Descriptor{
		Name:        name,
		HumanName:   name,
		Description: stringField(class, "description"),
		Author:      stringField(class, "author"),
		Version:     stringField(class, "version"),
	}
	if hn := stringField(class, "human_name"); hn != "" {
		desc.HumanName = hn
	}

	deps, err := dependencyRefs(name, capability, class)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, d := range deps {
		desc.Dependencies = append(desc.Dependencies, d.raw)
	}

	listeners, err := listenerSpecs(name, capability, class)
	if err != nil {
		return nil, nil, nil, err
	}

	return desc, deps, listeners, nil
}

func dependencyRefs(name, capability string, class *lua.LTable) ([]dependencyRef, error) {
	v := class.RawGetString("dependencies")
	if v == lua.LNil {
		return nil, nil
	}
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil, ErrWrongShape(name, capability, "dependencies must be a list of strings")
	}
	raws, ok := luavm.StringsFromTable(tbl)
	if !ok {
		return nil, ErrWrongShape(name, capability, "dependencies must be a list of strings")
	}
	refs := make([]dependencyRef, 0, len(raws))
	for _, raw := range raws {
		ref, err := parseDependency(name, raw)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func listenerSpecs(name, capability string, class *lua.LTable) ([]listenerSpec, error) {
	v := class.RawGetString("listeners")
	if v == lua.LNil {
		return nil, nil
	}
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil, ErrWrongShape(name, capability, "listeners must be a list of {event, handler} tables")
	}

	var specs []listenerSpec
	n := tbl.Len()
	for i := 1; i <= n; i++ {
		entry, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, ErrWrongShape(name, capability,
				fmt.Sprintf("listeners[%d] must be a table", i))
		}
		eventName, ok := entry.RawGetString("event").(lua.LString)
		if !ok || eventName == "" {
			return nil, ErrWrongShape(name, capability,
				fmt.Sprintf("listeners[%d] needs a non-empty 'event' string", i))
		}
		if _, ok := entry.RawGetString("handler").(*lua.LFunction); !ok {
			return nil, ErrWrongShape(name, capability,
				fmt.Sprintf("listeners[%d] needs a 'handler' function", i))
		}
		specs = append(specs, listenerSpec{event: string(eventName), index: i})
	}
	return specs, nil
}

func stringField(t *lua.LTable, key string) string {
	if s, ok := t.RawGetString(key).(lua.LString); ok {
		return string(s)
	}
	return ""
}
