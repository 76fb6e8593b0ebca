// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chafer Contributors

package plugin

// Ref identifies the plugin a Load call should resolve. Exactly one of
// Name, File, Path or Unit must be set; supplying zero or several forms is
// a configuration error. The optional As field overrides the instance name
// the plugin registers under and does not count as an identifier form.
type Ref struct {
	// Name is a short plugin name, resolved to <load path>/<Name>.lua.
	Name string
	// File is a file name resolved against the registry's load path.
	File string
	// Path is a fully qualified source path.
	Path string
	// Unit is an already-resolved source unit.
	Unit *Unit
	// As overrides the instance name. Required to load one Unit under
	// several names.
	As string
}

// ByName builds a Ref for a short plugin name.
func ByName(name string) Ref { return Ref{Name: name} }

// ByFile builds a Ref for a file name inside the load path.
func ByFile(file string) Ref { return Ref{File: file} }

// ByPath builds a Ref for a fully qualified path.
func ByPath(path string) Ref { return Ref{Path: path} }

// ByUnit builds a Ref for a pre-resolved unit.
func ByUnit(u *Unit) Ref { return Ref{Unit: u} }

// WithAs returns a copy of the Ref with the instance name overridden.
func (r Ref) WithAs(name string) Ref {
	r.As = name
	return r
}

// forms counts the identifier forms set on the Ref.
func (r Ref) forms() int {
	n := 0
	if r.Name != "" {
		n++
	}
	if r.File != "" {
		n++
	}
	if r.Path != "" {
		n++
	}
	if r.Unit != nil {
		n++
	}
	return n
}
