// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chafer Contributors

package plugin

import (
	"github.com/samber/oops"
)

// Error codes for plugin resolution and loading failures.
const (
	CodeAmbiguousIdentifier    = "AMBIGUOUS_IDENTIFIER"
	CodePluginNotFound         = "PLUGIN_NOT_FOUND"
	CodeInvalidPlugin          = "INVALID_PLUGIN"
	CodeInvalidDirectory       = "INVALID_PLUGIN_DIRECTORY"
	CodeCyclicDependency       = "CYCLIC_DEPENDENCY"
	CodeDependencyUnsatisfied  = "DEPENDENCY_UNSATISFIED"
	CodeListenerFailed         = "LISTENER_FAILED"
)

// ErrAmbiguousIdentifier creates an error for a Ref that does not carry
// exactly one identifier form.
func ErrAmbiguousIdentifier(forms int) error {
	return oops.Code(CodeAmbiguousIdentifier).
		With("forms", forms).
		Errorf("load needs exactly one of name, file, path or unit, got %d", forms)
}

// ErrPluginNotFound creates an error for a resolved source path that does
// not exist.
func ErrPluginNotFound(name, path string) error {
	return oops.Code(CodePluginNotFound).
		With("plugin", name).
		With("path", path).
		Errorf("plugin %q at %q does not exist", name, path)
}

// ErrMissingCapability creates an error for a unit that defines no global
// matching the registry's capability name.
func ErrMissingCapability(name, path, capability string) error {
	builder := oops.Code(CodeInvalidPlugin).
		With("plugin", name).
		With("capability", capability).
		Hint("missing capability")
	if path != "" {
		builder = builder.With("path", path)
	}
	return builder.Errorf("plugin %q does not define a table named %q", name, capability)
}

// ErrWrongShape creates an error for a capability symbol that does not
// conform to the plugin contract.
func ErrWrongShape(name, capability, reason string) error {
	return oops.Code(CodeInvalidPlugin).
		With("plugin", name).
		With("capability", capability).
		Hint("wrong shape").
		Errorf("capability %q in plugin %q is not usable: %s", capability, name, reason)
}

// ErrUnitFailed creates an error for a unit whose top-level code failed.
func ErrUnitFailed(name string, cause error) error {
	return oops.Code(CodeInvalidPlugin).
		With("plugin", name).
		Hint("unit execution failed").
		Wrap(cause)
}

// ErrInvalidDirectory creates an error for a load path that exists but is
// not a directory, or is not configured at all.
func ErrInvalidDirectory(dir string) error {
	return oops.Code(CodeInvalidDirectory).
		With("directory", dir).
		Errorf("plugin directory %q is not valid", dir)
}

// ErrCyclicDependency creates an error for a dependency chain that
// re-enters a plugin that is still loading.
func ErrCyclicDependency(name string, chain []string) error {
	return oops.Code(CodeCyclicDependency).
		With("plugin", name).
		With("chain", chain).
		Errorf("cyclic dependency: %q is already loading", name)
}

// ErrDependencyUnsatisfied creates an error for a loaded dependency whose
// version does not satisfy the dependent's constraint.
func ErrDependencyUnsatisfied(plugin, dependency, constraint, version string) error {
	return oops.Code(CodeDependencyUnsatisfied).
		With("plugin", plugin).
		With("dependency", dependency).
		With("constraint", constraint).
		With("version", version).
		Errorf("dependency %q version %q does not satisfy %q required by %q",
			dependency, version, constraint, plugin)
}

// ErrListenerFailed creates an error for a plugin listener whose Lua call
// failed during dispatch.
func ErrListenerFailed(plugin, eventName string, cause error) error {
	return oops.Code(CodeListenerFailed).
		With("plugin", plugin).
		With("event", eventName).
		Wrap(cause)
}
