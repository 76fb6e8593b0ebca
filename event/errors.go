// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chafer Contributors

package event

import (
	"github.com/samber/oops"
)

// Error codes for event registration and dispatch failures.
const (
	CodeEventExists           = "EVENT_ALREADY_EXISTS"
	CodeEventUnknown          = "EVENT_DOES_NOT_EXIST"
	CodeInvalidListener       = "INVALID_LISTENER"
	CodeListenerNotRegistered = "LISTENER_NOT_REGISTERED"
	CodeUnresolvedTarget      = "UNRESOLVED_LISTENER_TARGET"
)

// ErrEventExists creates an error for a duplicate event declaration.
func ErrEventExists(name string) error {
	return oops.Code(CodeEventExists).
		With("event", name).
		Errorf("event %q already exists", name)
}

// ErrEventUnknown creates an error for an undeclared event under strict policy.
func ErrEventUnknown(name string) error {
	return oops.Code(CodeEventUnknown).
		With("event", name).
		Errorf("event %q does not exist", name)
}

// ErrInvalidListener creates an error for a listener that cannot be registered.
func ErrInvalidListener(reason string) error {
	return oops.Code(CodeInvalidListener).
		Errorf("invalid listener: %s", reason)
}

// ErrListenerNotRegistered creates an error for removing an unknown listener.
func ErrListenerNotRegistered(name string) error {
	builder := oops.Code(CodeListenerNotRegistered)
	if name != "" {
		builder = builder.With("event", name)
	}
	return builder.Errorf("listener has no such registration")
}

// ErrUnresolvedTarget creates an error for an owned listener whose owner has
// no live instance at dispatch time.
func ErrUnresolvedTarget(owner string) error {
	return oops.Code(CodeUnresolvedTarget).
		With("owner", owner).
		Errorf("no live instance for listener owner %q", owner)
}
