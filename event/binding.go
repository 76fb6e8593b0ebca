// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chafer Contributors

package event

import (
	"context"
	"reflect"
	"runtime"
	"strings"
)

// Handler is a listener invoked during dispatch. Errors abort the remaining
// listeners of the in-flight dispatch (fail-fast).
type Handler func(ctx context.Context, call Call) error

// Call carries the arguments of a single dispatch to one listener.
type Call struct {
	// Event is the dispatched event name.
	Event string
	// Args holds the positional arguments.
	Args []any
	// Named holds the named arguments, nil when none were given.
	Named map[string]any
	// Target is the resolved live instance for owned listeners, nil for
	// free listeners.
	Target any
}

// Owner resolves an owned listener to its live target at dispatch time.
type Owner interface {
	ResolveTarget() (any, error)
}

// listenerID identifies a registered handler. Plain Go functions are keyed
// by code pointer; owned handlers carry a tag because their wrappers share
// a single closure body.
type listenerID struct {
	ptr uintptr
	tag string
}

// binding associates a handler with the event list it was registered under.
type binding struct {
	id    listenerID
	fn    Handler
	owner Owner
}

func keyOf(fn Handler, tag string) listenerID {
	return listenerID{ptr: reflect.ValueOf(fn).Pointer(), tag: tag}
}

// intrinsicName derives the default event name from the handler's function
// name: package path and receiver are stripped, method-value suffixes
// removed. An anonymous function yields names like "func1", which callers
// should avoid relying on.
func intrinsicName(fn Handler) string {
	pc := reflect.ValueOf(fn).Pointer()
	f := runtime.FuncForPC(pc)
	if f == nil {
		return ""
	}
	name := f.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}
