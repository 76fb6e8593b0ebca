// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chafer Contributors

// Package event provides a named event registry with ordered, synchronous
// listener dispatch. Listeners are either free functions or owned by a
// plugin capability; owned listeners are resolved to a live instance at
// dispatch time.
package event

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Recorder observes registry activity. Implementations must be safe for
// use from dispatch call sites.
type Recorder interface {
	DispatchStarted(event string, listeners int)
	ListenerFailed(event string)
}

// Registry owns the mapping from event name to its ordered listener list.
//
// When allowUnregistered is false every event must be declared before a
// listener is bound to it or a dispatch targets it. Event names are never
// removed; an event with zero listeners still exists as a key.
//
// The registry serializes its own bookkeeping but runs listeners outside
// any lock, so a listener may safely dispatch further events.
type Registry struct {
	allowUnregistered bool
	rec               Recorder

	mu     sync.Mutex
	events map[string][]*binding
	funcs  map[listenerID][]string
}

// NewRegistry creates an event registry. Initial event names are declared
// as empty entries; duplicates among them are collapsed silently.
func NewRegistry(allowUnregistered bool, initial ...string) *Registry {
	r := &Registry{
		allowUnregistered: allowUnregistered,
		events:            make(map[string][]*binding),
		funcs:             make(map[listenerID][]string),
	}
	for _, name := range initial {
		if _, ok := r.events[name]; !ok {
			r.events[name] = nil
		}
	}
	return r
}

// SetRecorder attaches a metrics recorder. A nil recorder disables recording.
func (r *Registry) SetRecorder(rec Recorder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec = rec
}

// AllowsUnregistered reports whether undeclared events are accepted.
func (r *Registry) AllowsUnregistered() bool {
	return r.allowUnregistered
}

// Declare registers zero-listener entries for each name. Declaring a name
// that already exists fails with EVENT_ALREADY_EXISTS; names preceding the
// duplicate stay declared.
func (r *Registry) Declare(names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		if _, ok := r.events[name]; ok {
			return ErrEventExists(name)
		}
		r.events[name] = nil
	}
	return nil
}

// Events returns all declared event names, sorted.
func (r *Registry) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.events))
	for name := range r.events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListenerCount returns the number of listeners bound to an event.
func (r *Registry) ListenerCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events[name])
}

// AddListener binds a free listener to an event. An empty eventName
// defaults to the function's intrinsic name. Adding the same function to
// the same event twice is a no-op.
func (r *Registry) AddListener(fn Handler, eventName string) error {
	if fn == nil {
		return ErrInvalidListener("nil handler")
	}
	if eventName == "" {
		eventName = intrinsicName(fn)
		if eventName == "" {
			return ErrInvalidListener("event name cannot be derived")
		}
	}
	return r.add(&binding{id: keyOf(fn, ""), fn: fn}, eventName)
}

// BindListener binds an owned listener to an event. The owner resolves the
// live target at dispatch time; tag disambiguates handlers that share a
// closure body (the wrapper functions plugin hosts generate). Binding the
// same (function, tag) pair to the same event twice is a no-op.
func (r *Registry) BindListener(fn Handler, owner Owner, eventName, tag string) error {
	if fn == nil {
		return ErrInvalidListener("nil handler")
	}
	if owner == nil {
		return ErrInvalidListener("nil owner")
	}
	if eventName == "" {
		return ErrInvalidListener("owned listener requires an event name")
	}
	return r.add(&binding{id: keyOf(fn, tag), fn: fn, owner: owner}, eventName)
}

func (r *Registry) add(b *binding, eventName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bs, declared := r.events[eventName]
	if !declared && !r.allowUnregistered {
		return ErrEventUnknown(eventName)
	}
	for _, existing := range bs {
		if existing.id == b.id {
			return nil
		}
	}
	r.events[eventName] = append(bs, b)
	r.funcs[b.id] = append(r.funcs[b.id], eventName)
	return nil
}

// RemoveListener removes a free listener. With an event name it removes
// that one association; with an empty name it removes the function from
// every event it is registered under. Removing a listener that has no such
// association fails with LISTENER_NOT_REGISTERED.
func (r *Registry) RemoveListener(fn Handler, eventName string) error {
	if fn == nil {
		return ErrInvalidListener("nil handler")
	}
	id := keyOf(fn, "")

	r.mu.Lock()
	defer r.mu.Unlock()

	names, ok := r.funcs[id]
	if !ok {
		return ErrListenerNotRegistered(eventName)
	}

	if eventName == "" {
		for _, name := range names {
			r.removeFromEvent(id, name)
		}
		delete(r.funcs, id)
		return nil
	}

	idx := -1
	for i, name := range names {
		if name == eventName {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrListenerNotRegistered(eventName)
	}
	r.removeFromEvent(id, eventName)
	names = append(names[:idx], names[idx+1:]...)
	if len(names) == 0 {
		delete(r.funcs, id)
	} else {
		r.funcs[id] = names
	}
	return nil
}

// removeFromEvent drops one binding from an event list, keeping order.
// The event key itself stays declared even when its list becomes empty.
func (r *Registry) removeFromEvent(id listenerID, eventName string) {
	bs := r.events[eventName]
	for i, b := range bs {
		if b.id == id {
			r.events[eventName] = append(bs[:i:i], bs[i+1:]...)
			return
		}
	}
}

// Dispatch invokes every listener bound to the event, in registration
// order, with positional arguments only. See DispatchNamed.
func (r *Registry) Dispatch(ctx context.Context, name string, args ...any) error {
	return r.dispatch(ctx, name, args, nil)
}

// DispatchNamed invokes every listener bound to the event with positional
// and named arguments.
//
// An unknown event name is a no-op when unregistered events are allowed
// and fails with EVENT_DOES_NOT_EXIST otherwise. Listeners run
// synchronously against a snapshot of the registration list, so removals
// performed mid-dispatch are not observed by the in-flight dispatch. The
// first listener error aborts the remaining invocations and propagates to
// the caller unchanged.
func (r *Registry) DispatchNamed(ctx context.Context, name string, args []any, named map[string]any) error {
	return r.dispatch(ctx, name, args, named)
}

func (r *Registry) dispatch(ctx context.Context, name string, args []any, named map[string]any) error {
	r.mu.Lock()
	bs, declared := r.events[name]
	if !declared {
		r.mu.Unlock()
		if r.allowUnregistered {
			return nil
		}
		return ErrEventUnknown(name)
	}
	snapshot := make([]*binding, len(bs))
	copy(snapshot, bs)
	rec := r.rec
	r.mu.Unlock()

	if rec != nil {
		rec.DispatchStarted(name, len(snapshot))
	}
	if len(snapshot) == 0 {
		return nil
	}

	dispatchID := ulid.Make()
	slog.Debug("dispatching event",
		"event", name,
		"listeners", len(snapshot),
		"dispatch_id", dispatchID.String())

	for _, b := range snapshot {
		call := Call{Event: name, Args: args, Named: named}
		if b.owner != nil {
			target, err := b.owner.ResolveTarget()
			if err != nil {
				if rec != nil {
					rec.ListenerFailed(name)
				}
				return err
			}
			call.Target = target
		}
		if err := b.fn(ctx, call); err != nil {
			if rec != nil {
				rec.ListenerFailed(name)
			}
			slog.Error("listener failed, aborting dispatch",
				"event", name,
				"dispatch_id", dispatchID.String(),
				"error", err)
			return err
		}
	}
	return nil
}
