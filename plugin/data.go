// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chafer Contributors

package plugin

import (
	"sort"
	"sync"
)

// Data is a named bag of shared key-value state. One bag is shared by
// reference across every plugin instance of a registry and the host, so a
// mutation made by one party is visible to all others.
//
// Individual reads and writes are serialized; no ordering is imposed
// across keys or callers.
type Data struct {
	name string

	mu     sync.RWMutex
	values map[string]any
}

// NewData creates a shared data bag. The initial values are copied.
func NewData(name string, values map[string]any) *Data {
	d := &Data{
		name:   name,
		values: make(map[string]any, len(values)),
	}
	for k, v := range values {
		d.values[k] = v
	}
	return d
}

// Name returns the bag's namespace name.
func (d *Data) Name() string { return d.name }

// Get returns the value stored under key.
func (d *Data) Get(key string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.values[key]
	return v, ok
}

// Set stores a value under key. A nil value deletes the key, mirroring Lua
// table semantics.
func (d *Data) Set(key string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if value == nil {
		delete(d.values, key)
		return
	}
	d.values[key] = value
}

// Keys returns the stored keys, sorted.
func (d *Data) Keys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := make([]string, 0, len(d.values))
	for k := range d.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of the current contents.
func (d *Data) Snapshot() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]any, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}
