// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chafer Contributors

// Package plugin provides the plugin registry: resolution, loading,
// dependency ordering and instantiation of Lua plugin units, plus their
// binding into an event registry.
package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	lua "github.com/yuin/gopher-lua"

	"github.com/chafer-dev/chafer/event"
	"github.com/chafer-dev/chafer/plugin/luavm"
)

// SourceSuffix is the recognized plugin source extension.
const SourceSuffix = ".lua"

// privateMarker prefixes source files LoadAll skips.
const privateMarker = "_"

// Recorder observes registry activity.
type Recorder interface {
	PluginLoaded(registry, name string)
	PluginLoadFailed(registry, name string)
}

// Registry is a named collection of plugin instances sharing one load
// directory, one set of shared data bags and one event registry. The
// registry's name is the capability every candidate unit must expose as a
// Lua global table.
//
// The registry assumes a single logical thread of execution for Load,
// LoadAll and dispatch, per the runtime's concurrency model. Internal
// locks guard bookkeeping only and are never held across Lua execution,
// so plugins may dispatch events or require further plugins while loading.
type Registry struct {
	name     string
	loadPath string
	shared   []*Data
	events   *event.Registry
	vm       *luavm.Factory
	patterns []glob.Glob
	rec      Recorder

	mu        sync.Mutex
	instances map[string]*Instance
	order     []*Instance
	loading   map[string]bool
	chain     []string
}

// Option configures a Registry.
type Option func(*Registry) error

// WithLoadPath sets the directory plugin names and file names resolve
// against.
func WithLoadPath(dir string) Option {
	return func(r *Registry) error {
		r.loadPath = dir
		return nil
	}
}

// WithEventRegistry binds the registry to an event registry. Without one,
// plugin listener lists are ignored.
func WithEventRegistry(events *event.Registry) Option {
	return func(r *Registry) error {
		r.events = events
		return nil
	}
}

// WithSharedData attaches shared data bags injected into every plugin.
func WithSharedData(bags ...*Data) Option {
	return func(r *Registry) error {
		for _, bag := range bags {
			if bag == nil {
				return fmt.Errorf("nil shared data bag")
			}
			r.shared = append(r.shared, bag)
		}
		return nil
	}
}

// WithPatterns overrides the file patterns LoadAll considers eligible.
// Patterns use glob syntax and match against the file name.
func WithPatterns(patterns ...string) Option {
	return func(r *Registry) error {
		compiled := make([]glob.Glob, 0, len(patterns))
		for _, p := range patterns {
			g, err := glob.Compile(p)
			if err != nil {
				return fmt.Errorf("pattern %q: %w", p, err)
			}
			compiled = append(compiled, g)
		}
		r.patterns = compiled
		return nil
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Registry) error {
		r.rec = rec
		return nil
	}
}

// NewRegistry creates a plugin registry requiring the given capability
// name of every candidate.
func NewRegistry(name string, opts ...Option) (*Registry, error) {
	if name == "" {
		return nil, fmt.Errorf("registry name cannot be empty")
	}
	r := &Registry{
		name:      name,
		vm:        luavm.NewFactory(),
		instances: make(map[string]*Instance),
		loading:   make(map[string]bool),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.patterns == nil {
		r.patterns = []glob.Glob{glob.MustCompile("*" + SourceSuffix)}
	}
	return r, nil
}

// Name returns the required capability name.
func (r *Registry) Name() string { return r.name }

// LoadPath returns the configured plugin directory.
func (r *Registry) LoadPath() string { return r.loadPath }

// Events returns the bound event registry, nil when unbound.
func (r *Registry) Events() *event.Registry { return r.events }

// SharedData returns the bag with the given name.
func (r *Registry) SharedData(name string) (*Data, bool) {
	for _, bag := range r.shared {
		if bag.Name() == name {
			return bag, true
		}
	}
	return nil, false
}

// Instance returns the loaded instance with the given name.
func (r *Registry) Instance(name string) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[name]
	return inst, ok
}

// Instances returns the loaded instances in load order.
func (r *Registry) Instances() []*Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Instance, len(r.order))
	copy(out, r.order)
	return out
}

// Load resolves, validates and instantiates one plugin. The Ref must
// carry exactly one identifier form. Loading a name that is already
// present is a no-op returning the existing instance, which keeps
// dependency recursion and repeated LoadAll calls safe.
func (r *Registry) Load(ctx context.Context, ref Ref) (*Instance, error) {
	if n := ref.forms(); n != 1 {
		return nil, ErrAmbiguousIdentifier(n)
	}

	name, unit, path := r.resolve(ref)

	r.mu.Lock()
	if inst, ok := r.instances[name]; ok {
		r.mu.Unlock()
		return inst, nil
	}
	if r.loading[name] {
		chain := append([]string(nil), r.chain...)
		r.mu.Unlock()
		return nil, ErrCyclicDependency(name, chain)
	}
	r.loading[name] = true
	r.chain = append(r.chain, name)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.loading, name)
		r.chain = r.chain[:len(r.chain)-1]
		r.mu.Unlock()
	}()

	if unit == nil {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			if r.rec != nil {
				r.rec.PluginLoadFailed(r.name, name)
			}
			return nil, ErrPluginNotFound(name, path)
		}
		unit, err = UnitFromFile(path)
		if err != nil {
			if r.rec != nil {
				r.rec.PluginLoadFailed(r.name, name)
			}
			return nil, err
		}
	}

	inst, err := r.instantiate(ctx, name, unit)
	if err != nil {
		if r.rec != nil {
			r.rec.PluginLoadFailed(r.name, name)
		}
		return nil, err
	}

	r.mu.Lock()
	r.instances[name] = inst
	r.order = append(r.order, inst)
	r.mu.Unlock()

	if r.rec != nil {
		r.rec.PluginLoaded(r.name, name)
	}
	slog.Info("loaded plugin",
		"registry", r.name,
		"plugin", name,
		"version", inst.desc.Version,
		"dependencies", len(inst.desc.Dependencies),
		"instance_id", inst.id.String())
	return inst, nil
}

// resolve derives the instance name, optional pre-resolved unit and
// source path from a validated Ref. Each identifier form is derived from
// the previous when absent: name -> file -> path.
func (r *Registry) resolve(ref Ref) (name string, unit *Unit, path string) {
	switch {
	case ref.Name != "":
		name = ref.Name
		path = filepath.Join(r.loadPath, ref.Name+SourceSuffix)
	case ref.File != "":
		name = unitName(ref.File)
		path = filepath.Join(r.loadPath, ref.File)
	case ref.Path != "":
		name = unitName(ref.Path)
		path = ref.Path
	default:
		unit = ref.Unit
		name = unit.Name()
	}
	if ref.As != "" {
		name = ref.As
	}
	return name, unit, path
}

// instantiate executes the unit in a fresh state, validates the
// capability, loads dependencies, binds listeners, injects shared data
// and constructs the instance table. On any failure the state is closed
// and nothing is registered.
func (r *Registry) instantiate(ctx context.Context, name string, unit *Unit) (_ *Instance, err error) {
	L, stateErr := r.vm.NewState(ctx)
	if stateErr != nil {
		return nil, ErrUnitFailed(name, stateErr)
	}
	defer func() {
		if err != nil {
			L.Close()
		}
	}()

	inst := &Instance{
		id:    ulid.Make(),
		reg:   r,
		unit:  unit,
		state: L,
	}
	r.registerHostFuncs(L, inst)
	r.injectShared(L)

	if doErr := L.DoString(unit.source); doErr != nil {
		return nil, ErrUnitFailed(name, doErr)
	}

	capVal := L.GetGlobal(r.name)
	if capVal == lua.LNil {
		return nil, ErrMissingCapability(name, unit.Path(), r.name)
	}
	class, ok := capVal.(*lua.LTable)
	if !ok {
		return nil, ErrWrongShape(name, r.name,
			fmt.Sprintf("global %q is a %s, not a table", r.name, capVal.Type()))
	}

	desc, depRefs, listeners, descErr := describe(name, r.name, class)
	if descErr != nil {
		return nil, descErr
	}

	// Dependency-first: every dependency is fully loaded and registered
	// before this plugin finishes its own preparation.
	for _, dep := range depRefs {
		depInst, depErr := r.Load(ctx, Ref{Name: dep.name})
		if depErr != nil {
			return nil, depErr
		}
		if dep.constraint != nil {
			v, verErr := depInst.desc.Semver()
			if verErr != nil || !dep.constraint.Check(v) {
				return nil, ErrDependencyUnsatisfied(
					name, dep.name, dep.raw, depInst.desc.Version)
			}
		}
	}

	if bindErr := r.bindListeners(unit, listeners); bindErr != nil {
		return nil, bindErr
	}

	self, newErr := r.construct(L, name, class)
	if newErr != nil {
		return nil, newErr
	}

	inst.desc = desc
	inst.self = self
	inst.adoptDeclaredDependencies(desc.Dependencies)
	return inst, nil
}

// construct builds the instance table: the capability's new() when
// defined, otherwise a fresh table with the capability as prototype.
func (r *Registry) construct(L *lua.LState, name string, class *lua.LTable) (*lua.LTable, error) {
	newVal := class.RawGetString("new")
	if newVal == lua.LNil {
		t := L.NewTable()
		mt := L.NewTable()
		mt.RawSetString("__index", class)
		L.SetMetatable(t, mt)
		return t, nil
	}
	newFn, ok := newVal.(*lua.LFunction)
	if !ok {
		return nil, ErrWrongShape(name, r.name, "'new' must be a function")
	}
	if err := L.CallByParam(lua.P{
		Fn:      newFn,
		NRet:    1,
		Protect: true,
	}, class); err != nil {
		return nil, ErrWrongShape(name, r.name, fmt.Sprintf("constructor failed: %v", err))
	}
	ret := L.Get(-1)
	L.Pop(1)
	self, ok := ret.(*lua.LTable)
	if !ok {
		return nil, ErrWrongShape(name, r.name, "constructor must return a table")
	}
	return self, nil
}

// unitOwner resolves owned listeners: the first instance of the unit in
// load order, which is the defined tie-break when several instances share
// one capability.
type unitOwner struct {
	reg  *Registry
	unit *Unit
}

// ResolveTarget implements event.Owner.
func (o unitOwner) ResolveTarget() (any, error) {
	o.reg.mu.Lock()
	defer o.reg.mu.Unlock()
	for _, inst := range o.reg.order {
		if inst.unit == o.unit {
			return inst, nil
		}
	}
	return nil, event.ErrUnresolvedTarget(o.unit.Name())
}

// bindListeners registers the unit's declared listeners with the event
// registry. Binding is keyed by unit identity, so loading the same unit
// under a second name does not double-register.
func (r *Registry) bindListeners(unit *Unit, listeners []listenerSpec) error {
	if len(listeners) == 0 {
		return nil
	}
	if r.events == nil {
		slog.Debug("no event registry bound, skipping listeners",
			"registry", r.name,
			"plugin", unit.Name(),
			"listeners", len(listeners))
		return nil
	}
	owner := unitOwner{reg: r, unit: unit}
	for _, spec := range listeners {
		index := spec.index
		fn := func(ctx context.Context, call event.Call) error {
			inst, ok := call.Target.(*Instance)
			if !ok {
				return event.ErrUnresolvedTarget(unit.Name())
			}
			return inst.invokeListener(ctx, index, call)
		}
		tag := fmt.Sprintf("%p#%d", unit, index)
		if err := r.events.BindListener(fn, owner, spec.event, tag); err != nil {
			return err
		}
	}
	return nil
}

// LoadAll loads every eligible unit under the load path: regular files
// not starting with the private marker whose name matches a configured
// pattern, in sorted order. The directory is created when absent. The
// first failing unit aborts the call.
func (r *Registry) LoadAll(ctx context.Context) error {
	if r.loadPath == "" {
		return ErrInvalidDirectory(r.loadPath)
	}
	info, err := os.Stat(r.loadPath)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(r.loadPath, 0o750); mkErr != nil {
			return ErrInvalidDirectory(r.loadPath)
		}
		return nil
	case err != nil:
		return ErrInvalidDirectory(r.loadPath)
	case !info.IsDir():
		return ErrInvalidDirectory(r.loadPath)
	}

	entries, err := os.ReadDir(r.loadPath)
	if err != nil {
		return ErrInvalidDirectory(r.loadPath)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fileName := entry.Name()
		if strings.HasPrefix(fileName, privateMarker) {
			continue
		}
		if !r.eligible(fileName) {
			continue
		}
		if _, err := r.Load(ctx, Ref{File: fileName}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) eligible(fileName string) bool {
	for _, g := range r.patterns {
		if g.Match(fileName) {
			return true
		}
	}
	return false
}

// Close releases every instance's Lua state. The registry must not be
// used afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inst := range r.order {
		inst.state.Close()
	}
	r.instances = make(map[string]*Instance)
	r.order = nil
}
