// Package provider is the single entry point for metadata queries.
//
// A Provider classifies each module as interpreted or compiled and routes
// every query to the matching image. Compiled modules get one adapter image
// each, built on first use and cached. All process-wide state (module
// registry, adapters, instantiation cache) lives in the Provider and exists
// only between Initialize and Shutdown.
package provider

import (
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"clrmeta/internal/aot"
	"clrmeta/internal/generic"
	"clrmeta/internal/image"
	"clrmeta/internal/metadata"
	"clrmeta/internal/metaerr"
	"clrmeta/internal/resolve"
	"clrmeta/internal/trace"
)

// Options configure a Provider.
type Options struct {
	Strategy     generic.Strategy
	MaxInstances int
	Tracer       trace.Tracer
	Logger       *zap.Logger
}

type entry struct {
	mod    metadata.Module
	interp *image.Interpreted // interpreted modules
	window *aot.Window        // compiled modules
}

// Provider routes metadata queries to module images.
type Provider struct {
	// mu is the metadata lock: registration and cache transactions take it.
	mu     sync.RWMutex
	opts   Options
	tracer trace.Tracer
	log    *zap.Logger

	initialized bool
	cache       *generic.Cache
	resolver    *resolve.Resolver
	modules     map[metadata.ModuleID]*entry
	byName      map[string]metadata.ModuleID
	adapters    map[metadata.ModuleID]*image.Compiled
	// retired holds the ids of unloaded modules. Cached instances keyed by
	// their definitions outlive the module, so an id is never reused before
	// Shutdown.
	retired map[metadata.ModuleID]string
}

// New returns an uninitialized provider.
func New(opts Options) *Provider {
	tr := opts.Tracer
	if tr == nil {
		tr = trace.Nop
	}
	log := opts.Logger
	if log == nil {
		log = Logger()
	}
	return &Provider{opts: opts, tracer: tr, log: log.Named("provider")}
}

// Initialize creates the module registry and the instantiation cache.
func (p *Provider) Initialize() error {
	span := trace.Begin(p.tracer, trace.ScopeProvider, "initialize", 0)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		err := metaerr.InvalidArgument("initialize", "provider is already initialized")
		span.EndErr(err)
		return err
	}
	p.cache = generic.New(generic.Options{
		Strategy:     p.opts.Strategy,
		MaxInstances: p.opts.MaxInstances,
		Lock:         &p.mu,
		Tracer:       p.tracer,
	})
	p.resolver = resolve.New(p.cache, p, p.tracer)
	p.modules = make(map[metadata.ModuleID]*entry)
	p.byName = make(map[string]metadata.ModuleID)
	p.adapters = make(map[metadata.ModuleID]*image.Compiled)
	p.retired = make(map[metadata.ModuleID]string)
	p.initialized = true
	p.log.Debug("initialized", zap.Stringer("strategy", p.opts.Strategy), zap.Int("max_instances", p.opts.MaxInstances))
	span.End(p.opts.Strategy.String())
	return nil
}

// Shutdown drops every module and releases the instantiation cache.
func (p *Provider) Shutdown() error {
	span := trace.Begin(p.tracer, trace.ScopeProvider, "shutdown", 0)
	p.mu.Lock()
	if !p.initialized {
		p.mu.Unlock()
		err := metaerr.NotInitialized("shutdown", "provider")
		span.EndErr(err)
		return err
	}
	cache := p.cache
	modules := len(p.modules)
	p.initialized = false
	p.cache, p.resolver = nil, nil
	p.modules, p.byName, p.adapters, p.retired = nil, nil, nil, nil
	p.mu.Unlock()

	// the cache shares mu, so it is closed after the lock is released
	stats := cache.Stats()
	err := cache.Close()
	p.log.Debug("shut down", zap.Int("modules", modules), zap.Int("instances", stats.Live()))
	span.EndErr(err)
	return err
}

// Cache exposes the instantiation cache to the execution engine.
func (p *Provider) Cache() (*generic.Cache, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return nil, metaerr.NotInitialized("cache", "provider")
	}
	return p.cache, nil
}

// Resolver returns the token resolver bound to this provider.
func (p *Provider) Resolver() (*resolve.Resolver, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return nil, metaerr.NotInitialized("resolver", "provider")
	}
	return p.resolver, nil
}

// Stats returns the instantiation cache counters.
func (p *Provider) Stats() (generic.Stats, error) {
	cache, err := p.Cache()
	if err != nil {
		return generic.Stats{}, err
	}
	return cache.Stats(), nil
}

// LoadInterpreted registers an interpreted module and builds its image.
// The tables are linked if needed and must not be modified afterwards.
func (p *Provider) LoadInterpreted(mod metadata.Module, tables *metadata.Tables) (*image.Interpreted, error) {
	const op = "load"
	span := trace.Begin(p.tracer, trace.ScopeModule, "load:"+mod.Name, 0)
	img, err := p.loadInterpreted(op, mod, tables)
	span.EndErr(err)
	if err != nil {
		return nil, err
	}
	p.log.Info("module loaded",
		zap.String("module", mod.Name),
		zap.Stringer("id", mod.ID),
		zap.Uint32("types", img.Counts().Types),
		zap.Uint32("methods", img.Counts().Methods))
	return img, nil
}

func (p *Provider) loadInterpreted(op string, mod metadata.Module, tables *metadata.Tables) (*image.Interpreted, error) {
	if mod.Origin == 0 {
		mod.Origin = metadata.OriginInterpreted
	}
	if !mod.ID.IsValid() {
		mod.ID = metadata.NewModuleID(mod.Name)
	}
	resolver, err := p.Resolver()
	if err != nil {
		return nil, err
	}
	// linking and indexing need no lock; the registry is checked again below
	img, err := image.NewInterpreted(mod, tables, resolver)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return nil, metaerr.NotInitialized(op, "provider")
	}
	if err := p.checkFreeLocked(op, mod); err != nil {
		return nil, err
	}
	p.modules[mod.ID] = &entry{mod: mod, interp: img}
	p.byName[mod.Name] = mod.ID
	return img, nil
}

// LoadModuleFile reads a msgpack module file and loads it as interpreted.
func (p *Provider) LoadModuleFile(path string) (*image.Interpreted, error) {
	f, err := metadata.LoadModuleFile(path)
	if err != nil {
		return nil, err
	}
	mod, err := f.Module()
	if err != nil {
		return nil, err
	}
	return p.LoadInterpreted(mod, &f.Tables)
}

// MountCompiled registers every window of a decoded compiled-module blob.
// Either all windows are registered or none.
func (p *Provider) MountCompiled(md *aot.Metadata) error {
	const op = "mount"
	span := trace.Begin(p.tracer, trace.ScopeModule, "mount", 0)
	if md == nil {
		err := metaerr.InvalidArgument(op, "nil compiled metadata")
		span.EndErr(err)
		return err
	}

	p.mu.Lock()
	if !p.initialized {
		p.mu.Unlock()
		err := metaerr.NotInitialized(op, "provider")
		span.EndErr(err)
		return err
	}
	for _, w := range md.Windows {
		if err := p.checkFreeLocked(op, w.Module); err != nil {
			p.mu.Unlock()
			span.EndErr(err)
			return err
		}
	}
	names := make([]string, 0, len(md.Windows))
	for _, w := range md.Windows {
		p.modules[w.Module.ID] = &entry{mod: w.Module, window: w}
		p.byName[w.Module.Name] = w.Module.ID
		names = append(names, w.Module.Name)
	}
	p.mu.Unlock()

	p.log.Info("compiled modules mounted", zap.Strings("modules", names))
	span.WithExtra("modules", strings.Join(names, ",")).End("")
	return nil
}

func (p *Provider) checkFreeLocked(op string, mod metadata.Module) error {
	if _, dup := p.modules[mod.ID]; dup {
		return metaerr.InvalidArgument(op, "module %s (%s) is already registered", mod.Name, mod.ID)
	}
	if name, gone := p.retired[mod.ID]; gone {
		return metaerr.InvalidArgument(op, "module id %s was used by unloaded module %s; reload with a new id", mod.ID, name)
	}
	if _, dup := p.byName[mod.Name]; dup {
		return metaerr.InvalidArgument(op, "module name %q is already registered", mod.Name)
	}
	return nil
}

// Unload removes an interpreted module. Instances already created from its
// definitions stay in the cache; they are never evicted. The module id is
// retired until Shutdown, so a reload must carry a new id.
func (p *Provider) Unload(id metadata.ModuleID) error {
	const op = "unload"
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return metaerr.NotInitialized(op, "provider")
	}
	e, ok := p.modules[id]
	if !ok {
		return metaerr.NotFound(op, "module %s is not registered", id)
	}
	if e.interp == nil {
		return metaerr.InvalidArgument(op, "compiled module %s cannot be unloaded", e.mod.Name)
	}
	delete(p.modules, id)
	delete(p.byName, e.mod.Name)
	p.retired[id] = e.mod.Name
	trace.Point(p.tracer, trace.ScopeModule, "unload:"+e.mod.Name, "")
	p.log.Info("module unloaded", zap.String("module", e.mod.Name))
	return nil
}

// IsInterpreted classifies a registered module.
func (p *Provider) IsInterpreted(id metadata.ModuleID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.modules[id]
	return ok && e.mod.Origin == metadata.OriginInterpreted
}

// Module returns the description of a registered module.
func (p *Provider) Module(id metadata.ModuleID) (metadata.Module, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if e, ok := p.modules[id]; ok {
		return e.mod, true
	}
	return metadata.Module{}, false
}

// ModuleByName finds a registered module by name.
func (p *Provider) ModuleByName(name string) (metadata.Module, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if id, ok := p.byName[name]; ok {
		return p.modules[id].mod, true
	}
	return metadata.Module{}, false
}

// Modules lists registered modules sorted by name.
func (p *Provider) Modules() []metadata.Module {
	p.mu.RLock()
	out := make([]metadata.Module, 0, len(p.modules))
	for _, e := range p.modules {
		out = append(out, e.mod)
	}
	p.mu.RUnlock()
	slices.SortFunc(out, func(a, b metadata.Module) int { return strings.Compare(a.Name, b.Name) })
	return out
}
