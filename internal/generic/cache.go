package generic

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"fortio.org/safecast"

	"clrmeta/internal/metadata"
	"clrmeta/internal/metaerr"
	"clrmeta/internal/trace"
)

// Strategy selects how a missing instance is created and published.
type Strategy uint8

const (
	// StrategyLocked creates under the write lock.
	StrategyLocked Strategy = iota
	// StrategyOptimistic creates outside the lock and inserts if absent.
	StrategyOptimistic
)

func (s Strategy) String() string {
	switch s {
	case StrategyLocked:
		return "locked"
	case StrategyOptimistic:
		return "optimistic"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a configuration string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(s) {
	case "", "locked":
		return StrategyLocked, nil
	case "optimistic":
		return StrategyOptimistic, nil
	default:
		return StrategyLocked, fmt.Errorf("invalid cache strategy: %q (expected: locked|optimistic)", s)
	}
}

// Options configure a Cache.
type Options struct {
	Strategy Strategy
	// MaxInstances bounds the live instances across all tables; 0 means
	// bounded only by the 32-bit id space.
	MaxInstances int
	// Lock is the metadata lock. When nil the cache owns a private one.
	Lock   *sync.RWMutex
	Tracer trace.Tracer
}

// Stats are cumulative cache counters.
type Stats struct {
	Hits      uint64 // requests answered by an existing instance
	Allocated uint64 // instances built, published or not
	Discarded uint64 // optimistic allocations that lost the race
	Insts     int    // live argument lists
	Classes   int    // live class instances
	Methods   int    // live method instances
}

// Live returns the number of live instances across all tables.
func (s Stats) Live() int { return s.Insts + s.Classes + s.Methods }

func (s Stats) String() string {
	return "insts=" + strconv.Itoa(s.Insts) +
		" classes=" + strconv.Itoa(s.Classes) +
		" methods=" + strconv.Itoa(s.Methods) +
		" hits=" + strconv.FormatUint(s.Hits, 10) +
		" allocated=" + strconv.FormatUint(s.Allocated, 10) +
		" discarded=" + strconv.FormatUint(s.Discarded, 10)
}

type classKey struct {
	def  metadata.DefID
	inst metadata.InstID
}

type methodKey struct {
	def   metadata.DefID
	inst  metadata.InstID
	class metadata.InstID
}

// Cache is the canonical instantiation cache. The zero value is not usable;
// call New.
type Cache struct {
	mu       *sync.RWMutex
	strategy Strategy
	max      int
	tracer   trace.Tracer

	// guarded by mu
	insts   map[string]*metadata.Inst
	classes map[classKey]*metadata.GenericClass
	methods map[methodKey]*metadata.GenericMethod
	closed  bool

	nextID    atomic.Uint64
	hits      atomic.Uint64
	allocated atomic.Uint64
	discarded atomic.Uint64
}

// New builds an empty cache.
func New(opts Options) *Cache {
	mu := opts.Lock
	if mu == nil {
		mu = &sync.RWMutex{}
	}
	tr := opts.Tracer
	if tr == nil {
		tr = trace.Nop
	}
	return &Cache{
		mu:       mu,
		strategy: opts.Strategy,
		max:      opts.MaxInstances,
		tracer:   tr,
		insts:    make(map[string]*metadata.Inst, 64),
		classes:  make(map[classKey]*metadata.GenericClass, 64),
		methods:  make(map[methodKey]*metadata.GenericMethod, 64),
	}
}

// Strategy reports the configured creation strategy.
func (c *Cache) Strategy() Strategy { return c.strategy }

// Inst returns the canonical argument list for args. Lists are equal when
// they have the same length and pairwise equal elements in order.
func (c *Cache) Inst(args []*metadata.Type) (*metadata.Inst, error) {
	const op = "inst"
	if len(args) == 0 {
		return nil, metaerr.InvalidArgument(op, "empty type-argument list")
	}
	for i, arg := range args {
		if arg == nil {
			return nil, metaerr.InvalidArgument(op, "type argument %d is nil", i)
		}
	}
	key := metadata.InstKey(args)
	return getOrCreate(c, op, c.instTable, key, func(id uint32) (*metadata.Inst, error) {
		return metadata.NewInst(metadata.InstID(id), args, key), nil
	})
}

// Class returns the canonical instance of the generic type def over inst.
func (c *Cache) Class(def *metadata.TypeDef, inst *metadata.Inst) (*metadata.GenericClass, error) {
	const op = "class"
	if def == nil {
		return nil, metaerr.InvalidArgument(op, "nil type definition")
	}
	if !def.IsGeneric() {
		return nil, metaerr.InvalidArgument(op, "%s is not generic", def.FullName())
	}
	if err := checkInst(op, inst, def.Generic.Count(), def.FullName()); err != nil {
		return nil, err
	}
	key := classKey{def: def.ID, inst: inst.ID}
	return getOrCreate(c, op, c.classTable, key, func(id uint32) (*metadata.GenericClass, error) {
		return metadata.NewGenericClass(metadata.ClassID(id), def, inst), nil
	})
}

// Method returns the canonical instance of def with the given method-level
// and class-level lists. Either list may be nil, not both. A generic method
// given only a class-level list yields a partially inflated instance.
func (c *Cache) Method(def *metadata.MethodDef, methodInst, classInst *metadata.Inst) (*metadata.GenericMethod, error) {
	const op = "method"
	if def == nil {
		return nil, metaerr.InvalidArgument(op, "nil method definition")
	}
	if methodInst == nil && classInst == nil {
		return nil, metaerr.InvalidArgument(op, "%s: no type-argument list", def.Name)
	}
	if methodInst != nil {
		if !def.IsGeneric() {
			return nil, metaerr.InvalidArgument(op, "%s is not generic", def.Name)
		}
		if err := checkInst(op, methodInst, def.Generic.Count(), def.Name); err != nil {
			return nil, err
		}
	}
	owner := def.Owner()
	if owner == nil {
		return nil, metaerr.InvalidArgument(op, "%s is not linked", def.Name)
	}
	declaring := owner.Type()
	if classInst != nil {
		// resolved before the method transaction; the lock is not reentrant
		gc, err := c.Class(owner, classInst)
		if err != nil {
			return nil, err
		}
		declaring = gc.Type()
	}
	key := methodKey{
		def:   def.ID,
		inst:  metadata.InstIDOf(methodInst),
		class: metadata.InstIDOf(classInst),
	}
	return getOrCreate(c, op, c.methodTable, key, func(id uint32) (*metadata.GenericMethod, error) {
		return metadata.NewGenericMethod(metadata.MethodInstID(id), def, methodInst, classInst, declaring), nil
	})
}

func checkInst(op string, inst *metadata.Inst, arity int, name string) error {
	if inst == nil || inst.ID == 0 {
		return metaerr.InvalidArgument(op, "%s: missing canonical type-argument list", name)
	}
	if inst.Len() != arity {
		return metaerr.InvalidArgument(op, "%s takes %d type arguments, got %d", name, arity, inst.Len())
	}
	return nil
}

func (c *Cache) instTable() map[string]*metadata.Inst                { return c.insts }
func (c *Cache) classTable() map[classKey]*metadata.GenericClass    { return c.classes }
func (c *Cache) methodTable() map[methodKey]*metadata.GenericMethod { return c.methods }

// getOrCreate runs one lookup-or-create transaction against a table.
// table is read under the lock because Close drops the maps.
func getOrCreate[K comparable, V any](c *Cache, op string, table func() map[K]V, key K, create func(id uint32) (V, error)) (V, error) {
	var zero V

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return zero, metaerr.NotInitialized(op, "instantiation cache")
	}
	v, ok := table()[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return v, nil
	}

	if c.strategy == StrategyOptimistic {
		return createOptimistic(c, op, table, key, create)
	}
	v, created, err := createLocked(c, op, table, key, create)
	if err != nil {
		return zero, err
	}
	// tracers may call back into the cache, so notes go out after Unlock
	if created {
		c.note("create-"+op, v)
	}
	return v, nil
}

// createLocked re-checks the table and creates the instance, all under the
// write lock. created is false when another caller published first.
func createLocked[K comparable, V any](c *Cache, op string, table func() map[K]V, key K, create func(id uint32) (V, error)) (v V, created bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return v, false, metaerr.NotInitialized(op, "instantiation cache")
	}
	if v, ok := table()[key]; ok {
		c.hits.Add(1)
		return v, false, nil
	}
	if err := c.reserveLocked(op); err != nil {
		return v, false, err
	}
	id, err := c.newID(op)
	if err != nil {
		return v, false, err
	}
	if v, err = create(id); err != nil {
		return v, false, err
	}
	c.allocated.Add(1)
	table()[key] = v
	return v, true, nil
}

// createOptimistic builds the instance without holding the lock and
// publishes it only if no other creator got there first.
func createOptimistic[K comparable, V any](c *Cache, op string, table func() map[K]V, key K, create func(id uint32) (V, error)) (V, error) {
	var zero V
	id, err := c.newID(op)
	if err != nil {
		return zero, err
	}
	fresh, err := create(id)
	if err != nil {
		return zero, err
	}
	c.allocated.Add(1)

	winner, lost, err := publish(c, op, table, key, fresh)
	if err != nil {
		return zero, err
	}
	if lost {
		c.discarded.Add(1)
		c.note("discard-"+op, fresh)
		return winner, nil
	}
	c.note("create-"+op, fresh)
	return fresh, nil
}

// publish inserts fresh unless the key is taken; lost reports the latter
// and winner is the published instance.
func publish[K comparable, V any](c *Cache, op string, table func() map[K]V, key K, fresh V) (winner V, lost bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return winner, false, metaerr.NotInitialized(op, "instantiation cache")
	}
	if w, ok := table()[key]; ok {
		return w, true, nil
	}
	if err := c.reserveLocked(op); err != nil {
		return winner, false, err
	}
	table()[key] = fresh
	return fresh, false, nil
}

func (c *Cache) note(name string, v any) {
	if !c.tracer.Enabled() {
		return
	}
	var detail string
	switch v := v.(type) {
	case *metadata.Inst:
		detail = v.String()
	case *metadata.GenericClass:
		detail = v.Type().String()
	case *metadata.GenericMethod:
		detail = v.Method().String()
	}
	trace.Point(c.tracer, trace.ScopeCache, name, detail)
}

// reserveLocked enforces MaxInstances. Callers hold the write lock.
func (c *Cache) reserveLocked(op string) error {
	if c.max <= 0 {
		return nil
	}
	if live := len(c.insts) + len(c.classes) + len(c.methods); live >= c.max {
		return metaerr.Allocation(op, fmt.Errorf("limit of %d instances reached", c.max))
	}
	return nil
}

func (c *Cache) newID(op string) (uint32, error) {
	id, err := safecast.Conv[uint32](c.nextID.Add(1))
	if err != nil {
		return 0, metaerr.Allocation(op, err)
	}
	return id, nil
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Hits:      c.hits.Load(),
		Allocated: c.allocated.Load(),
		Discarded: c.discarded.Load(),
		Insts:     len(c.insts),
		Classes:   len(c.classes),
		Methods:   len(c.methods),
	}
}

// Close releases every instance. It may be called once; later calls and
// any further lookups fail with NotInitialized.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return metaerr.NotInitialized("close", "instantiation cache")
	}
	released := len(c.insts) + len(c.classes) + len(c.methods)
	c.insts, c.classes, c.methods = nil, nil, nil
	c.closed = true
	trace.Point(c.tracer, trace.ScopeCache, "close", strconv.Itoa(released)+" instances released")
	return nil
}

// IsGenericTypeInstantiated reports whether t needs no further
// instantiation: it is a generic instance or anything other than an open
// generic definition.
func IsGenericTypeInstantiated(t *metadata.Type) bool {
	return t != nil && !t.IsOpenGeneric()
}

// IsGenericMethodInstantiated reports whether m is non-generic or already
// inflated with method-level arguments.
func IsGenericMethodInstantiated(m *metadata.Method) bool {
	return m != nil && (!m.IsGeneric() || m.IsInflated())
}
