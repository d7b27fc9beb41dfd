package gcrt

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// RuntimeConfig tunes a Runtime at construction time. Every field has
// a zero value that falls back to a sensible default; Option functions
// set fields by name so cmd/rgcdemo can bind them one flag at a time.
type RuntimeConfig struct {
	// PageSize overrides the default 64 KiB page-pool page size.
	PageSize uintptr
	// AllocatorCount sizes the fixed slice of per-ID allocators.
	// AllocatorID values from ConfigureTypes must stay within range.
	AllocatorCount int
	// GCThreshold overrides DefaultGCThreshold.
	GCThreshold int64
	// Logger overrides the default zap logger (for embedding in a host
	// program that already manages its own zap configuration).
	Logger *zap.Logger
}

// Option mutates a RuntimeConfig being built up by NewRuntime's
// caller, the same small functional-options shape the teacher's own
// config surface uses for optional knobs.
type Option func(*RuntimeConfig)

// WithPageSize overrides the page pool's page size.
func WithPageSize(n uintptr) Option {
	return func(c *RuntimeConfig) { c.PageSize = n }
}

// WithAllocatorCount sizes the number of distinct allocators the
// Runtime creates, one per AllocatorID a type's metadata may name.
func WithAllocatorCount(n int) Option {
	return func(c *RuntimeConfig) { c.AllocatorCount = n }
}

// WithThreshold overrides the GC trigger's byte budget.
func WithThreshold(n int64) Option {
	return func(c *RuntimeConfig) { c.GCThreshold = n }
}

// WithLogging sets the Logger a Runtime logs through; pass
// zap.NewNop() to silence gc_logging entirely.
func WithLogging(l *zap.Logger) Option {
	return func(c *RuntimeConfig) { c.Logger = l }
}

func buildConfig(opts []Option) RuntimeConfig {
	var cfg RuntimeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Runtime is the single entry point a host program embeds (§3): it
// owns the type registry, one allocator per AllocatorID, the safepoint
// coordinator, the GC trigger, the weak-reference manager, the
// singleton table, and the root set.
type Runtime struct {
	ID uuid.UUID

	types      *TypeRegistry
	allocators []*Allocator
	safepoint  *Safepoint
	trigger    *trigger
	weak       *weakManager
	singletons singletonManager
	locals     *localRoots

	globalRoots []func(*Runtime)

	logger *zap.SugaredLogger
	metrics *metricsSet

	onGCBegin         []func(*Runtime)
	onGCTraceFinished []func(*Runtime)
	onGCEnd           []func(*Runtime, Stats)

	gcCount       atomic.Int64
	lastSurvivors atomic.Int64
	lastFreed     atomic.Int64
	lastPause     atomic.Duration
	collectorDone chan struct{}
}

// NewRuntime constructs a Runtime and starts its dedicated collector
// goroutine. Call ConfigureTypes before any allocation.
func NewRuntime(opts ...Option) (*Runtime, error) {
	cfg := buildConfig(opts)
	logger, err := newLogger(cfg.Logger)
	if err != nil {
		return nil, err
	}

	allocCount := cfg.AllocatorCount
	if allocCount <= 0 {
		allocCount = 1
	}

	rt := &Runtime{
		ID:            uuid.New(),
		types:         newTypeRegistry(),
		allocators:    make([]*Allocator, allocCount),
		weak:          &weakManager{},
		locals:        newLocalRoots(),
		logger:        logger.Sugar(),
		collectorDone: make(chan struct{}),
	}
	for i := range rt.allocators {
		rt.allocators[i] = NewAllocator(i, cfg.PageSize)
	}
	rt.safepoint = newSafepoint(rt)
	rt.trigger = newTrigger(rt, cfg.GCThreshold)
	rt.metrics = newMetricsSet(rt.ID.String())

	// The weak-reference sweep must run as part of every cycle's
	// trace-finished callback (§4.6).
	rt.OnGCTraceFinished(func(*Runtime) { rt.weak.sweep() })

	// The collector counts as running from here on, so a Collect(true)
	// issued before the goroutine is first scheduled still waits.
	rt.safepoint.collectorOn = true
	go func() {
		rt.safepoint.runCollectorLoop()
		close(rt.collectorDone)
	}()

	rt.logger.Infow("runtime started", "id", rt.ID, "allocators", allocCount)
	return rt, nil
}

// Types returns the runtime's type registry, for lookups after
// ConfigureTypes has run.
func (rt *Runtime) Types() *TypeRegistry { return rt.types }

// Safepoint returns the runtime's safepoint coordinator, for tests and
// tooling observing the handshake directly.
func (rt *Runtime) Safepoint() *Safepoint { return rt.safepoint }

// Allocator returns the allocator registered under id, or nil if id is
// out of range.
func (rt *Runtime) Allocator(id int) *Allocator {
	if id < 0 || id >= len(rt.allocators) {
		return nil
	}
	return rt.allocators[id]
}

// Weak registers target in the process-wide weak-reference list,
// returning the handle the caller holds onto.
func (rt *Runtime) Weak(target unsafe.Pointer) *WeakRef {
	return rt.weak.Register(target)
}

// UnregisterWeak drops wr from the weak-reference sweep.
func (rt *Runtime) UnregisterWeak(wr *WeakRef) {
	rt.weak.Unregister(wr)
}

// RegisterMutator admits the calling goroutine as a mutator: it may
// now allocate, retain/release, push local roots, and must eventually
// call UnregisterMutator before exiting.
func (rt *Runtime) RegisterMutator() {
	rt.safepoint.RegisterMutator()
	rt.locals.register()
}

// UnregisterMutator removes the calling goroutine from the mutator
// set. Its entered depth must be back at the 1 RegisterMutator gave it
// (IP7).
func (rt *Runtime) UnregisterMutator() {
	rt.safepoint.UnregisterMutator()
	rt.locals.unregister()
}

// RegisterGlobalRoot adds fn to the set of functions the tracer calls
// on every collection to mark global/static roots (§4.4.1). fn should
// call Mark on each global reference it owns.
func (rt *Runtime) RegisterGlobalRoot(fn func(*Runtime)) {
	rt.globalRoots = append(rt.globalRoots, fn)
}

// OnGCBegin registers a callback run at the start of every collection
// cycle, before tracing begins.
func (rt *Runtime) OnGCBegin(fn func(*Runtime)) {
	rt.onGCBegin = append(rt.onGCBegin, fn)
}

// OnGCTraceFinished registers a callback run once tracing has visited
// every reachable object, before any sweeping starts. This is the
// window in which it is safe to inspect mark bits without racing the
// sweeper (§4.6) — the weak-reference manager's own sweep is
// registered here by NewRuntime.
func (rt *Runtime) OnGCTraceFinished(fn func(*Runtime)) {
	rt.onGCTraceFinished = append(rt.onGCTraceFinished, fn)
}

// OnGCEnd registers a callback run after a collection cycle completes,
// receiving a snapshot of that cycle's stats.
func (rt *Runtime) OnGCEnd(fn func(*Runtime, Stats)) {
	rt.onGCEnd = append(rt.onGCEnd, fn)
}

func (rt *Runtime) fireOnGCTraceFinished() {
	for _, fn := range rt.onGCTraceFinished {
		fn(rt)
	}
}

// allocatorFor selects typ's configured allocator, defaulting to
// allocator 0 for an out-of-range AllocatorID rather than failing an
// allocation outright.
func (rt *Runtime) allocatorFor(typ *TypeDescriptor) *Allocator {
	id := typ.AllocatorID
	if id < 0 || id >= len(rt.allocators) {
		return rt.allocators[0]
	}
	return rt.allocators[id]
}

// runCollectionCycle runs one full mark/sweep cycle. It is only ever
// called by the collector goroutine with every mutator parked.
func (rt *Runtime) runCollectionCycle() {
	start := time.Now()
	for _, fn := range rt.onGCBegin {
		fn(rt)
	}

	rt.lastSurvivors.Store(0)
	rt.lastFreed.Store(0)

	rt.traceRoots()
	for _, alloc := range rt.allocators {
		rt.sweepAllocator(alloc)
	}
	rt.trigger.reset()

	pause := time.Since(start)
	rt.lastPause.Store(pause)
	rt.gcCount.Inc()
	rt.metrics.observeCycle(pause, rt.lastSurvivors.Load(), rt.lastFreed.Load())

	snap := rt.Stats()
	rt.logger.Debugw("gc cycle complete",
		"count", snap.Count,
		"pause", pause,
		"survivors", snap.LastSurvivors,
		"freed", snap.LastFreed,
	)
	for _, fn := range rt.onGCEnd {
		fn(rt, snap)
	}
}

// freeAll unconditionally reclaims every live object across every
// allocator, bypassing mark/sweep entirely. It is the shutdown-only
// path run once after the collector loop's final two cycles (§4.8).
func (rt *Runtime) freeAll() {
	for _, alloc := range rt.allocators {
		for h := headerOf(alloc.objects); h != nil; {
			next := headerOf(h.Next)
			rt.freeObject(alloc, h)
			h = next
		}
		for h := headerOf(alloc.objectsRequiringCleanup); h != nil; {
			next := headerOf(h.Next)
			rt.runFinalizer(h)
			rt.freeObject(alloc, h)
			h = next
		}
		alloc.objects = nil
		alloc.objectsRequiringCleanup = nil
	}
	rt.logger.Infow("runtime freed all objects", "id", rt.ID)
}

// Quit requests a final shutdown collection (two extra cycles, then
// freeAll per §4.8) and blocks until the collector goroutine exits.
func (rt *Runtime) Quit() {
	rt.safepoint.requestShutdown()
	<-rt.collectorDone
}

// Collect requests a collection cycle, optionally waiting for it to
// complete before returning.
func (rt *Runtime) Collect(wait bool) {
	rt.safepoint.RequestCollection(wait)
}

// Stats is a point-in-time snapshot of collector activity, a
// supplemented introspection surface beyond what a C-oriented runtime
// would normally expose.
type Stats struct {
	Count         int64
	LastPause     time.Duration
	LastSurvivors int64
	LastFreed     int64
	BytesUntilGC  int64
}

// Stats reports the current collector counters.
func (rt *Runtime) Stats() Stats {
	return Stats{
		Count:         rt.gcCount.Load(),
		LastPause:     rt.lastPause.Load(),
		LastSurvivors: rt.lastSurvivors.Load(),
		LastFreed:     rt.lastFreed.Load(),
		BytesUntilGC:  rt.trigger.Remaining(),
	}
}

// DescribeType renders a human-readable summary of a configured type,
// for tooling and the rgcdemo CLI rather than anything the collector
// itself consults.
func (rt *Runtime) DescribeType(t *TypeDescriptor) string {
	kind := "fixed"
	if t.IsReferenceArray {
		kind = "reference-array"
	}
	return fmt.Sprintf("%s (index=%d, allocator=%d, size=%d, kind=%s, refFields=%d, properties=%d)",
		t.Name, t.Index, t.AllocatorID, t.ObjectSize, kind, t.ReferenceFieldCount, len(t.PropertyLayout))
}
