package gcrt

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/dolthub/maphash"

	"github.com/rogue-lang/rgc/pkg/gcrt/metadata"
)

// TraceFn recurses into h's reference fields. Mark calls it only for a
// non-nil h it has just marked, so it marks h's referents (through Mark
// or TraceReferenceFields) rather than h itself.
type TraceFn func(rt *Runtime, h *Header)

// InitObjectFn is a zero-argument constructor.
type InitObjectFn func(rt *Runtime, h *Header)

// InitFn is a one-argument constructor.
type InitFn func(rt *Runtime, h *Header, arg unsafe.Pointer)

// CleanupFn finalizes h. Its presence on a TypeDescriptor routes
// objects of that type to the cleanup-bearing intrusive list.
type CleanupFn func(rt *Runtime, h *Header)

// ToStringFn renders h for display. The collector never calls it.
type ToStringFn func(rt *Runtime, h *Header) string

// Property names one field of a type, for introspection only.
type Property struct {
	Name      string
	TypeIndex int
}

// TypeDescriptor is immutable after ConfigureTypes returns. One exists
// per user-defined type, built once from compiler-emitted tables.
type TypeDescriptor struct {
	Index       int
	NameIndex   int
	Name        string
	ObjectSize  int32
	AllocatorID int

	// BaseTypes is the flat list of every transitive ancestor type
	// index, enabling an O(n) InstanceOf.
	BaseTypes []int

	PropertyLayout []Property

	// ReferenceFieldCount and IsReferenceArray describe the default
	// layout used when TraceFn is nil.
	ReferenceFieldCount int
	IsReferenceArray    bool

	TraceFn      TraceFn
	InitObjectFn InitObjectFn
	InitFn       InitFn
	OnCleanupFn  CleanupFn
	ToStringFn   ToStringFn

	// singleton is the published pointer for Runtime.Singleton (§4.9).
	// It is published with release semantics before InitObjectFn runs,
	// so a re-entrant Singleton call from inside the constructor
	// observes the in-construction object instead of recursing.
	singleton unsafe.Pointer
}

// Functions supplies the per-type function pointers the compiler
// would otherwise emit directly, keyed by type name. ConfigureTypes
// wires these onto the TypeDescriptor built from the matching
// metadata.TypeEntry.
type Functions struct {
	Trace      map[string]TraceFn
	InitObject map[string]InitObjectFn
	Init       map[string]InitFn
	OnCleanup  map[string]CleanupFn
	ToString   map[string]ToStringFn
}

// TypeRegistry is the immutable-after-init table of type descriptors
// (C3). It is read-only once ConfigureTypes has returned.
type TypeRegistry struct {
	mu        sync.RWMutex
	configured bool
	types     []*TypeDescriptor
	names     []string
	nameIndex map[uint64][]int
	hasher    maphash.Hasher[string]
}

func newTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		nameIndex: make(map[uint64][]int),
		hasher:    maphash.NewHasher[string](),
	}
}

// ConfigureTypes reads the packed integer table produced by the
// compiler, builds the descriptor array, wires up per-type function
// pointers from the parallel Functions tables, and allocates each
// type's flattened BaseTypes list. It must be called exactly once
// before any allocation.
func (rt *Runtime) ConfigureTypes(table metadata.Table, fns Functions) error {
	reg := rt.types
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.configured {
		return fmt.Errorf("gcrt: ConfigureTypes called more than once")
	}

	reg.types = make([]*TypeDescriptor, len(table.Entries))
	reg.names = make([]string, len(table.Entries))

	for i, entry := range table.Entries {
		td := &TypeDescriptor{
			Index:               i,
			NameIndex:           i,
			Name:                entry.Name,
			ObjectSize:          entry.ObjectSize,
			AllocatorID:         entry.AllocatorID,
			BaseTypes:           append([]int(nil), entry.BaseTypeIndices...),
			ReferenceFieldCount: entry.ReferenceFieldCount,
			IsReferenceArray:    entry.IsReferenceArray,
		}
		td.PropertyLayout = make([]Property, len(entry.Properties))
		for j, p := range entry.Properties {
			td.PropertyLayout[j] = Property{Name: p.Name, TypeIndex: p.TypeIndex}
		}
		if entry.HasTraceFn {
			td.TraceFn = fns.Trace[entry.Name]
		}
		if entry.HasInitObjectFn {
			td.InitObjectFn = fns.InitObject[entry.Name]
		}
		if entry.HasInitFn {
			td.InitFn = fns.Init[entry.Name]
		}
		if entry.HasOnCleanupFn {
			td.OnCleanupFn = fns.OnCleanup[entry.Name]
		}
		if entry.HasToStringFn {
			td.ToStringFn = fns.ToString[entry.Name]
		}

		reg.types[i] = td
		reg.names[i] = entry.Name
		h := reg.hasher.Hash(entry.Name)
		reg.nameIndex[h] = append(reg.nameIndex[h], i)
	}
	reg.configured = true
	rt.logger.Debugw("types configured", "count", len(reg.types))
	return nil
}

// TypeByIndex returns the descriptor for type index idx, or nil if out
// of range. Safe to call concurrently once configured.
func (r *TypeRegistry) TypeByIndex(idx int) *TypeDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx < 0 || idx >= len(r.types) {
		return nil
	}
	return r.types[idx]
}

// TypeByName looks up a type descriptor by its interned name, using a
// maphash-backed index for O(1) average lookup.
func (r *TypeRegistry) TypeByName(name string) *TypeDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h := r.hasher.Hash(name)
	for _, idx := range r.nameIndex[h] {
		if r.names[idx] == name {
			return r.types[idx]
		}
	}
	return nil
}

// InstanceOf reports whether h's type is t or has t among its
// transitive base types. The scan is intentionally linear; base-type
// lists are short.
func InstanceOf(h unsafe.Pointer, t *TypeDescriptor) bool {
	if h == nil || t == nil {
		return false
	}
	hdr := (*Header)(h)
	if hdr.Type == t {
		return true
	}
	for _, idx := range hdr.Type.BaseTypes {
		if idx == t.Index {
			return true
		}
	}
	return false
}

// markedSize reads hdr.Size's magnitude regardless of mark state,
// matching the sign-bit overload from §3: a negative size means the
// object is currently marked.
func markedSize(size int32) int32 {
	if size < 0 {
		return -size
	}
	return size
}
