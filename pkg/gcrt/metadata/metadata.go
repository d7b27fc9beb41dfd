// Package metadata defines the packed tables a compiler emits to
// describe the types of a managed-object program. gcrt.ConfigureTypes
// consumes exactly this shape; nothing in this package performs GC
// work itself.
package metadata

// Property describes one field of a type, by name and by the index of
// the type that holds it. It is consumed only by introspection
// (Runtime.DescribeType); the tracer never looks at it.
type Property struct {
	Name      string
	TypeIndex int
}

// TypeEntry is one row of the compiler's packed type table.
type TypeEntry struct {
	// Name is interned into the registry's string table.
	Name string

	// ObjectSize is the byte size of an instance, excluding any
	// trailing variable-length region for array types.
	ObjectSize int32

	// AllocatorID selects which allocator instance owns objects of
	// this type (see gcrt.Runtime.Allocator).
	AllocatorID int

	// BaseTypeIndices lists every transitive ancestor type, flattened,
	// by index into the final table.
	BaseTypeIndices []int

	// ReferenceFieldCount is the number of reference-typed slots that
	// immediately follow the object header, for types that don't
	// supply a custom TraceFn.
	ReferenceFieldCount int

	// IsReferenceArray marks array-of-reference types: the trailing
	// region (sized by the actual allocation, not ObjectSize) is a
	// run of reference slots.
	IsReferenceArray bool

	Properties []Property

	// HasTraceFn, HasInitObjectFn, HasInitFn, HasOnCleanupFn and
	// HasToStringFn flag which optional per-type functions the
	// function table (see Functions) supplies for this type, by name.
	HasTraceFn      bool
	HasInitObjectFn bool
	HasInitFn       bool
	HasOnCleanupFn  bool
	HasToStringFn   bool
}

// Table is the packed integer table the compiler produces once at
// startup. Entries are indexed by their position: entry i has type
// index i.
type Table struct {
	Entries []TypeEntry
}
