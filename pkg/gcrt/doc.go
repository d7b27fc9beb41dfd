// Package gcrt implements the memory-management core of an emitted
// managed-object runtime: a slab allocator for small objects backed by
// bump-allocated pages, a type-directed tracing mark-sweep collector,
// a multithreaded safepoint handshake, and finalization/weak-reference
// support.
//
// The compiler that emits per-type metadata (trace functions, init
// functions, cleanup functions) is an external collaborator; this
// package consumes that metadata through the gcrt/metadata package and
// does not generate it.
package gcrt
