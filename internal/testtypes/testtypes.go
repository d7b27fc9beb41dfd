// Package testtypes builds a small fixed metadata table shared by
// pkg/gcrt's tests and cmd/rgcdemo: a cons-cell-like Pair with two
// reference fields, a Resource with a cleanup function, a WeakHolder
// with no traced fields (its weak link lives outside the field
// layout), and a plain Leaf with no fields at all.
package testtypes

import (
	"fmt"

	"github.com/rogue-lang/rgc/pkg/gcrt"
	"github.com/rogue-lang/rgc/pkg/gcrt/metadata"
)

// Type indices, fixed by the order entries are appended below.
const (
	PairIndex       = 0
	ResourceIndex   = 1
	WeakHolderIndex = 2
	LeafIndex       = 3
)

// CleanupLog records Resource finalizer invocations in order, for
// tests asserting on finalization ordering and resurrection.
type CleanupLog struct {
	entries []string
}

func (l *CleanupLog) record(s string) { l.entries = append(l.entries, s) }

// Entries returns every recorded finalizer invocation in order.
func (l *CleanupLog) Entries() []string { return append([]string(nil), l.entries...) }

// Build returns the packed type table and function tables for the
// fixture types, plus a CleanupLog the Resource finalizer writes to.
func Build() (metadata.Table, gcrt.Functions, *CleanupLog) {
	log := &CleanupLog{}

	table := metadata.Table{
		Entries: []metadata.TypeEntry{
			{ // Pair: two reference fields, no cleanup.
				Name:                "Pair",
				ObjectSize:          gcrt.FixedObjectSize(2),
				AllocatorID:         0,
				ReferenceFieldCount: 2,
				Properties: []metadata.Property{
					{Name: "first", TypeIndex: -1},
					{Name: "second", TypeIndex: -1},
				},
			},
			{ // Resource: one reference field, has a finalizer.
				Name:                "Resource",
				ObjectSize:          gcrt.FixedObjectSize(1),
				AllocatorID:         0,
				ReferenceFieldCount: 1,
				HasOnCleanupFn:      true,
				Properties: []metadata.Property{
					{Name: "label", TypeIndex: -1},
				},
			},
			{ // WeakHolder: no strong reference fields at all; the
				// weak link lives outside the traced field layout.
				Name:                "WeakHolder",
				ObjectSize:          gcrt.FixedObjectSize(0),
				AllocatorID:         0,
				ReferenceFieldCount: 0,
			},
			{ // Leaf: no reference fields, no cleanup. A plain payload.
				Name:                "Leaf",
				ObjectSize:          gcrt.FixedObjectSize(0),
				AllocatorID:         0,
				ReferenceFieldCount: 0,
			},
		},
	}

	fns := gcrt.Functions{
		OnCleanup: map[string]gcrt.CleanupFn{
			"Resource": func(rt *gcrt.Runtime, h *gcrt.Header) {
				log.record(fmt.Sprintf("cleanup:%p", h))
			},
		},
	}

	return table, fns, log
}
