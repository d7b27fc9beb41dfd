package gcrt_test

import (
	"sync"
	"unsafe"

	"github.com/rogue-lang/rgc/pkg/gcrt"
	"github.com/rogue-lang/rgc/pkg/gcrt/metadata"
)

// buildResurrectingFixture returns a one-type table whose finalizer
// re-registers its own object into *global, modeling scenario 2's
// resurrection-on-cleanup case.
func buildResurrectingFixture(mu *sync.Mutex, global *unsafe.Pointer, cleanupCount *int) (metadata.Table, gcrt.Functions, error) {
	table := metadata.Table{
		Entries: []metadata.TypeEntry{
			{
				Name:           "ResurrectingResource",
				ObjectSize:     gcrt.FixedObjectSize(0),
				HasOnCleanupFn: true,
			},
		},
	}
	fns := gcrt.Functions{
		OnCleanup: map[string]gcrt.CleanupFn{
			"ResurrectingResource": func(rt *gcrt.Runtime, h *gcrt.Header) {
				mu.Lock()
				defer mu.Unlock()
				*global = unsafe.Pointer(h)
				*cleanupCount++
			},
		},
	}
	return table, fns, nil
}

// testtypesForSafepoint returns a one-type table with no reference
// fields and no cleanup, sized for scenario 4's tight allocation loop.
func testtypesForSafepoint() (metadata.Table, gcrt.Functions, error) {
	table := metadata.Table{
		Entries: []metadata.TypeEntry{
			{
				Name:       "SafepointLeaf",
				ObjectSize: gcrt.FixedObjectSize(0),
			},
		},
	}
	return table, gcrt.Functions{}, nil
}
