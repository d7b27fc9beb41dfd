package gcrt_test

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rogue-lang/rgc/pkg/gcrt"
)

// Scenario 1: lifecycle. Allocate many objects without a finalizer,
// drop half of them, force a collection, and check survivor count and
// gc_count bookkeeping.
func TestScenarioLifecycle(t *testing.T) {
	rt, _ := newTestRuntime(t)

	const total = 10000
	const keep = total / 2
	roots := make([]unsafe.Pointer, keep)

	for i := 0; i < total; i++ {
		h := allocLeaf(t, rt)
		if i < keep {
			roots[i] = h
		}
	}

	var scopes []*gcrt.RootScope
	for i := range roots {
		scope := rt.PushLocalRoot(&roots[i])
		scopes = append(scopes, scope)
	}
	defer func() {
		for i := len(scopes) - 1; i >= 0; i-- {
			scopes[i].Pop()
		}
	}()

	before := rt.Stats().Count
	rt.Collect(true)
	after := rt.Stats()

	assert.Equal(t, before+1, after.Count, "gc_count must increment by exactly one")
	for _, h := range roots {
		assert.True(t, gcrt.HeaderOf(h).Size > 0)
	}
}

// Scenario 2: finalizer resurrection. F's on_cleanup_fn re-registers F
// into a global slot; dropping the external reference and collecting
// must run the finalizer once and leave F alive as long as the global
// still points to it.
func TestScenarioFinalizerResurrection(t *testing.T) {
	rt, err := gcrt.NewRuntime()
	require.NoError(t, err)
	defer rt.Quit()

	var global unsafe.Pointer
	var mu sync.Mutex
	var cleanupCount int

	table, fns, _ := buildResurrectingFixture(&mu, &global, &cleanupCount)
	require.NoError(t, rt.ConfigureTypes(table, fns))

	rt.RegisterGlobalRoot(func(rt *gcrt.Runtime) {
		mu.Lock()
		defer mu.Unlock()
		if global != nil {
			gcrt.Mark(rt, global)
		}
	})

	rt.RegisterMutator()
	resourceType := rt.Types().TypeByName("ResurrectingResource")
	f := rt.AllocateObject(resourceType, resourceType.ObjectSize)

	var root unsafe.Pointer = f
	scope := rt.PushLocalRoot(&root)
	root = nil
	scope.Pop()
	rt.UnregisterMutator()

	rt.Collect(true)

	mu.Lock()
	survivedFirst := global == f
	mu.Unlock()
	assert.True(t, survivedFirst, "F must survive its own finalizer cycle via resurrection")
	assert.Equal(t, 1, cleanupCount)

	rt.Collect(true)
	mu.Lock()
	survivedSecond := global == f
	mu.Unlock()
	assert.True(t, survivedSecond, "F must still survive while the global still references it")
}

// Scenario 3: weak. A weak reference to a dropped object reads null
// after collection, without panicking.
func TestScenarioWeak(t *testing.T) {
	rt, _ := newTestRuntime(t)

	o := allocLeaf(t, rt)
	wr := rt.Weak(o)

	rt.Collect(true)

	assert.NotPanics(t, func() {
		assert.Nil(t, wr.Value())
	})
}

// Scenario 4: safepoint. 8 mutator goroutines allocate in a tight
// loop; a forced collection must see all 8 parked before it begins
// marking, and every goroutine resumes afterward.
func TestScenarioSafepointHandshake(t *testing.T) {
	rt, err := gcrt.NewRuntime()
	require.NoError(t, err)
	defer rt.Quit()

	table, fns, _ := testtypesForSafepoint()
	require.NoError(t, rt.ConfigureTypes(table, fns))
	leaf := rt.Types().TypeByName("SafepointLeaf")

	const workers = 8
	stop := make(chan struct{})
	var wg sync.WaitGroup
	var ready sync.WaitGroup
	ready.Add(workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rt.RegisterMutator()
			defer rt.UnregisterMutator()
			ready.Done()
			for {
				select {
				case <-stop:
					return
				default:
					rt.AllocateObject(leaf, leaf.ObjectSize)
				}
			}
		}()
	}

	ready.Wait()
	rt.Collect(true)
	assert.Equal(t, workers, rt.Safepoint().LiveMutators())

	close(stop)
	wg.Wait()
}

// Scenario 5: cycle. Two mutually referring objects with no external
// roots are both freed; mark-sweep handles the cycle without special
// casing.
func TestScenarioCycle(t *testing.T) {
	rt, _ := newTestRuntime(t)

	a := allocPair(t, rt, nil, nil)
	b := allocPair(t, rt, a, nil)
	*gcrt.RefSlot(gcrt.HeaderOf(a), 0) = b

	// No local root holds a or b past this point.
	rt.Collect(true)

	// Both a and b are unreachable and are the only objects allocated,
	// so the cycle frees exactly those two.
	assert.Equal(t, int64(2), rt.Stats().LastFreed, "mark-sweep must free both members of a reference cycle")
}

// Scenario 6: pin. Retaining an object keeps it alive across several
// collections; releasing it allows the next collection to free it.
func TestScenarioPin(t *testing.T) {
	rt, _ := newTestRuntime(t)

	o := allocLeaf(t, rt)
	gcrt.Retain(o)

	for i := 0; i < 3; i++ {
		rt.Collect(true)
		assert.True(t, gcrt.HeaderOf(o).Size > 0, "pinned object must survive every collection")
	}

	gcrt.Release(o)
	rt.Collect(true)
	assert.False(t, gcrt.Pinned(o))
}
