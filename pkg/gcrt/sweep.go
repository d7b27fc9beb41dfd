package gcrt

import "unsafe"

// sweepAllocator runs the five-step per-allocator sweep from §4.5. It
// must only run with every mutator parked at a safepoint.
//
// The cleanup list is processed first so unreferenced finalizable
// objects are resurrected (traced) before the weak-reference sweep and
// before anything is actually freed — a weak reference into a
// resurrecting object's subgraph must not be nulled, and a finalizer
// must never see a partially collected graph.
func (rt *Runtime) sweepAllocator(alloc *Allocator) {
	survivorsCleanup, unreferencedCleanup := partitionCleanupList(alloc)

	// Step 1 (continued): force-trace everything about to resurrect,
	// before the weak sweep runs, so their referents are marked too.
	for _, h := range unreferencedCleanup {
		Mark(rt, unsafe.Pointer(h))
	}

	// Step 2: trace-finished callbacks. The weak-reference manager's
	// sweep is registered here by NewRuntime.
	rt.fireOnGCTraceFinished()

	// Step 3: unmark survivors and relink the cleanup list.
	relinkCleanupSurvivors(alloc, survivorsCleanup)

	// Step 4: sweep the plain list.
	rt.sweepPlainList(alloc)

	// Step 5: finalize resurrected objects and reinsert them as
	// ordinary objects.
	for _, h := range unreferencedCleanup {
		rt.finalizeAndReinsert(alloc, h)
	}
}

// partitionCleanupList walks objectsRequiringCleanup once, classifying
// each entry as a survivor (already marked by root tracing, or pinned)
// or unreferenced, without mutating any header.
func partitionCleanupList(alloc *Allocator) (survivors, unreferenced []*Header) {
	for h := headerOf(alloc.objectsRequiringCleanup); h != nil; {
		next := headerOf(h.Next)
		if h.Size < 0 || h.ReferenceCount > 0 {
			survivors = append(survivors, h)
		} else {
			unreferenced = append(unreferenced, h)
		}
		h = next
	}
	return survivors, unreferenced
}

func relinkCleanupSurvivors(alloc *Allocator, survivors []*Header) {
	alloc.objectsRequiringCleanup = nil
	for i := len(survivors) - 1; i >= 0; i-- {
		h := survivors[i]
		h.Size = markedSize(h.Size)
		h.Next = alloc.objectsRequiringCleanup
		alloc.objectsRequiringCleanup = unsafe.Pointer(h)
	}
}

// sweepPlainList walks the plain objects list, keeping marked entries
// (restored to a positive size) and freeing unmarked ones.
func (rt *Runtime) sweepPlainList(alloc *Allocator) {
	var survivors []*Header
	var freed int
	for h := headerOf(alloc.objects); h != nil; {
		next := headerOf(h.Next)
		if h.Size < 0 {
			h.Size = -h.Size
			survivors = append(survivors, h)
		} else {
			rt.freeObject(alloc, h)
			freed++
		}
		h = next
	}
	alloc.objects = nil
	for i := len(survivors) - 1; i >= 0; i-- {
		h := survivors[i]
		h.Next = alloc.objects
		alloc.objects = unsafe.Pointer(h)
	}
	rt.lastSurvivors.Add(int64(len(survivors)))
	rt.lastFreed.Add(int64(freed))
}

// freeObject returns a small object's memory to its allocator's free
// list, or simply drops the reference to a large object so Go's own
// allocator reclaims the backing array (§4.1; see DESIGN.md for why
// this substitutes for an explicit system free in Go).
func (rt *Runtime) freeObject(alloc *Allocator, h *Header) {
	total := uintptr(markedSize(h.Size))
	alloc.addLiveBytes(-int64(total))
	if total <= SmallObjectLimit {
		alloc.freeSmall(total, unsafe.Pointer(h))
	}
}
