package gcrt

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// singletonManager serializes Singleton construction across every
// type with a single process-wide lock rather than one lock per type
// (§4.9): singleton construction is rare enough that a shared lock's
// contention never matters, and it avoids allocating a mutex per type
// that may never be instantiated as a singleton.
type singletonManager struct {
	mu sync.Mutex
}

// Singleton returns t's process-wide instance, allocating and
// constructing it on first call. The pointer is published to
// t.singleton with release semantics before InitObjectFn runs, so a
// constructor that re-enters Singleton for its own type (directly or
// through a cycle of constructors) observes the in-construction object
// instead of recursing into a second allocation (§4.9).
func (rt *Runtime) Singleton(t *TypeDescriptor) unsafe.Pointer {
	if p := atomic.LoadPointer(&t.singleton); p != nil {
		return p
	}

	rt.singletons.mu.Lock()
	defer rt.singletons.mu.Unlock()

	// Re-check under the lock: another goroutine may have published
	// (and even finished constructing) the instance while we waited.
	if p := atomic.LoadPointer(&t.singleton); p != nil {
		return p
	}

	handle := rt.AllocateObject(t, t.ObjectSize)
	atomic.StorePointer(&t.singleton, handle)

	if t.InitObjectFn != nil {
		t.InitObjectFn(rt, headerOf(handle))
	}
	return handle
}
