package gcrt

import (
	"sync/atomic"
	"unsafe"
)

// WeakRef is one entry in the process-wide weak-reference list (§3).
// Its Value is nulled by the collector between mark and sweep when its
// referent was found unmarked; it is never walked outside that window.
type WeakRef struct {
	value   unsafe.Pointer // *Header, atomic
	next    unsafe.Pointer // *WeakRef, atomic
	removed int32          // atomic bool; lazily dropped from the walk
}

// Value returns the referent, or nil once it has been collected.
func (w *WeakRef) Value() unsafe.Pointer {
	return atomic.LoadPointer(&w.value)
}

// weakManager owns the intrusive singly linked list of WeakRefs (C8).
// Registration is a lock-free CAS-prepend (§5); unregistration marks
// the node removed rather than splicing it out of a singly linked
// list, since nothing else holds a predecessor pointer to do that
// safely without a second lock — see DESIGN.md.
type weakManager struct {
	head unsafe.Pointer // *WeakRef
}

// Register adds a new weak reference to target, returning the handle
// the holder keeps.
func (wm *weakManager) Register(target unsafe.Pointer) *WeakRef {
	wr := &WeakRef{value: target}
	for {
		old := atomic.LoadPointer(&wm.head)
		wr.next = old
		if atomic.CompareAndSwapPointer(&wm.head, old, unsafe.Pointer(wr)) {
			return wr
		}
	}
}

// Unregister marks wr so the sweep no longer considers it. Safe to
// call from the weak holder's own finalizer/cleanup path.
func (wm *weakManager) Unregister(wr *WeakRef) {
	atomic.StoreInt32(&wr.removed, 1)
}

// sweep walks the weak list and nulls any entry whose referent was
// unmarked at this point (§4.6). It must run strictly between mark and
// sweep, registered as the "trace finished" callback.
func (wm *weakManager) sweep() {
	for cur := (*WeakRef)(atomic.LoadPointer(&wm.head)); cur != nil; cur = (*WeakRef)(atomic.LoadPointer(&cur.next)) {
		if atomic.LoadInt32(&cur.removed) != 0 {
			continue
		}
		v := atomic.LoadPointer(&cur.value)
		if v == nil {
			continue
		}
		if headerOf(v).Size >= 0 { // unmarked
			atomic.StorePointer(&cur.value, nil)
		}
	}
}
