package gcrt

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/timandy/routine"
)

// RootScope is one entry in the per-goroutine local-root stack
// (§4.4.3, §9's def_local_ref): a single stack-slot address the
// tracer marks through until Pop restores whatever scope was active
// before it. A compiler emits one of these per local that holds an
// object pointer across a call that might allocate.
type RootScope struct {
	cell *unsafe.Pointer // this goroutine's localRoots cell
	prev *RootScope
	slot *unsafe.Pointer
}

// localRoots tracks, for every registered mutator, the address of a
// cell holding that goroutine's current innermost RootScope. A
// goroutine-local slot (the same routine.ThreadLocal mechanism the
// safepoint coordinator uses for its entered depth, C9) maps a
// goroutine to its own cell; traceAll walks every registered cell
// rather than just the calling goroutine's, since the collector
// goroutine itself never pushes scopes.
type localRoots struct {
	mu    sync.Mutex
	cells []*unsafe.Pointer

	myCell routine.ThreadLocal // per-goroutine *unsafe.Pointer
}

func newLocalRoots() *localRoots {
	return &localRoots{myCell: routine.NewThreadLocal()}
}

// register allocates this goroutine's scope cell and adds it to the
// set traceAll walks. Call once per mutator goroutine, alongside
// Safepoint.RegisterMutator.
func (l *localRoots) register() {
	cell := new(unsafe.Pointer)
	l.mu.Lock()
	l.cells = append(l.cells, cell)
	l.mu.Unlock()
	l.myCell.Set(cell)
}

// unregister drops this goroutine's cell from the set traceAll walks.
func (l *localRoots) unregister() {
	v := l.myCell.Get()
	if v == nil {
		return
	}
	cell := v.(*unsafe.Pointer)
	l.mu.Lock()
	for i, c := range l.cells {
		if c == cell {
			l.cells = append(l.cells[:i], l.cells[i+1:]...)
			break
		}
	}
	l.mu.Unlock()
	l.myCell.Remove()
}

func (l *localRoots) cell() *unsafe.Pointer {
	v := l.myCell.Get()
	if v == nil {
		return nil
	}
	return v.(*unsafe.Pointer)
}

// PushLocalRoot records slot as a live local root for the calling
// goroutine and returns the scope handle to Pop when the local goes
// out of scope. The calling goroutine must already be registered
// (Runtime.RegisterMutator).
func (rt *Runtime) PushLocalRoot(slot *unsafe.Pointer) *RootScope {
	cell := rt.locals.cell()
	prev := (*RootScope)(atomic.LoadPointer(cell))
	s := &RootScope{cell: cell, prev: prev, slot: slot}
	atomic.StorePointer(cell, unsafe.Pointer(s))
	return s
}

// Pop restores whichever scope was active before this one. Scopes
// must be popped in the reverse order they were pushed.
func (s *RootScope) Pop() {
	atomic.StorePointer(s.cell, unsafe.Pointer(s.prev))
}

// traceAll walks every registered mutator's scope chain, tracing each
// recorded slot. Safe only with every mutator parked: the cell list
// is read without a per-access lock.
func (l *localRoots) traceAll(rt *Runtime) {
	l.mu.Lock()
	cells := append([]*unsafe.Pointer(nil), l.cells...)
	l.mu.Unlock()
	for _, cell := range cells {
		for s := (*RootScope)(atomic.LoadPointer(cell)); s != nil; s = s.prev {
			Mark(rt, *s.slot)
		}
	}
}
