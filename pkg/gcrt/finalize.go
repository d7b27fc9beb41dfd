package gcrt

// finalizeAndReinsert runs the finalizer for one resurrected
// cleanup-bearing object (§4.5 step 5, §4.7) and moves it onto the
// plain objects list. The finalizer may allocate freely: anything it
// allocates is born unmarked on the current cycle's lists and is only
// ever visited by a later cycle.
//
// A finalizer that panics is logged and swallowed rather than allowed
// to unwind through the collector goroutine (§6: the core never relies
// on unwinding across a collection boundary).
func (rt *Runtime) finalizeAndReinsert(alloc *Allocator, h *Header) {
	h.Size = markedSize(h.Size) // restore to its ordinary positive size first
	rt.runFinalizer(h)
	h.Next = nil
	prependAtomic(&alloc.objects, h)
}

func (rt *Runtime) runFinalizer(h *Header) {
	fn := h.Type.OnCleanupFn
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			rt.logger.Errorw("finalizer panicked",
				"type", h.Type.Name,
				"panic", r,
			)
		}
	}()
	fn(rt, h)
}
