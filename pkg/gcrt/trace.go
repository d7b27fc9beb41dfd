package gcrt

import "unsafe"

// Mark is the tracer's mark operation (C5/§4.4): it returns
// immediately for a nil or already-marked handle, flips the sign bit
// on first visit, then recurses into the object's reference fields via
// its type's TraceFn (or the default field walk, if the type supplies
// none).
func Mark(rt *Runtime, handle unsafe.Pointer) {
	if handle == nil {
		return
	}
	hdr := headerOf(handle)
	if hdr.Size < 0 {
		return // already marked
	}
	hdr.Size = -hdr.Size

	if hdr.Type.TraceFn != nil {
		hdr.Type.TraceFn(rt, hdr)
		return
	}
	defaultTrace(rt, hdr)
}

// defaultTrace walks the fixed run of reference slots (or, for
// reference-array types, every element slot sized by the object's
// actual allocation) immediately following the header.
func defaultTrace(rt *Runtime, hdr *Header) {
	typ := hdr.Type
	if typ.IsReferenceArray {
		total := uintptr(markedSize(hdr.Size))
		if total < headerSize {
			return
		}
		count := (total - headerSize) / pointerSize
		for i := uintptr(0); i < count; i++ {
			slot := RefSlot(hdr, int(i))
			Mark(rt, *slot)
		}
		return
	}
	for i := 0; i < typ.ReferenceFieldCount; i++ {
		slot := RefSlot(hdr, i)
		Mark(rt, *slot)
	}
}

// TraceReferenceFields is exported for types that want the default
// fixed-slot walk from inside a custom TraceFn (for example, to mark a
// struct's own slots before recursing into a variable-length tail the
// default walk can't describe).
func TraceReferenceFields(rt *Runtime, hdr *Header, count int) {
	for i := 0; i < count; i++ {
		slot := RefSlot(hdr, i)
		Mark(rt, *slot)
	}
}

// traceRoots walks every root set named in §4.4: registered globals,
// pinned objects in every allocator, and live local roots on every
// registered goroutine's root stack.
func (rt *Runtime) traceRoots() {
	for _, fn := range rt.globalRoots {
		fn(rt)
	}
	for _, alloc := range rt.allocators {
		tracePinned(rt, alloc.objects)
		tracePinned(rt, alloc.objectsRequiringCleanup)
	}
	rt.locals.traceAll(rt)
}

// tracePinned walks one intrusive list, marking any unmarked object
// with a positive reference count (§4.4.2).
func tracePinned(rt *Runtime, head unsafe.Pointer) {
	for h := headerOf(head); h != nil; h = headerOf(h.Next) {
		if h.ReferenceCount > 0 && h.Size >= 0 {
			Mark(rt, unsafe.Pointer(h))
		}
	}
}
