package gcrt

import (
	"sync/atomic"
	"unsafe"
)

// Header is the prefix of every managed allocation (§3). Size doubles
// as the mark bit: the tracer flips its sign to mark an object, and it
// must read positive again before the mutator resumes (IP1).
type Header struct {
	Type         *TypeDescriptor
	Size         int32
	ReferenceCount int32
	Next         unsafe.Pointer // *Header, intrusive list link
}

var (
	headerSize  = unsafe.Sizeof(Header{})
	pointerSize = unsafe.Sizeof(unsafe.Pointer(nil))
)

// FixedObjectSize computes the total allocation size for a type with
// refFieldCount reference-typed slots immediately following the
// header — the arithmetic a compiler emitting ObjectSize table entries
// performs, exported so callers building metadata.TypeEntry values by
// hand (tests, cmd/rgcdemo) don't have to repeat it.
func FixedObjectSize(refFieldCount int) int32 {
	return int32(headerSize + uintptr(refFieldCount)*pointerSize)
}

// fieldsBase returns the address immediately after h's header, where
// its reference-field slots (or, for reference arrays, its element
// slots) begin.
func fieldsBase(h *Header) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(h), headerSize)
}

// RefSlot returns the address of reference slot i following h's
// header. The slot holds an unsafe.Pointer to another object's Header,
// or nil.
func RefSlot(h *Header, i int) *unsafe.Pointer {
	return (*unsafe.Pointer)(unsafe.Add(fieldsBase(h), uintptr(i)*pointerSize))
}

// headerOf views a handle as its Header.
func headerOf(handle unsafe.Pointer) *Header {
	return (*Header)(handle)
}

// HeaderOf exports headerOf for callers outside the package (tests,
// cmd/rgcdemo) that need to read or write reference slots directly.
func HeaderOf(handle unsafe.Pointer) *Header {
	return headerOf(handle)
}

// AllocateObject is the unified allocation entry point (§4.2):
// consults the GC trigger, obtains zeroed memory from the type's
// allocator, writes the header, and threads the object onto the
// type's plain or cleanup-bearing intrusive list.
//
// size is the number of bytes to allocate including the header; for
// fixed-size types this is headerSize + len(fields)*pointerSize, for
// arrays it is headerSize plus the element region.
func (rt *Runtime) AllocateObject(typ *TypeDescriptor, size int32) unsafe.Pointer {
	rt.safepoint.GCCheck()
	rt.trigger.onAllocate(int64(size))

	total := uintptr(size)
	alloc := rt.allocatorFor(typ)

	var raw unsafe.Pointer
	if total > SmallObjectLimit {
		raw = allocLarge(total)
	} else {
		raw = alloc.allocSmall(total)
	}
	zero(raw, total)
	alloc.addLiveBytes(int64(total))

	hdr := headerOf(raw)
	hdr.Type = typ
	hdr.Size = size
	hdr.ReferenceCount = 0

	if typ.OnCleanupFn != nil {
		prependAtomic(&alloc.objectsRequiringCleanup, hdr)
	} else {
		prependAtomic(&alloc.objects, hdr)
	}
	return raw
}

// zero clears n bytes at p. AllocateObject always zeroes regardless of
// whether the memory came fresh from a page (already zero) or was
// recycled off a free list, keeping the invariant simple rather than
// tracking provenance.
func zero(p unsafe.Pointer, n uintptr) {
	b := unsafe.Slice((*byte)(p), n)
	for i := range b {
		b[i] = 0
	}
}

// Retain increments obj's pin count. A positive reference count roots
// the object independent of the reference graph (§4.2, IP5).
func Retain(obj unsafe.Pointer) {
	atomic.AddInt32(&headerOf(obj).ReferenceCount, 1)
}

// Release decrements obj's pin count, clamped at zero.
func Release(obj unsafe.Pointer) {
	hdr := headerOf(obj)
	for {
		old := atomic.LoadInt32(&hdr.ReferenceCount)
		if old <= 0 {
			return
		}
		if atomic.CompareAndSwapInt32(&hdr.ReferenceCount, old, old-1) {
			return
		}
	}
}

// Pinned reports whether obj is currently retained.
func Pinned(obj unsafe.Pointer) bool {
	return atomic.LoadInt32(&headerOf(obj).ReferenceCount) > 0
}
