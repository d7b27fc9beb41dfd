package gcrt

import (
	"go.uber.org/atomic"
)

// DefaultGCThreshold is the default byte budget between collections,
// tuned to tens of megabytes per §4.10.
const DefaultGCThreshold = 32 << 20 // 32 MiB

// trigger implements the GC trigger policy (C10): a byte counter that
// counts every allocation, small or large, down from a threshold, and
// asks the safepoint coordinator for a collection when it runs out.
//
// The counter uses go.uber.org/atomic's relaxed-atomic integers rather
// than a mutex, accepting the small accounting races §4.10 and §9
// call out explicitly in exchange for not taking a hot lock on every
// allocation.
type trigger struct {
	threshold atomic.Int64
	remaining atomic.Int64
	rt        *Runtime
}

func newTrigger(rt *Runtime, threshold int64) *trigger {
	if threshold <= 0 {
		threshold = DefaultGCThreshold
	}
	t := &trigger{rt: rt}
	t.threshold.Store(threshold)
	t.remaining.Store(threshold)
	return t
}

// onAllocate subtracts n bytes from the budget and requests a
// collection, without waiting for it, once the budget is exhausted.
func (t *trigger) onAllocate(n int64) {
	if t.remaining.Sub(n) <= 0 {
		t.request()
	}
}

// addLargeBytes accounts large-object bytes against the same budget
// (§4.1: "count bytes against the GC budget").
func (t *trigger) addLargeBytes(n int64) {
	t.onAllocate(n)
}

func (t *trigger) request() {
	t.rt.safepoint.RequestCollection(false)
}

// reset restores the counter to the configured threshold; called once
// per completed collection cycle.
func (t *trigger) reset() {
	t.remaining.Store(t.threshold.Load())
}

// SetThreshold changes the byte budget used from the next reset
// onward (the tunable named gc_threshold in §6).
func (t *trigger) SetThreshold(n int64) {
	t.threshold.Store(n)
}

// Remaining reports the current budget, for stats/metrics.
func (t *trigger) Remaining() int64 {
	return t.remaining.Load()
}
