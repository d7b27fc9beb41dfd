package gcrt

import (
	"sync"

	"github.com/timandy/routine"
)

// Safepoint coordinates the stop-the-world handshake (C9) between a
// dedicated collector goroutine and every registered mutator goroutine.
// It tracks the four shared counters from §4.8:
//
//	worldStopped (W) — a collection is underway; mutators park.
//	parked (S)       — mutators currently parked at a safepoint.
//	requestCount (R) — pending collection requests, coalesced.
//	goCond (G)       — wakes the collector goroutine.
//
// Go has no native thread-local storage, so the per-goroutine entered
// depth (§4.8, IP7) is kept in a timandy/routine goroutine-local slot
// rather than threaded through every call — the same role it plays in
// the pack's flier-goutil.
type Safepoint struct {
	rt *Runtime

	mu           sync.Mutex
	worldCond    *sync.Cond // signaled when worldStopped clears
	stopCond     *sync.Cond // signaled when parked reaches liveMutators
	doneCond     *sync.Cond // signaled when a requested cycle completes
	goCond       *sync.Cond // wakes the collector goroutine
	threadSetMu  sync.Mutex // held across a full cycle; start/stop of mutators excluded

	worldStopped bool
	parked       int
	liveMutators int
	requestCount int
	shouldQuit   bool
	collectorOn  bool

	entered     routine.ThreadLocal
	isCollector routine.ThreadLocal
}

func newSafepoint(rt *Runtime) *Safepoint {
	sp := &Safepoint{rt: rt, entered: routine.NewThreadLocal(), isCollector: routine.NewThreadLocal()}
	sp.worldCond = sync.NewCond(&sp.mu)
	sp.stopCond = sync.NewCond(&sp.mu)
	sp.doneCond = sync.NewCond(&sp.mu)
	sp.goCond = sync.NewCond(&sp.mu)
	return sp
}

func (sp *Safepoint) depth() int {
	v := sp.entered.Get()
	if v == nil {
		return 0
	}
	return v.(int)
}

func (sp *Safepoint) setDepth(d int) {
	sp.entered.Set(d)
}

// RegisterMutator admits one more live mutator into the thread set.
// Call it once per goroutine before it allocates or calls Enter/Exit.
// The goroutine starts inside managed code, at entered depth 1.
func (sp *Safepoint) RegisterMutator() {
	sp.threadSetMu.Lock()
	defer sp.threadSetMu.Unlock()
	sp.mu.Lock()
	sp.liveMutators++
	sp.mu.Unlock()
	sp.setDepth(1)
}

// UnregisterMutator removes the calling goroutine from the thread set.
// Its entered depth must have returned to the 1 it started at (IP7);
// any other depth is the unbalanced-enter/exit fatal condition from §7.
func (sp *Safepoint) UnregisterMutator() {
	if d := sp.depth(); d != 1 {
		sp.rt.fatal(ErrUnbalancedSafepoint, "entered depth %d at thread exit", d)
	}
	sp.threadSetMu.Lock()
	defer sp.threadSetMu.Unlock()
	sp.mu.Lock()
	sp.liveMutators--
	sp.mu.Unlock()
	sp.entered.Remove()
}

// GCCheck is the lightweight poll the compiler would emit at
// back-edges and call sites (§5): a read of W, and a park only when a
// collection is underway. AllocateObject calls this on every
// allocation, which is the natural high-frequency safepoint for a
// program whose hot loops allocate.
//
// The collector goroutine itself is exempt (§4.8: "if this thread is
// not the collector, it parks"). A finalizer run inline during sweep
// may allocate, and that allocation's GCCheck runs on the collector
// goroutine, inside the very stopTheWorld/startTheWorld bracket that
// only startTheWorld (called after this cycle returns) can clear —
// parking here would deadlock the collector against itself.
func (sp *Safepoint) GCCheck() {
	if v := sp.isCollector.Get(); v != nil && v.(bool) {
		return
	}
	sp.mu.Lock()
	for sp.worldStopped {
		sp.parked++
		sp.stopCond.Signal()
		sp.worldCond.Wait()
		sp.parked--
	}
	sp.mu.Unlock()
}

// Enter marks the calling goroutine as back inside managed code after
// a blocking call guarded by Exit, then runs a GCCheck so a pending
// collection can still stop it immediately.
func (sp *Safepoint) Enter() {
	sp.mu.Lock()
	sp.parked-- // undo the credit Exit gave while we were blocked
	d := sp.depth() + 1
	sp.mu.Unlock()
	sp.setDepth(d)
	sp.GCCheck()
}

// Exit wraps a call that may block outside the runtime (§6). The
// calling goroutine counts as parked for the duration without
// actually waiting, so a collection already underway is not held up
// by a thread sitting in a syscall.
func (sp *Safepoint) Exit() {
	d := sp.depth()
	if d <= 0 {
		sp.rt.fatal(ErrUnbalancedSafepoint, "Exit with entered depth %d", d)
	}
	sp.setDepth(d - 1)
	sp.mu.Lock()
	sp.parked++
	sp.stopCond.Signal()
	sp.mu.Unlock()
}

// RequestCollection publishes a collection request. If wait is true it
// blocks until the collector has completed a cycle that started at or
// after the request; concurrent requests while a cycle is already in
// flight coalesce into at most one follow-up cycle.
func (sp *Safepoint) RequestCollection(wait bool) {
	sp.mu.Lock()
	sp.requestCount++
	sp.goCond.Signal()
	if wait {
		target := sp.requestCount
		// A mutator inside managed code counts as parked while it waits,
		// so the cycle it asked for can stop the world; it stays parked
		// until the world is running again.
		managed := sp.depth() > 0
		if managed {
			sp.parked++
			sp.stopCond.Signal()
		}
		for (sp.requestCount >= target && sp.collectorOn) || (managed && sp.worldStopped) {
			sp.doneCond.Wait()
		}
		if managed {
			sp.parked--
		}
	}
	sp.mu.Unlock()
}

// requestShutdown marks the collector loop to run its final cycles and
// exit, then wakes it.
func (sp *Safepoint) requestShutdown() {
	sp.mu.Lock()
	sp.shouldQuit = true
	sp.goCond.Signal()
	sp.mu.Unlock()
}

// runCollectorLoop is the body of the dedicated collector goroutine
// (§4.8's four-phase handshake). It returns once a shutdown request
// has been drained.
func (sp *Safepoint) runCollectorLoop() {
	sp.isCollector.Set(true)

	sp.mu.Lock()
	sp.collectorOn = true
	sp.mu.Unlock()

	for {
		sp.mu.Lock()
		for sp.requestCount == 0 && !sp.shouldQuit {
			sp.goCond.Wait()
		}
		quit := sp.shouldQuit
		// Claim the pending requests for this cycle; any request that
		// arrives while it runs keeps requestCount above zero and gets
		// one follow-up cycle.
		sp.requestCount = 0
		sp.mu.Unlock()

		sp.threadSetMu.Lock()
		sp.stopTheWorld()
		sp.rt.runCollectionCycle()
		sp.startTheWorld()
		sp.threadSetMu.Unlock()

		if quit {
			sp.threadSetMu.Lock()
			sp.stopTheWorld()
			sp.rt.runCollectionCycle()
			sp.startTheWorld()
			sp.stopTheWorld()
			sp.rt.runCollectionCycle()
			sp.startTheWorld()
			sp.threadSetMu.Unlock()
			sp.rt.freeAll()
			sp.mu.Lock()
			sp.collectorOn = false
			sp.doneCond.Broadcast()
			sp.mu.Unlock()
			return
		}
	}
}

func (sp *Safepoint) stopTheWorld() {
	sp.mu.Lock()
	sp.worldStopped = true
	for sp.parked < sp.liveMutators {
		sp.stopCond.Wait()
	}
	sp.mu.Unlock()
}

func (sp *Safepoint) startTheWorld() {
	sp.mu.Lock()
	sp.worldStopped = false
	sp.worldCond.Broadcast()
	sp.doneCond.Broadcast()
	sp.mu.Unlock()
}

// LiveMutators reports the current count of registered mutators.
func (sp *Safepoint) LiveMutators() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.liveMutators
}

// Parked reports how many mutators are currently parked, for tests
// observing the handshake (scenario 4 in §8).
func (sp *Safepoint) Parked() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.parked
}
