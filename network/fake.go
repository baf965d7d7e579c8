package network

import "container/heap"

// FakeNetwork is a Network stepped synchronously by the caller instead
// of by a background Run goroutine: no goroutines, no wall-clock
// sleeps, no nondeterminism beyond whatever seed its rng was given.
// Grounded in the reference implementation's fake_network test harness,
// which exists specifically so protocol tests can single-step a node's
// timer queue instead of racing a real clock.
type FakeNetwork struct {
	*Network
}

// NewFake builds a FakeNetwork. By default it is fully reliable (no
// simulated drops); pass WithDropProbability to exercise loss handling
// deterministically under a fixed WithSeed.
func NewFake(opts ...Option) *FakeNetwork {
	base := []Option{WithRealtime(false), WithDropProbability(0)}
	n := New(append(base, opts...)...)
	return &FakeNetwork{Network: n}
}

// Tick runs every currently pending operation or, if there are none,
// the next due timer/delivery, and reports whether it found anything
// to do.
func (f *FakeNetwork) Tick() bool {
	if ops := f.drainPending(); len(ops) > 0 {
		for _, op := range ops {
			op()
		}
		return true
	}

	f.mu.Lock()
	if len(f.timers) == 0 {
		f.mu.Unlock()
		return false
	}
	t := heap.Pop(&f.timers).(*Timer)
	f.now = t.Expires
	cancelled := t.Cancelled
	nodeExists := true
	if t.Address != "" {
		_, nodeExists = f.nodes[t.Address]
	}
	f.mu.Unlock()

	if cancelled {
		f.stats.TimerCancelled()
		return true
	}
	if !nodeExists {
		return true
	}
	f.stats.TimerFired()
	t.Callback()
	return true
}

// RunUntilIdle ticks until nothing is pending or scheduled, or maxSteps
// is hit - a guard against a test accidentally looping a role that
// never stops retransmitting.
func (f *FakeNetwork) RunUntilIdle(maxSteps int) {
	for i := 0; i < maxSteps; i++ {
		if !f.Tick() {
			return
		}
	}
}
