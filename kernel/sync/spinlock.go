// Package sync provides a spinlock for serializing access to the few pieces
// of state (such as the console output sink) that may be touched by more than
// one execution context.
package sync

import "sync/atomic"

var (
	// yieldFn is invoked after a failed burst of acquisition attempts. It
	// stays nil until context switching exists; tests point it to
	// runtime.Gosched.
	yieldFn func()
)

// attemptsBeforeYielding is the number of times Acquire polls a held lock
// before calling yieldFn.
const attemptsBeforeYielding = 100

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	acquireSpinlock(&l.state, attemptsBeforeYielding)
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

func acquireSpinlock(state *uint32, attempts uint32) {
	for {
		if atomic.SwapUint32(state, 1) == 0 {
			return
		}

		// Poll with plain loads so the cache line is not bounced
		// between cores while the lock is held.
		for i := uint32(0); i < attempts && atomic.LoadUint32(state) != 0; i++ {
		}

		if yieldFn != nil {
			yieldFn()
		}
	}
}
