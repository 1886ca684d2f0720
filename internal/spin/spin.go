// Package spin provides the busy-wait lock guarding slab and early-heap
// free-list mutation. Lock never sleeps and never parks the calling
// goroutine.
package spin

import (
	"runtime"
	"sync/atomic"
)

// Lock is a spin lock with an acquisition counter. The zero value is
// unlocked. Lock must not be copied after first use.
type Lock struct {
	state    atomic.Uint32
	acquired atomic.Uint64
}

// Lock busy-waits until the lock is acquired.
func (l *Lock) Lock() {
	for !l.state.CompareAndSwap(0, 1) {
		runtime.Gosched()
	}
	l.acquired.Add(1)
}

// TryLock acquires the lock without waiting, reporting whether it
// succeeded.
func (l *Lock) TryLock() bool {
	if !l.state.CompareAndSwap(0, 1) {
		return false
	}
	l.acquired.Add(1)
	return true
}

// Unlock releases the lock. Unlocking an unheld lock is a fatal usage
// error.
func (l *Lock) Unlock() {
	if !l.state.CompareAndSwap(1, 0) {
		panic("spin: unlock of unlocked lock")
	}
}

// Acquisitions returns how many times the lock has been taken. Lock-free
// fast paths are verified against this counter.
func (l *Lock) Acquisitions() uint64 {
	return l.acquired.Load()
}
