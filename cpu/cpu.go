// Package cpu models the CPU identity and pinning primitives the heap's
// per-CPU slot caches are built on.
//
// A Topology is a fixed set of virtual CPUs. Pinning claims exclusive
// ownership of one of them for the lifetime of the returned Token: while a
// token for CPU i is held, no other context can operate as CPU i. Holding a
// token therefore carries the same guarantee that pinning a kernel thread
// and masking local interrupts does: unsynchronized per-CPU state keyed by
// the token's CPU can be touched without locks.
package cpu

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// ID identifies one CPU within a Topology. Valid values are in
// [0, Topology.Count()) and are stable for the topology's lifetime.
type ID int

// Topology is a fixed-size set of claimable virtual CPUs.
type Topology struct {
	claims []atomic.Uint32
}

// NewTopology creates a topology with n CPUs. It panics if n < 1.
func NewTopology(n int) *Topology {
	if n < 1 {
		panic(fmt.Errorf("cpu: topology needs at least one CPU, got %d", n))
	}
	return &Topology{claims: make([]atomic.Uint32, n)}
}

var (
	machineOnce sync.Once
	machine     *Topology
)

// Machine returns the process-wide topology, sized to runtime.NumCPU() at
// first use and stable afterwards.
func Machine() *Topology {
	machineOnce.Do(func() {
		machine = NewTopology(runtime.NumCPU())
	})
	return machine
}

// Count returns the number of CPUs in the topology.
func (t *Topology) Count() int {
	return len(t.claims)
}

// Pin claims a CPU and returns the token that proves exclusive ownership of
// it. The OS-reported current CPU is used as a placement hint where
// available; if that CPU is already claimed, Pin sweeps the remaining CPUs
// and busy-waits until one frees up. Pin never sleeps.
func (t *Topology) Pin() Token {
	start := currentCPUHint()
	n := len(t.claims)
	if start < 0 || start >= n {
		start = 0
	}
	for i := 0; ; i++ {
		id := (start + i) % n
		if t.claims[id].CompareAndSwap(0, 1) {
			return Token{topo: t, id: ID(id)}
		}
		if i > 0 && i%n == 0 {
			runtime.Gosched()
		}
	}
}

// PinTo claims the specific CPU id, busy-waiting until it is free. It
// panics if id is out of range. PinTo exists for callers that must act as a
// particular CPU, such as tests exercising cross-CPU behavior.
func (t *Topology) PinTo(id ID) Token {
	if int(id) < 0 || int(id) >= len(t.claims) {
		panic(fmt.Errorf("cpu: id %d out of range [0, %d)", id, len(t.claims)))
	}
	for !t.claims[id].CompareAndSwap(0, 1) {
		runtime.Gosched()
	}
	return Token{topo: t, id: id}
}

// Token is the capability returned by Pin. It proves that its holder owns
// the claimed CPU exclusively. The zero Token is invalid; passing it to any
// operation that touches per-CPU state is a fatal usage error.
type Token struct {
	topo *Topology
	id   ID
}

// CPU returns the claimed CPU's identifier. It panics on a zero Token.
func (tok Token) CPU() ID {
	if tok.topo == nil {
		panic("cpu: use of zero Token")
	}
	return tok.id
}

// Unpin releases the claim. The token must not be used afterwards.
func (tok Token) Unpin() {
	if tok.topo == nil {
		panic("cpu: unpin of zero Token")
	}
	if !tok.topo.claims[tok.id].CompareAndSwap(1, 0) {
		panic(fmt.Errorf("cpu: double unpin of CPU %d", tok.id))
	}
}
