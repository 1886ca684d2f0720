package cpu

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTopology_Invalid(t *testing.T) {
	require.Panics(t, func() { NewTopology(0) })
	require.Panics(t, func() { NewTopology(-1) })
}

func TestPin_ClaimsDistinctCPUs(t *testing.T) {
	topo := NewTopology(4)

	seen := make(map[ID]bool)
	var toks []Token
	for range 4 {
		tok := topo.Pin()
		require.False(t, seen[tok.CPU()], "CPU %d claimed twice", tok.CPU())
		seen[tok.CPU()] = true
		toks = append(toks, tok)
	}
	assert.Len(t, seen, 4, "all CPUs should be claimed")

	for _, tok := range toks {
		tok.Unpin()
	}
}

func TestPinTo_Waits(t *testing.T) {
	topo := NewTopology(2)

	tok := topo.PinTo(1)
	assert.Equal(t, ID(1), tok.CPU())

	released := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Blocks until the first claim is released.
		tok2 := topo.PinTo(1)
		<-released
		tok2.Unpin()
	}()

	tok.Unpin()
	close(released)
	wg.Wait()
}

func TestPinTo_OutOfRange(t *testing.T) {
	topo := NewTopology(2)
	require.Panics(t, func() { topo.PinTo(2) })
	require.Panics(t, func() { topo.PinTo(-1) })
}

func TestToken_ZeroValueFatal(t *testing.T) {
	var tok Token
	require.Panics(t, func() { tok.CPU() })
	require.Panics(t, func() { tok.Unpin() })
}

func TestToken_DoubleUnpin(t *testing.T) {
	topo := NewTopology(1)
	tok := topo.Pin()
	tok.Unpin()
	require.Panics(t, func() { tok.Unpin() })
}

func TestCurrentCPUHint_InRange(t *testing.T) {
	// The hint is -1 where the platform cannot say, otherwise a real CPU
	// number. Either way Pin must tolerate it.
	hint := currentCPUHint()
	assert.GreaterOrEqual(t, hint, -1)

	topo := NewTopology(1)
	tok := topo.Pin()
	assert.Equal(t, ID(0), tok.CPU())
	tok.Unpin()
}

func TestMachine_Stable(t *testing.T) {
	first := Machine()
	second := Machine()
	assert.Same(t, first, second)
	assert.GreaterOrEqual(t, first.Count(), 1)
}

func TestPin_Concurrent(t *testing.T) {
	topo := NewTopology(3)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				tok := topo.Pin()
				require.Less(t, int(tok.CPU()), 3)
				tok.Unpin()
			}
		}()
	}
	wg.Wait()

	// All claims must be released.
	for i := range 3 {
		tok := topo.PinTo(ID(i))
		tok.Unpin()
	}
}
