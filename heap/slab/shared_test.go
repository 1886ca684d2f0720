package slab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyvisor/kheap/cpu"
)

// sharedPayload plus the 16-byte control block classifies to 64-byte slots.
type sharedPayload struct {
	data [40]byte
}

func pinned(t *testing.T) cpu.Token {
	t.Helper()
	tok := cpu.NewTopology(1).Pin()
	t.Cleanup(tok.Unpin)
	return tok
}

func TestEmplaceShared_RoundTrip(t *testing.T) {
	sl := newTestSlab(t, 64)
	tok := pinned(t)

	s, ok := sl.TakeSlot()
	require.True(t, ok)

	want := sharedPayload{}
	for i := range want.data {
		want.data[i] = byte(255 - i)
	}

	sh := EmplaceShared(s, want)
	assert.Equal(t, want, *sh.Value(), "payload read back must be byte-identical")
	assert.Equal(t, uint64(1), sh.Strong())

	sh.Release(tok)
	assert.Zero(t, sl.UsedSlots(), "last release must recycle the slot to its slab")
	assertSlabInvariant(t, sl)

	// The slot is available to the same slab again.
	again, ok := sl.TakeSlot()
	require.True(t, ok)
	assert.Equal(t, s.Raw(), again.Raw())
	sl.ReturnSlot(again)
}

func TestShared_CloneKeepsSlotAlive(t *testing.T) {
	sl := newTestSlab(t, 64)
	tok := pinned(t)

	s, ok := sl.TakeSlot()
	require.True(t, ok)

	sh := EmplaceShared(s, sharedPayload{data: [40]byte{1, 2, 3}})
	clone := sh.Clone()
	assert.Equal(t, uint64(2), sh.Strong())

	sh.Release(tok)
	assert.Equal(t, 1, sl.UsedSlots(), "a live clone must keep the slot taken")
	assert.Equal(t, [40]byte{1, 2, 3}, clone.Value().data)

	clone.Release(tok)
	assert.Zero(t, sl.UsedSlots())
	assertSlabInvariant(t, sl)
}

func TestShared_SizeMismatchIsFatal(t *testing.T) {
	sl := newTestSlab(t, 64)

	s, ok := sl.TakeSlot()
	require.True(t, ok)

	// 16 header + 80 payload classifies to 128-byte slots, not 64.
	require.Panics(t, func() { EmplaceShared(s, [80]byte{}) })

	sl.ReturnSlot(s)
}

func TestShared_DoubleReleaseIsFatal(t *testing.T) {
	sl := newTestSlab(t, 64)
	tok := pinned(t)

	s, ok := sl.TakeSlot()
	require.True(t, ok)

	sh := EmplaceShared(s, sharedPayload{})
	sh.Release(tok)
	require.Panics(t, func() { sh.Release(tok) })
}

func TestWeak_UpgradeWhileStrongAlive(t *testing.T) {
	sl := newTestSlab(t, 64)
	tok := pinned(t)

	s, ok := sl.TakeSlot()
	require.True(t, ok)

	sh := EmplaceShared(s, sharedPayload{data: [40]byte{9}})
	weak := sh.Downgrade()

	up, ok := weak.Upgrade()
	require.True(t, ok, "upgrade must succeed while a strong reference lives")
	assert.Equal(t, byte(9), up.Value().data[0])

	up.Release(tok)
	sh.Release(tok)

	// Payload is dead, but the weak reference still pins the slot.
	assert.Equal(t, 1, sl.UsedSlots())

	_, ok = weak.Upgrade()
	assert.False(t, ok, "upgrade must fail after the last strong release")

	weak.Release(tok)
	assert.Zero(t, sl.UsedSlots(), "dropping the last weak reference recycles the slot")
	assertSlabInvariant(t, sl)
}
