package heap

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyvisor/kheap/cpu"
	"github.com/tinyvisor/kheap/heap/cache"
	"github.com/tinyvisor/kheap/heap/page"
	"github.com/tinyvisor/kheap/internal/format"
)

// newTestHeap builds a heap over a fresh page source with a small bootstrap
// region so exhaustion is cheap to reach.
func newTestHeap(t *testing.T, earlyPages int) *Heap {
	t.Helper()
	return New(Options{
		Pages:      page.NewSource(),
		Topology:   cpu.NewTopology(2),
		EarlyPages: earlyPages,
	})
}

func injectSingle(t *testing.T, h *Heap) {
	t.Helper()
	set, ok := cache.NewSingleSet(h.pages)
	require.True(t, ok, "building the strategy set should not exhaust a fresh source")
	h.Inject(set)
}

func TestHeapBootstrapServesFromEarlyRegion(t *testing.T) {
	h := newTestHeap(t, 4)

	p, err := h.Alloc(48, 8)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, h.early.Contains(p), "bootstrap allocations come from the early region")
	assert.False(t, h.Operational())

	h.Free(p, 48, 8)
}

func TestHeapBootstrapExhaustionFails(t *testing.T) {
	h := newTestHeap(t, 1)

	// One page of 2048-byte slots holds exactly two.
	a, err := h.Alloc(2048, 8)
	require.NoError(t, err)
	b, err := h.Alloc(2048, 8)
	require.NoError(t, err)

	_, err = h.Alloc(2048, 8)
	require.ErrorIs(t, err, ErrNoSpace)

	// Frees keep working after exhaustion.
	h.Free(a, 2048, 8)
	h.Free(b, 2048, 8)
	c, err := h.Alloc(2048, 8)
	require.NoError(t, err)
	assert.True(t, h.early.Contains(c))
}

func TestHeapInjectSwitchesToStrategies(t *testing.T) {
	h := newTestHeap(t, 1)

	pre, err := h.Alloc(64, 8)
	require.NoError(t, err)
	require.True(t, h.early.Contains(pre))

	injectSingle(t, h)
	require.True(t, h.Operational())

	post, err := h.Alloc(64, 8)
	require.NoError(t, err)
	assert.False(t, h.early.Contains(post), "operational allocations come from slabs")

	// Bootstrap-era pointers stay freeable through the early path.
	h.Free(pre, 64, 8)
	h.Free(post, 64, 8)
}

func TestHeapInjectRejectsIncompleteSet(t *testing.T) {
	h := newTestHeap(t, 1)
	set, ok := cache.NewSingleSet(h.pages)
	require.True(t, ok)
	set[3] = nil

	assert.Panics(t, func() { h.Inject(set) })
}

func TestHeapInjectIsOneShot(t *testing.T) {
	h := newTestHeap(t, 1)
	injectSingle(t, h)

	set, ok := cache.NewSingleSet(h.pages)
	require.True(t, ok)
	assert.Panics(t, func() { h.Inject(set) })
}

func TestHeapOversizedUsesPageRuns(t *testing.T) {
	src := page.Limited(page.NewSource(), 4)
	h := New(Options{Pages: src, Topology: cpu.NewTopology(1), EarlyPages: 1})

	// 5000 bytes rounds up to a two-page run.
	p, err := h.Alloc(5000, 8)
	require.NoError(t, err)
	require.True(t, format.IsAligned(uintptr(p), format.PageSize))

	// With two pages out, a three-page run cannot fit under the four-page
	// cap.
	_, err = h.Alloc(3*format.PageSize, 8)
	require.ErrorIs(t, err, ErrNoSpace)

	h.Free(p, 5000, 8)
	q, err := h.Alloc(3*format.PageSize, 8)
	require.NoError(t, err)
	h.Free(q, 3*format.PageSize, 8)

	// The smallest oversized request occupies exactly one page.
	r, err := h.Alloc(format.MaxSlotSize+1, 8)
	require.NoError(t, err)
	h.Free(r, format.MaxSlotSize+1, 8)
}

func TestHeapAlignment(t *testing.T) {
	h := newTestHeap(t, 2)

	p, err := h.Alloc(64, 64)
	require.NoError(t, err)
	assert.True(t, format.IsAligned(uintptr(p), 64))
	h.Free(p, 64, 64)

	// A 16-byte slot cannot carry 64-byte alignment.
	assert.Panics(t, func() { _, _ = h.Alloc(16, 64) })

	assert.Panics(t, func() { _, _ = h.Alloc(64, 3) })
}

func TestHeapZeroSizeAllocates(t *testing.T) {
	h := newTestHeap(t, 1)

	p, err := h.Alloc(0, 0)
	require.NoError(t, err)
	require.NotNil(t, p)
	h.Free(p, 0, 0)
}

func TestHeapFreePanicsOnForeignPointer(t *testing.T) {
	h := newTestHeap(t, 1)
	injectSingle(t, h)

	var local int64
	assert.Panics(t, func() { h.Free(unsafe.Pointer(&local), 8, 8) })
	assert.Panics(t, func() { h.Free(nil, 8, 8) })
}

func TestHeapStats(t *testing.T) {
	h := newTestHeap(t, 1)

	p, err := h.Alloc(32, 8)
	require.NoError(t, err)
	h.Free(p, 32, 8)

	injectSingle(t, h)
	q, err := h.Alloc(32, 8)
	require.NoError(t, err)
	h.Free(q, 32, 8)

	r, err := h.Alloc(3*format.PageSize, 8)
	require.NoError(t, err)
	h.Free(r, 3*format.PageSize, 8)

	st := h.Stats()
	assert.Equal(t, uint64(3), st.AllocCalls)
	assert.Equal(t, uint64(3), st.FreeCalls)
	assert.Equal(t, uint64(1), st.EarlyServe)
	assert.Equal(t, uint64(1), st.SlabServe)
	assert.Equal(t, uint64(1), st.PageServe)
	assert.Equal(t, uint64(0), st.Failures)
}

func TestHeapConcurrentLockless(t *testing.T) {
	const workers = 4
	h := New(Options{
		Pages:      page.NewSource(),
		Topology:   cpu.NewTopology(workers),
		EarlyPages: 1,
	})
	set, ok := cache.NewLocklessSet(h.pages, workers)
	require.True(t, ok)
	h.Inject(set)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ptrs := make([]unsafe.Pointer, 0, 8)
			for i := 0; i < 2000; i++ {
				p, err := h.Alloc(48, 8)
				assert.NoError(t, err)
				ptrs = append(ptrs, p)
				if len(ptrs) == cap(ptrs) {
					for _, q := range ptrs {
						h.Free(q, 48, 8)
					}
					ptrs = ptrs[:0]
				}
			}
			for _, q := range ptrs {
				h.Free(q, 48, 8)
			}
		}()
	}
	wg.Wait()

	st := h.Stats()
	assert.Equal(t, st.AllocCalls, st.FreeCalls)
	assert.Equal(t, uint64(0), st.Failures)
}

func TestDefaultHeapIsStable(t *testing.T) {
	a := Default()
	b := Default()
	require.Same(t, a, b)

	p, err := a.Alloc(128, 8)
	require.NoError(t, err)
	a.Free(p, 128, 8)
}
