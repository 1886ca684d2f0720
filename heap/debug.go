package heap

import (
	"fmt"
	"os"
)

// Compile-time switch for periodic counter dumps on the hot path.
const debugAlloc = false

// Runtime debug flag for allocation logging, controlled by the
// KHEAP_LOG_ALLOC env var.
var logAlloc = os.Getenv("KHEAP_LOG_ALLOC") != ""

func debugLogf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[kheap] "+format+"\n", args...)
}

func (h *Heap) dumpStats() {
	st := h.Stats()
	debugLogf("allocs=%d frees=%d early=%d slab=%d pages=%d failures=%d",
		st.AllocCalls, st.FreeCalls, st.EarlyServe, st.SlabServe, st.PageServe, st.Failures)
}
