//go:build !unix

package page

import (
	"sync"
	"unsafe"

	"github.com/tinyvisor/kheap/internal/format"
)

// sliceSource backs page runs with over-allocated Go slices when mmap is
// not available, aligning the handed-out span to a page boundary. Backing
// arrays are pinned in the live table so that runs reconstructed via
// FromRaw stay valid until released.
type sliceSource struct {
	mu   sync.Mutex
	live map[uintptr][]byte
}

// NewSource returns the platform page source.
func NewSource() Source {
	return &sliceSource{live: make(map[uintptr][]byte)}
}

func (s *sliceSource) Acquire(npages int) (Page, bool) {
	if npages < 1 {
		return Page{}, false
	}
	span := npages * format.PageSize
	backing := make([]byte, span+format.PageSize)

	addr := uintptr(unsafe.Pointer(&backing[0]))
	off := int(format.AlignUp(addr, format.PageSize) - addr)
	data := backing[off : off+span : off+span]

	s.mu.Lock()
	s.live[uintptr(unsafe.Pointer(&data[0]))] = backing
	s.mu.Unlock()

	return Page{data: data}, true
}

func (s *sliceSource) Release(p Page) {
	s.mu.Lock()
	delete(s.live, uintptr(p.Base()))
	s.mu.Unlock()
}
