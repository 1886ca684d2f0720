//go:build unix

package page

import (
	"golang.org/x/sys/unix"

	"github.com/tinyvisor/kheap/internal/format"
)

// mmapSource acquires pages as anonymous private mappings. The kernel
// guarantees page alignment, which the slab layer depends on to recover a
// slab from any interior slot address.
type mmapSource struct{}

// NewSource returns the platform page source.
func NewSource() Source {
	return mmapSource{}
}

func (mmapSource) Acquire(npages int) (Page, bool) {
	if npages < 1 {
		return Page{}, false
	}
	data, err := unix.Mmap(
		-1, 0,
		npages*format.PageSize,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE,
	)
	if err != nil {
		return Page{}, false
	}
	return Page{data: data}, true
}

func (mmapSource) Release(p Page) {
	// Unmap failure here means the run was never ours; nothing to recover.
	_ = unix.Munmap(p.data)
}
