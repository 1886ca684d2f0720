// Package page supplies raw, page-aligned memory to the heap. It is the
// boundary to the machine's page-granularity allocator: slabs draw single
// pages from a Source, and allocations too large for any slab slot draw
// whole page runs.
package page

import (
	"sync/atomic"
	"unsafe"

	"github.com/tinyvisor/kheap/internal/format"
)

// Page is a run of one or more contiguous, page-aligned pages.
type Page struct {
	data []byte
}

// Base returns the page run's starting address.
func (p Page) Base() unsafe.Pointer {
	return unsafe.Pointer(&p.data[0])
}

// Bytes returns the page run's full span.
func (p Page) Bytes() []byte {
	return p.data
}

// Pages returns the number of pages in the run.
func (p Page) Pages() int {
	return len(p.data) / format.PageSize
}

// FromRaw reconstructs a Page from an address previously returned by
// Base(). The caller must supply the same page count the run was acquired
// with.
func FromRaw(ptr unsafe.Pointer, npages int) Page {
	return Page{data: unsafe.Slice((*byte)(ptr), npages*format.PageSize)}
}

// Source hands out and takes back page runs.
//
// Acquire returns false when no memory is available; that is an ordinary
// allocation failure, never a panic. Release returns a run acquired from
// the same source.
type Source interface {
	Acquire(npages int) (Page, bool)
	Release(p Page)
}

// limited caps the number of pages outstanding from an underlying source.
// Used to exercise allocation-failure paths deterministically.
type limited struct {
	src Source
	max int64
	out atomic.Int64
}

// Limited wraps src so that at most maxPages pages are outstanding at once.
func Limited(src Source, maxPages int) Source {
	return &limited{src: src, max: int64(maxPages)}
}

func (l *limited) Acquire(npages int) (Page, bool) {
	if l.out.Add(int64(npages)) > l.max {
		l.out.Add(int64(-npages))
		return Page{}, false
	}
	p, ok := l.src.Acquire(npages)
	if !ok {
		l.out.Add(int64(-npages))
	}
	return p, ok
}

func (l *limited) Release(p Page) {
	l.src.Release(p)
	l.out.Add(int64(-p.Pages()))
}
