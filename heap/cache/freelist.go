package cache

import "github.com/tinyvisor/kheap/heap/slab"

// freeList is an intrusive, unsynchronized singly-linked list of
// already-freed slots, threaded through the slots' own memory. It is always
// disjoint from the owning slab's free list: a slot sitting here is still
// "used" from the slab's point of view.
//
// No synchronization on purpose. A freeList belongs to one CPU and is only
// touched by the context holding that CPU's pin token.
type freeList struct {
	head slab.Slot
	has  bool
	n    int
}

func (l *freeList) push(s slab.Slot) {
	if l.has {
		s.SetNext(l.head)
	} else {
		s.ClearNext()
	}
	l.head = s
	l.has = true
	l.n++
}

func (l *freeList) pop() (slab.Slot, bool) {
	if !l.has {
		return slab.Slot{}, false
	}
	s := l.head
	l.head, l.has = s.Next()
	l.n--
	return s, true
}

func (l *freeList) len() int {
	return l.n
}
