package gfxtrack

import (
	"fmt"
)

// Allocation is a placed range inside a heap.
type Allocation struct {
	Offset uint64
	Size   uint64
}

func (a *Allocation) String() string {
	return fmt.Sprintf("[%d %d]", a.Offset, a.Size)
}

// IAllocator decides where inside a heap a resource lands. Placement policy
// is a collaborator concern: heaps accept any implementation and only use
// the returned offsets. FirstFitAllocator is the in-package default.
type IAllocator interface {
	Free(a *Allocation)
	Allocate(size uint64, align uint64) *Allocation
}

// FirstFitAllocator hands out the first free range large enough for a
// request, keeping live allocations sorted by offset. Returns nil when no
// range fits.
type FirstFitAllocator struct {
	Size   uint64
	allocs []*Allocation
}

func makeAlignUp(a uint64, align uint64) uint64 {
	m := a % align
	if m == 0 {
		return a
	}
	a = (a - m) + align
	return a
}

func (p *FirstFitAllocator) Free(fa *Allocation) {
	fi := -1
	for i, a := range p.allocs {
		if a == fa {
			fi = i
		}
	}
	if fi != -1 {
		p.allocs = append(p.allocs[:fi], p.allocs[fi+1:]...)
	}
}

func (p *FirstFitAllocator) Allocate(size uint64, align uint64) *Allocation {
	if align == 0 {
		align = 1
	}
	if len(p.allocs) == 0 {
		if size <= p.Size {
			na := &Allocation{Offset: 0, Size: size}
			p.allocs = append(p.allocs, na)
			return na
		}
		// This heap isn't large enough
		return nil
	}

	// We can insert at the head of the block
	if p.allocs[0].Offset >= size {
		na := &Allocation{Offset: 0, Size: size}
		p.allocs = append([]*Allocation{na}, p.allocs...)
		return na
	}

	for i := 0; i < len(p.allocs); i++ {
		c := p.allocs[i]
		if i+1 < len(p.allocs) {
			n := p.allocs[i+1]

			l := makeAlignUp(c.Offset+c.Size, align)
			h := n.Offset

			if h > l && h-l >= size {
				// Found an inter alloc allocation
				na := &Allocation{Offset: l, Size: size}
				p.allocs = append(p.allocs[:i+1], append([]*Allocation{na}, p.allocs[i+1:]...)...)
				return na
			}
		}
	}

	l := p.allocs[len(p.allocs)-1]
	nl := makeAlignUp(l.Offset+l.Size, align)
	if p.Size >= nl && p.Size-nl >= size {
		// Can we allocate from here to the end?
		na := &Allocation{Offset: nl, Size: size}
		p.allocs = append(p.allocs, na)
		return na
	}
	return nil
}

func (p *FirstFitAllocator) String() string {
	return fmt.Sprintf("%v", p.allocs)
}
