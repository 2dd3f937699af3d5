// Copyright (C) 2026 mps authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import "github.com/srdqty/mps/lib/containers"

// NodePool is the fixed-size allocator that hands out Block cells. Its
// only failure mode is exhaustion (Alloc returning ok=false); any other
// failure is a bug in the implementation, not a condition the CBS
// recovers from. Allocation must never be satisfied from the emergency
// reservoir — that would defeat the point of having one.
//
// This is deliberately a narrow interface: per spec.md §1, the node pool
// itself is an external collaborator, and only this interface to it
// matters to the CBS engine.
type NodePool interface {
	Alloc() (*Block, bool)
	Free(*Block)
}

// BoundedPool is a NodePool with a fixed cell capacity, modelling an MFS
// (fixed-size) pool class backed by a handful of preallocated spans: once
// `capacity` cells are live at once, further allocation fails until one is
// freed.
//
// Freed cells are kept on a recycle list (newest-freed-first) rather than
// being handed back to the Go runtime's allocator, the same way a real
// fixed-size-cell pool keeps freed cells on a free list instead of
// returning the backing span.
type BoundedPool struct {
	capacity int
	live     int
	free     containers.LinkedList[*Block]
}

var _ NodePool = (*BoundedPool)(nil)

// NewBoundedPool returns a NodePool that can have at most capacity cells
// live simultaneously. A capacity of 0 means unbounded.
func NewBoundedPool(capacity int) *BoundedPool {
	return &BoundedPool{capacity: capacity}
}

func (p *BoundedPool) Alloc() (*Block, bool) {
	if !p.free.IsEmpty() {
		entry := p.free.Newest
		block := entry.Value
		p.free.Delete(entry)
		p.live++
		return block, true
	}
	if p.capacity > 0 && p.live >= p.capacity {
		return nil, false
	}
	p.live++
	return &Block{}, true
}

func (p *BoundedPool) Free(b *Block) {
	*b = Block{}
	p.live--
	p.free.Store(&containers.LinkedListEntry[*Block]{Value: b})
}

// Live reports the number of cells currently allocated (not on the free
// list).
func (p *BoundedPool) Live() int { return p.live }
