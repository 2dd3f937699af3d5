// Copyright (C) 2026 mps authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package cbs implements a Coalescing Block Structure: an ordered index of
// disjoint, half-open address ranges that merges adjacent ranges as they
// are inserted, falls back to writing its own bookkeeping inside the
// tracked memory when its node pool is exhausted, and notifies a client
// when a range's size crosses a configured threshold.
package cbs

import (
	"fmt"

	"github.com/srdqty/mps/lib/containers"
)

// Config configures a CBS at construction. Pool is required; Mem is
// required iff MayUseInline is set.
type Config struct {
	// Pool furnishes and reclaims Block cells for the index. Required.
	Pool NodePool
	// Mem lets the CBS read and write emergency-list records directly
	// into tracked memory. Required iff MayUseInline.
	Mem Memory
	// Hooks are the client's optional size-threshold callbacks.
	Hooks Hooks
	// MinSize is the threshold at and above which a block is
	// "interesting" and hooks fire.
	MinSize Size
	// Alignment is the grain size: every range's base and limit must
	// be a multiple of it.
	Alignment Size
	// MayUseInline enables the emergency fallback lists.
	MayUseInline bool
	// FastFind enables the maxSize augmentation and FindFirst/FindLast.
	FastFind bool
	// Reserved lists ranges Insert must never be asked to cover; see
	// reserved.go.
	Reserved []Range
}

// CBS is a Coalescing Block Structure instance. The zero value is not
// usable; construct one with New.
type CBS struct {
	cfg   Config
	pool  NodePool
	mem   Memory
	hooks Hooks
	ix    index

	emergencyBlockHead Addr
	emergencyGrainHead Addr

	reserved       containers.IntervalTree[Addr, Range]
	reservedRanges []Range

	inCBS bool
}

// New constructs a CBS from cfg. It returns an error (never panics) if the
// configuration violates the constraints in spec §6.3.
func New(cfg Config) (*CBS, error) {
	if cfg.Pool == nil {
		return nil, fmt.Errorf("cbs: New: Pool is required")
	}
	if cfg.Alignment == 0 || (cfg.Alignment&(cfg.Alignment-1)) != 0 {
		return nil, fmt.Errorf("cbs: New: Alignment %v is not a power of two", cfg.Alignment)
	}
	if cfg.MayUseInline {
		if cfg.Mem == nil {
			return nil, fmt.Errorf("cbs: New: MayUseInline requires Mem")
		}
		if cfg.Alignment < emergencyGrainSize {
			return nil, fmt.Errorf("cbs: New: MayUseInline requires Alignment >= %v, got %v", emergencyGrainSize, cfg.Alignment)
		}
		if 2*emergencyGrainSize > emergencyBlockSize {
			return nil, fmt.Errorf("cbs: New: internal record layout violates 2*sizeof(Grain) <= sizeof(Block)")
		}
	}

	c := &CBS{
		cfg:                cfg,
		pool:               cfg.Pool,
		mem:                cfg.Mem,
		hooks:              cfg.Hooks,
		ix:                 index{fastFind: cfg.FastFind},
		emergencyBlockHead: NoAddr,
		emergencyGrainHead: NoAddr,
	}
	c.reserved.MinFn = func(r Range) Addr { return r.Base }
	c.reserved.MaxFn = func(r Range) Addr { return r.Limit - 1 }
	for _, r := range cfg.Reserved {
		c.reserved.Insert(r)
		c.reservedRanges = append(c.reservedRanges, r)
	}
	return c, nil
}

// Finish releases the CBS's hold on its collaborators. It does not touch
// the memory the CBS was tracking; that remains the client's concern.
func (c *CBS) Finish() {
	c.enter("Finish")
	defer c.leave()
	c.ix = index{}
	c.emergencyBlockHead = NoAddr
	c.emergencyGrainHead = NoAddr
}

func (c *CBS) enter(op string) {
	if c.inCBS {
		panic(fmt.Errorf("cbs: %s: re-entrant call into a CBS instance", op))
	}
	c.inCBS = true
}

func (c *CBS) leave() {
	if !c.inCBS {
		panic(fmt.Errorf("cbs: leave called without a matching enter"))
	}
	c.inCBS = false
}

func (c *CBS) checkAligned(op string, r Range) {
	if r.Base >= r.Limit {
		panic(fmt.Errorf("cbs: %s: range %v has base >= limit", op, r))
	}
	if uint64(r.Base)%uint64(c.cfg.Alignment) != 0 || uint64(r.Limit)%uint64(c.cfg.Alignment) != 0 {
		panic(fmt.Errorf("cbs: %s: range %v is not aligned to %v", op, r, c.cfg.Alignment))
	}
}

// Insert adds [base,limit) as free (or otherwise tracked) address space,
// coalescing with any adjacent range already present.
func (c *CBS) Insert(base, limit Addr) Result {
	c.enter("Insert")
	defer c.leave()

	r := Range{Base: base, Limit: limit}
	c.checkAligned("Insert", r)
	if c.reserved.OverlapsAny(r.Base, r.Limit-1) {
		return Conflict
	}

	if c.cfg.MayUseInline {
		r = c.coalesceWithEmergency(r)
	}

	result := c.insertIntoTree(r)
	switch result {
	case AllocFail:
		if c.cfg.MayUseInline {
			c.addEmergency(r)
			return OK
		}
		return AllocFail
	case OK:
		if c.cfg.MayUseInline {
			c.flushEmergency()
		}
		return OK
	default:
		return result
	}
}

// insertIntoTree performs the coalescing insert against the index alone
// (no emergency-list interaction). It is also the engine used by
// flushEmergency to promote emergency ranges back into the tree.
func (c *CBS) insertIntoTree(r Range) Result {
	left, right, conflict := c.ix.neighbours(r.Base)
	if conflict {
		return Conflict
	}
	if right != nil && r.Limit > right.base {
		return Conflict
	}

	leftMerge := left != nil && left.limit == r.Base
	rightMerge := right != nil && right.base == r.Limit

	switch {
	case leftMerge && rightMerge:
		survivor, absorbed := left, right
		if right.Size() > left.Size() {
			survivor, absorbed = right, left
		}
		oldSize := survivor.Size()
		absorbedSize := absorbed.Size()
		newBase, newLimit := left.base, right.limit
		c.ix.deleteNode(absorbed)
		c.hooks.notifyShrink(c, absorbed, absorbedSize, 0, c.cfg.MinSize)
		c.pool.Free(absorbed)
		survivor.base = newBase
		survivor.limit = newLimit
		c.ix.refresh(survivor)
		c.hooks.notifyGrow(c, survivor, oldSize, survivor.Size(), c.cfg.MinSize)
		return OK

	case leftMerge:
		oldSize := left.Size()
		left.limit = r.Limit
		c.ix.refresh(left)
		c.hooks.notifyGrow(c, left, oldSize, left.Size(), c.cfg.MinSize)
		return OK

	case rightMerge:
		oldSize := right.Size()
		right.base = r.Base
		c.ix.refresh(right)
		c.hooks.notifyGrow(c, right, oldSize, right.Size(), c.cfg.MinSize)
		return OK

	default:
		block, ok := c.pool.Alloc()
		if !ok {
			return AllocFail
		}
		block.base, block.limit = r.Base, r.Limit
		c.ix.insertNode(block)
		if block.Size() >= c.cfg.MinSize {
			c.hooks.fireNew(c, block, 0, block.Size())
		}
		return OK
	}
}

// Delete removes [base,limit) from the tracked free space, splitting the
// containing block as necessary.
func (c *CBS) Delete(base, limit Addr) Result {
	c.enter("Delete")
	defer c.leave()

	r := Range{Base: base, Limit: limit}
	c.checkAligned("Delete", r)

	result := c.deleteFromTree(r)
	if result == NotFound && c.cfg.MayUseInline {
		result = c.deleteFromEmergencyBlockList(r)
		if result == NotFound {
			result = c.deleteFromEmergencyGrainList(r)
		}
	}
	if c.cfg.MayUseInline {
		c.flushEmergency()
	}
	return result
}

func (c *CBS) deleteFromTree(r Range) Result {
	n := c.ix.search(r.Base)
	if n == nil {
		return NotFound
	}
	if r.Limit > n.limit {
		return Conflict
	}

	switch {
	case n.base == r.Base && n.limit == r.Limit:
		oldSize := n.Size()
		c.ix.deleteNode(n)
		c.hooks.notifyShrink(c, n, oldSize, 0, c.cfg.MinSize)
		c.pool.Free(n)
		return OK

	case n.base == r.Base:
		oldSize := n.Size()
		n.base = r.Limit
		c.ix.refresh(n)
		c.hooks.notifyShrink(c, n, oldSize, n.Size(), c.cfg.MinSize)
		return OK

	case n.limit == r.Limit:
		oldSize := n.Size()
		n.limit = r.Base
		c.ix.refresh(n)
		c.hooks.notifyShrink(c, n, oldSize, n.Size(), c.cfg.MinSize)
		return OK

	default:
		// Interior split: two residuals, [n.base,r.Base) and
		// [r.Limit,n.limit). The larger stays in n (a shrink, not a
		// delete+new); the smaller becomes a fresh node. Ties favour
		// the left residual.
		leftSize := n.base.Sub(r.Base)
		rightSize := r.Limit.Sub(n.limit)
		oldSize := n.Size()

		keepLeft := leftSize >= rightSize
		var newBase, newLimit Addr
		if keepLeft {
			newBase, newLimit = r.Limit, n.limit
			n.limit = r.Base
		} else {
			newBase, newLimit = n.base, r.Base
			n.base = r.Limit
		}
		c.ix.refresh(n)
		c.hooks.notifyShrink(c, n, oldSize, n.Size(), c.cfg.MinSize)

		block, ok := c.pool.Alloc()
		if !ok {
			// The shrink above has already happened and its hook has
			// already fired; see spec's Open Questions on this case.
			// We surface the failure as-is rather than roll back.
			return AllocFail
		}
		block.base, block.limit = newBase, newLimit
		c.ix.insertNode(block)
		if block.Size() >= c.cfg.MinSize {
			c.hooks.fireNew(c, block, 0, block.Size())
		}
		return OK
	}
}

// FindFirst returns the leftmost block whose size is at least size.
func (c *CBS) FindFirst(size Size) (found bool, r Range) {
	return c.find(size, c.ix.findFirst)
}

// FindLast returns the rightmost block whose size is at least size.
func (c *CBS) FindLast(size Size) (found bool, r Range) {
	return c.find(size, c.ix.findLast)
}

func (c *CBS) find(size Size, lookup func(Size) *Block) (bool, Range) {
	if !c.cfg.FastFind {
		panic(fmt.Errorf("cbs: find: FastFind is not enabled"))
	}
	if size == 0 {
		panic(fmt.Errorf("cbs: find: size must be > 0"))
	}
	c.enter("Find")
	defer c.leave()

	if c.cfg.MayUseInline {
		c.flushEmergency()
	}
	block := lookup(size)
	if block == nil {
		return false, Range{}
	}
	return true, block.Range()
}

// IterateAction is returned by an Iterate/IterateLarge visitor to tell the
// walk whether to keep going.
type IterateAction int

const (
	// Continue tells Iterate to visit the next block.
	Continue IterateAction = iota
	// Stop ends the walk immediately.
	Stop
)

// Iterate walks every tracked block in ascending base order, stopping
// early if visit returns Stop. Emergency ranges are not visible.
func (c *CBS) Iterate(visit func(Range) IterateAction) {
	c.enter("Iterate")
	defer c.leave()
	c.iterate(func(b *Block) IterateAction { return visit(b.Range()) })
}

// IterateLarge is like Iterate but skips blocks smaller than minSize.
func (c *CBS) IterateLarge(visit func(Range) IterateAction) {
	c.enter("IterateLarge")
	defer c.leave()
	minSize := c.cfg.MinSize
	c.iterate(func(b *Block) IterateAction {
		if b.Size() < minSize {
			return Continue
		}
		return visit(b.Range())
	})
}

func (c *CBS) iterate(visit func(*Block) IterateAction) {
	for b := c.ix.first(); b != nil; {
		next := c.ix.next(b)
		if visit(b) == Stop {
			return
		}
		b = next
	}
}

// SetMinSize changes the threshold at which blocks are "interesting",
// firing new/delete hooks for every block whose relationship to the
// threshold flips. Emergency ranges are invisible to this scan.
func (c *CBS) SetMinSize(newMin Size) {
	c.enter("SetMinSize")
	defer c.leave()

	oldMin := c.cfg.MinSize
	c.iterate(func(b *Block) IterateAction {
		size := b.Size()
		switch {
		case newMin < oldMin && size >= newMin && size < oldMin:
			c.hooks.fireNew(c, b, size, size)
		case newMin > oldMin && size >= oldMin && size < newMin:
			c.hooks.fireDelete(c, b, size, size)
		}
		return Continue
	})
	c.cfg.MinSize = newMin
}
