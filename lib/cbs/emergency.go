// Copyright (C) 2026 mps authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import "fmt"

// Memory is the host arena's view onto the address space a CBS tracks:
// just enough to let the CBS write and read the emergency-list records it
// overlays onto free ranges when the node pool is exhausted. A caller
// that never sets MayUseInline never needs one.
//
// This narrow interface is deliberate: per spec.md's Design Notes, the
// "write bookkeeping inside the very memory being freed" trick is
// isolated to this one seam, expressed as explicit reads and writes of a
// byte layout rather than an unchecked pointer cast, so the rest of the
// engine never has to reason about aliasing between a Block's Go struct
// and the bytes backing an emergency record.
type Memory interface {
	// WriteEmergencyBlock stores an EmergencyBlock record at at,
	// overlaying the first emergencyBlockSize bytes of that range.
	WriteEmergencyBlock(at, next, limit Addr)
	// ReadEmergencyBlock reads back a record written by
	// WriteEmergencyBlock.
	ReadEmergencyBlock(at Addr) (next, limit Addr)
	// WriteEmergencyGrain stores an EmergencyGrain record at at,
	// overlaying the first emergencyGrainSize bytes of that range.
	WriteEmergencyGrain(at, next Addr)
	// ReadEmergencyGrain reads back a record written by
	// WriteEmergencyGrain.
	ReadEmergencyGrain(at Addr) (next Addr)
}

const (
	// emergencyGrainSize is sizeof(EmergencyGrain): one address-sized
	// next pointer.
	emergencyGrainSize = Size(8)
	// emergencyBlockSize is sizeof(EmergencyBlock): a next pointer
	// plus a limit.
	emergencyBlockSize = Size(16)
)

// addEmergency stores r on whichever emergency list its size belongs to.
// It panics if r's size is neither a single grain nor large enough for a
// block: the caller is responsible for never constructing such a range
// (spec.md's Open Questions call this case unreachable by construction,
// given alignment arithmetic).
func (c *CBS) addEmergency(r Range) {
	size := r.Size()
	switch {
	case size >= emergencyBlockSize:
		c.addEmergencyBlock(r.Base, r.Limit)
	case size == Size(c.cfg.Alignment):
		c.addEmergencyGrain(r.Base)
	default:
		panic(fmt.Errorf("cbs: range %v of size %v fits neither a grain (size %v) nor a block (size >= %v)",
			r, size, c.cfg.Alignment, emergencyBlockSize))
	}
}

func (c *CBS) addEmergencyBlock(base, limit Addr) {
	prevAddr := NoAddr
	cur := c.emergencyBlockHead
	for cur != NoAddr && cur < base {
		next, _ := c.mem.ReadEmergencyBlock(cur)
		prevAddr = cur
		cur = next
	}
	c.mem.WriteEmergencyBlock(base, cur, limit)
	if prevAddr == NoAddr {
		c.emergencyBlockHead = base
	} else {
		_, prevLimit := c.mem.ReadEmergencyBlock(prevAddr)
		c.mem.WriteEmergencyBlock(prevAddr, base, prevLimit)
	}
}

func (c *CBS) addEmergencyGrain(base Addr) {
	prevAddr := NoAddr
	cur := c.emergencyGrainHead
	for cur != NoAddr && cur < base {
		next := c.mem.ReadEmergencyGrain(cur)
		prevAddr = cur
		cur = next
	}
	c.mem.WriteEmergencyGrain(base, cur)
	if prevAddr == NoAddr {
		c.emergencyGrainHead = base
	} else {
		c.mem.WriteEmergencyGrain(prevAddr, base)
	}
}

func (c *CBS) unlinkEmergencyBlock(at, prevAddr, next Addr) {
	if prevAddr == NoAddr {
		c.emergencyBlockHead = next
	} else {
		_, prevLimit := c.mem.ReadEmergencyBlock(prevAddr)
		c.mem.WriteEmergencyBlock(prevAddr, next, prevLimit)
	}
}

func (c *CBS) unlinkEmergencyGrain(at, prevAddr, next Addr) {
	if prevAddr == NoAddr {
		c.emergencyGrainHead = next
	} else {
		c.mem.WriteEmergencyGrain(prevAddr, next)
	}
}

// coalesceWithEmergency extends r by absorbing any emergency-list range
// adjacent to it, removing each absorbed range from its list. At most two
// ranges total are absorbed (one on each side), because the lists are
// themselves already non-adjacent internally.
func (c *CBS) coalesceWithEmergency(r Range) Range {
	r, blockN := c.coalesceEmergencyBlocks(r)
	r, grainN := c.coalesceEmergencyGrains(r, blockN)
	if blockN+grainN > 2 {
		panic(fmt.Errorf("cbs: coalesced with %d emergency ranges, expected at most 2", blockN+grainN))
	}
	return r
}

func (c *CBS) coalesceEmergencyBlocks(r Range) (Range, int) {
	base, limit := r.Base, r.Limit
	absorbed := 0
	prevAddr := NoAddr
	cur := c.emergencyBlockHead
loop:
	for cur != NoAddr && cur <= limit {
		next, curLimit := c.mem.ReadEmergencyBlock(cur)
		switch {
		case curLimit == base:
			base = cur
			c.unlinkEmergencyBlock(cur, prevAddr, next)
			absorbed++
			cur = next
		case cur == limit:
			limit = curLimit
			c.unlinkEmergencyBlock(cur, prevAddr, next)
			absorbed++
			break loop
		default:
			prevAddr = cur
			cur = next
		}
	}
	return Range{Base: base, Limit: limit}, absorbed
}

func (c *CBS) coalesceEmergencyGrains(r Range, already int) (Range, int) {
	if already >= 2 {
		return r, 0
	}
	base, limit := r.Base, r.Limit
	absorbed := 0
	prevAddr := NoAddr
	cur := c.emergencyGrainHead
	align := Size(c.cfg.Alignment)
loop:
	for cur != NoAddr && cur <= limit && already+absorbed < 2 {
		next := c.mem.ReadEmergencyGrain(cur)
		curLimit := cur.Add(align)
		switch {
		case curLimit == base:
			base = cur
			c.unlinkEmergencyGrain(cur, prevAddr, next)
			absorbed++
			cur = next
		case cur == limit:
			limit = curLimit
			c.unlinkEmergencyGrain(cur, prevAddr, next)
			absorbed++
			break loop
		default:
			prevAddr = cur
			cur = next
		}
	}
	return Range{Base: base, Limit: limit}, absorbed
}

// flushEmergency walks each emergency list in ascending-base order,
// attempting to move each range into the tree proper. It stops at the
// first allocation failure, leaving the remainder (and the whole of the
// other list, if the block list is where it stopped) in place.
func (c *CBS) flushEmergency() {
	for cur := c.emergencyBlockHead; cur != NoAddr; {
		next, limit := c.mem.ReadEmergencyBlock(cur)
		if c.insertIntoTree(Range{Base: cur, Limit: limit}) != OK {
			return
		}
		c.emergencyBlockHead = next
		cur = next
	}
	align := Size(c.cfg.Alignment)
	for cur := c.emergencyGrainHead; cur != NoAddr; {
		next := c.mem.ReadEmergencyGrain(cur)
		if c.insertIntoTree(Range{Base: cur, Limit: cur.Add(align)}) != OK {
			return
		}
		c.emergencyGrainHead = next
		cur = next
	}
}

// deleteFromEmergencyBlockList locates the unique block-list element
// whose range fully contains r, removes it, and re-adds any residual
// head/tail fragments.
func (c *CBS) deleteFromEmergencyBlockList(r Range) Result {
	prevAddr := NoAddr
	cur := c.emergencyBlockHead
	var next, curLimit Addr
	found := false
	for cur != NoAddr {
		next, curLimit = c.mem.ReadEmergencyBlock(cur)
		if curLimit >= r.Limit {
			found = true
			break
		}
		prevAddr = cur
		cur = next
	}
	if !found || r.Limit <= cur {
		// Either nothing on the list reaches far enough, or r sits
		// entirely in the gap below cur: disjoint, not an overlap.
		return NotFound
	}
	if !(cur <= r.Base && r.Limit <= curLimit) {
		return Conflict
	}
	c.unlinkEmergencyBlock(cur, prevAddr, next)
	if cur < r.Base {
		c.addEmergency(Range{Base: cur, Limit: r.Base})
	}
	if r.Limit < curLimit {
		c.addEmergency(Range{Base: r.Limit, Limit: curLimit})
	}
	return OK
}

// deleteFromEmergencyGrainList locates an exact match for r on the grain
// list and removes it.
func (c *CBS) deleteFromEmergencyGrainList(r Range) Result {
	if r.Size() != Size(c.cfg.Alignment) {
		return NotFound
	}
	align := Size(c.cfg.Alignment)
	prevAddr := NoAddr
	cur := c.emergencyGrainHead
	var next Addr
	found := false
	for cur != NoAddr {
		n := c.mem.ReadEmergencyGrain(cur)
		curLimit := cur.Add(align)
		if curLimit >= r.Limit {
			next = n
			found = true
			break
		}
		prevAddr = cur
		cur = n
	}
	if !found || r.Limit <= cur {
		// As for the block list: r lying wholly below cur is disjoint
		// from the list, not an overlap.
		return NotFound
	}
	curLimit := cur.Add(align)
	if !(cur <= r.Base && r.Limit <= curLimit) {
		return Conflict
	}
	c.unlinkEmergencyGrain(cur, prevAddr, next)
	return OK
}
