// Copyright (C) 2026 mps authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import "fmt"

// Check walks the index and both emergency lists and reports the first
// invariant violation it finds. For index blocks it checks base < limit,
// alignment, ascending order without overlap or adjacency, and (with
// FastFind) maxSize. For the emergency lists it checks that they are empty
// when MayUseInline is false, and otherwise that each list is ascending
// and non-adjacent, with base < limit for blocks. It does not check
// emergency ranges for alignment, nor against the index or against each
// other's list. The re-entrance flag is enforced by enter/leave and cannot
// be observed from outside a call. It is meant
// for tests and debugging, not the hot path: it is not called by any
// other operation.
func (c *CBS) Check() error {
	c.enter("Check")
	defer c.leave()

	var prev *Block
	var err error
	c.iterate(func(b *Block) IterateAction {
		if b.base >= b.limit {
			err = fmt.Errorf("cbs: Check: block %v has base >= limit", b.Range())
			return Stop
		}
		if uint64(b.base)%uint64(c.cfg.Alignment) != 0 || uint64(b.limit)%uint64(c.cfg.Alignment) != 0 {
			err = fmt.Errorf("cbs: Check: block %v is not aligned to %v", b.Range(), c.cfg.Alignment)
			return Stop
		}
		if prev != nil {
			if prev.limit > b.base {
				err = fmt.Errorf("cbs: Check: blocks %v and %v overlap", prev.Range(), b.Range())
				return Stop
			}
			if prev.limit == b.base {
				err = fmt.Errorf("cbs: Check: blocks %v and %v are adjacent and should have coalesced", prev.Range(), b.Range())
				return Stop
			}
		}
		if c.cfg.FastFind {
			want := b.Size()
			if b.node.Left != nil && b.node.Left.Value.maxSize > want {
				want = b.node.Left.Value.maxSize
			}
			if b.node.Right != nil && b.node.Right.Value.maxSize > want {
				want = b.node.Right.Value.maxSize
			}
			if b.maxSize != want {
				err = fmt.Errorf("cbs: Check: block %v has maxSize %v, want %v", b.Range(), b.maxSize, want)
				return Stop
			}
		}
		prev = b
		return Continue
	})
	if err != nil {
		return err
	}

	if !c.cfg.MayUseInline {
		if c.emergencyBlockHead != NoAddr || c.emergencyGrainHead != NoAddr {
			return fmt.Errorf("cbs: Check: emergency lists are non-empty but MayUseInline is false")
		}
		return nil
	}

	if err := c.checkEmergencyBlockList(); err != nil {
		return err
	}
	return c.checkEmergencyGrainList()
}

func (c *CBS) checkEmergencyBlockList() error {
	var prevLimit Addr
	havePrev := false
	for cur := c.emergencyBlockHead; cur != NoAddr; {
		next, limit := c.mem.ReadEmergencyBlock(cur)
		if cur >= limit {
			return fmt.Errorf("cbs: Check: emergency block [%v,%v) has base >= limit", cur, limit)
		}
		if havePrev && prevLimit >= cur {
			return fmt.Errorf("cbs: Check: emergency block list out of order or adjacent at %v", cur)
		}
		prevLimit = limit
		havePrev = true
		cur = next
	}
	return nil
}

func (c *CBS) checkEmergencyGrainList() error {
	align := Size(c.cfg.Alignment)
	var prevLimit Addr
	havePrev := false
	for cur := c.emergencyGrainHead; cur != NoAddr; {
		next := c.mem.ReadEmergencyGrain(cur)
		limit := cur.Add(align)
		if havePrev && prevLimit >= cur {
			return fmt.Errorf("cbs: Check: emergency grain list out of order or adjacent at %v", cur)
		}
		prevLimit = limit
		havePrev = true
		cur = next
	}
	return nil
}
