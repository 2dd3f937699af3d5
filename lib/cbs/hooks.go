// Copyright (C) 2026 mps authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import "github.com/srdqty/mps/lib/containers"

// Hook is a client callback observing a block's size transition across
// the configured minimum-size threshold. It is called with the block in
// its post-change state (oldSize, newSize), except for the Delete hook,
// which is called with the block's last-known geometry just before its
// cell returns to the pool.
//
// A Hook must not call back into the CBS: the re-entrance guard will
// panic if it does.
type Hook func(c *CBS, block *Block, oldSize, newSize Size)

// Hooks is the set of optional notification points a CBS client may
// register. Each is a capability that is either absent (the zero
// Optional) or present; an absent hook is simply skipped rather than
// called with a no-op function, following the same "optional hook" shape
// as containers.Optional is used elsewhere in this module.
type Hooks struct {
	// New fires when a block appears with size >= MinSize, either
	// because it was freshly created or because it grew past the
	// threshold. oldSize is 0 in the former case.
	New containers.Optional[Hook]
	// Delete fires when a block disappears, or shrinks below the
	// threshold. newSize is 0 in the former case.
	Delete containers.Optional[Hook]
	// Grow fires when oldSize >= MinSize and newSize > oldSize.
	Grow containers.Optional[Hook]
	// Shrink fires when MinSize <= newSize < oldSize.
	Shrink containers.Optional[Hook]
}

func (h Hooks) fireNew(c *CBS, block *Block, oldSize, newSize Size) {
	if h.New.OK {
		h.New.Val(c, block, oldSize, newSize)
	}
}

func (h Hooks) fireDelete(c *CBS, block *Block, oldSize, newSize Size) {
	if h.Delete.OK {
		h.Delete.Val(c, block, oldSize, newSize)
	}
}

func (h Hooks) fireGrow(c *CBS, block *Block, oldSize, newSize Size) {
	if h.Grow.OK {
		h.Grow.Val(c, block, oldSize, newSize)
	}
}

func (h Hooks) fireShrink(c *CBS, block *Block, oldSize, newSize Size) {
	if h.Shrink.OK {
		h.Shrink.Val(c, block, oldSize, newSize)
	}
}

// notifyGrow implements the CBSBlockGrow transition table: exactly one of
// New or Grow fires, or neither if the block was and remains below
// MinSize.
func (h Hooks) notifyGrow(c *CBS, block *Block, oldSize, newSize Size, minSize Size) {
	switch {
	case oldSize < minSize && newSize >= minSize:
		h.fireNew(c, block, oldSize, newSize)
	case oldSize >= minSize:
		h.fireGrow(c, block, oldSize, newSize)
	}
}

// notifyShrink implements the CBSBlockShrink transition table: exactly
// one of Delete or Shrink fires, or neither if the block was and remains
// below MinSize.
func (h Hooks) notifyShrink(c *CBS, block *Block, oldSize, newSize Size, minSize Size) {
	switch {
	case oldSize >= minSize && newSize < minSize:
		h.fireDelete(c, block, oldSize, newSize)
	case newSize >= minSize:
		h.fireShrink(c, block, oldSize, newSize)
	}
}
