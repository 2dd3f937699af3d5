// Copyright (C) 2026 mps authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import "github.com/srdqty/mps/lib/containers"

// index is the ordered range index: an ordered map from range base to
// Block, keyed by Base, augmented (when fastFind is set) with each
// node's subtree-maximum size so FindFirst/FindLast can locate a fitting
// block without a linear scan.
//
// It is built directly on containers.RBTree rather than on an intrusive
// embedding, because Go generics let a Block hold a typed pointer back to
// its own tree node instead of relying on pointer arithmetic to recover
// the outer struct from an embedded node (see DESIGN.md).
type index struct {
	tree     containers.RBTree[Addr, *Block]
	fastFind bool
	didInit  bool
}

func (ix *index) init() {
	if ix.didInit {
		return
	}
	ix.tree.KeyFn = func(b *Block) Addr { return b.base }
	if ix.fastFind {
		ix.tree.AttrFn = func(node *containers.RBNode[*Block]) {
			m := node.Value.Size()
			if node.Left != nil && node.Left.Value.maxSize > m {
				m = node.Left.Value.maxSize
			}
			if node.Right != nil && node.Right.Value.maxSize > m {
				m = node.Right.Value.maxSize
			}
			node.Value.maxSize = m
		}
	}
	ix.didInit = true
}

func (ix *index) len() int {
	ix.init()
	return ix.tree.Len()
}

// rangeCmp is the three-way comparator the source calls CBSSplayCompare:
// treating a base address as "equal" to any node whose stored range
// contains it.
func rangeCmp(base Addr) func(*Block) int {
	return func(b *Block) int {
		switch {
		case base < b.base:
			return -1
		case base >= b.limit:
			return 1
		default:
			return 0
		}
	}
}

// neighbours returns the node whose range lies strictly below base and
// the node whose range lies at or above base. If base lies inside an
// existing node's range, conflict is true and left and right are both
// that node.
func (ix *index) neighbours(base Addr) (left, right *Block, conflict bool) {
	ix.init()
	exact, nearest := ix.tree.SearchNearest(rangeCmp(base))
	if exact != nil {
		return exact.Value, exact.Value, true
	}
	if nearest == nil {
		return nil, nil, false
	}
	if base < nearest.Value.base {
		right = nearest.Value
		if prev := ix.tree.Prev(nearest); prev != nil {
			left = prev.Value
		}
	} else {
		left = nearest.Value
		if next := ix.tree.Next(nearest); next != nil {
			right = next.Value
		}
	}
	return left, right, false
}

// search returns the block whose range contains base, or nil.
func (ix *index) search(base Addr) *Block {
	ix.init()
	if node := ix.tree.Search(rangeCmp(base)); node != nil {
		return node.Value
	}
	return nil
}

// insertNode adds a freshly-allocated block to the index.
func (ix *index) insertNode(b *Block) {
	ix.init()
	b.node = ix.tree.Insert(b)
	if ix.fastFind {
		b.maxSize = b.Size()
		ix.tree.Refresh(b.node)
	}
}

// deleteNode removes b from the index.
func (ix *index) deleteNode(b *Block) {
	ix.init()
	ix.tree.DeleteNode(b.node)
	b.node = nil
}

// refresh re-evaluates the subtree-maximum augmentation after the engine
// has mutated b.base or b.limit in place.
func (ix *index) refresh(b *Block) {
	ix.init()
	if !ix.fastFind || b.node == nil {
		return
	}
	ix.tree.Refresh(b.node)
}

func (ix *index) first() *Block {
	ix.init()
	if node := ix.tree.Min(); node != nil {
		return node.Value
	}
	return nil
}

func (ix *index) next(b *Block) *Block {
	ix.init()
	if b == nil || b.node == nil {
		return nil
	}
	if node := ix.tree.Next(b.node); node != nil {
		return node.Value
	}
	return nil
}

func (ix *index) findFirst(size Size) *Block {
	ix.init()
	node := ix.tree.FindFirst(
		func(b *Block) bool { return b.Size() >= size },
		func(node *containers.RBNode[*Block]) bool { return node.Value.maxSize >= size },
	)
	if node == nil {
		return nil
	}
	return node.Value
}

func (ix *index) findLast(size Size) *Block {
	ix.init()
	node := ix.tree.FindLast(
		func(b *Block) bool { return b.Size() >= size },
		func(node *containers.RBNode[*Block]) bool { return node.Value.maxSize >= size },
	)
	if node == nil {
		return nil
	}
	return node.Value
}
