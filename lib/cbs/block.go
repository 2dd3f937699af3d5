// Copyright (C) 2026 mps authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import "github.com/srdqty/mps/lib/containers"

// Block is a handle to one contiguous free range tracked in the index.
// Its fields are only ever mutated by the engine; clients only read them,
// through the Base/Limit/Size query accessors, which are exempt from the
// re-entrance guard so a hook may call them.
type Block struct {
	base, limit Addr
	// maxSize is the maximum size of this block and both of its
	// subtrees in the index. It is only kept up to date when the
	// owning CBS was configured with FastFind.
	maxSize Size

	node *containers.RBNode[*Block]
}

// Base returns the block's lower bound. Safe to call from a hook.
func (b *Block) Base() Addr { return b.base }

// Limit returns the block's upper bound. Safe to call from a hook.
func (b *Block) Limit() Addr { return b.limit }

// Size returns limit-base. Safe to call from a hook.
func (b *Block) Size() Size { return b.base.Sub(b.limit) }

// Range returns the block's range as a value, for convenience.
func (b *Block) Range() Range { return Range{Base: b.base, Limit: b.limit} }
