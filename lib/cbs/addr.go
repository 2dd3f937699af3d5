// Copyright (C) 2026 mps authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import (
	"fmt"

	"github.com/srdqty/mps/lib/containers"
)

// Addr is an absolute address in the space a CBS tracks. It is opaque to
// the CBS beyond ordering and arithmetic; callers decide what it means
// (a byte offset, a page number, a block number, ...).
type Addr uint64

// Size is the distance between two Addrs.
type Size uint64

// NoAddr is the sentinel "no such address" value, used as the terminator
// of an emergency list's chain of next-pointers and to mark an empty
// list's head. Alignment is required to divide any real address evenly,
// so the all-ones pattern can never be a legitimately aligned address in
// practice; treating it as invalid mirrors the convention of treating a
// null pointer as "no next" in the source this was translated from.
const NoAddr Addr = ^Addr(0)

func (a Addr) Cmp(b Addr) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

var _ containers.Ordered[Addr] = Addr(0)

func (a Addr) Add(s Size) Addr { return a + Addr(s) }

// Sub returns the size of the span between a (exclusive) and b
// (inclusive); that is, b-a. It panics if b < a.
func (a Addr) Sub(b Addr) Size {
	if b < a {
		panic(fmt.Errorf("cbs: Addr.Sub: %v < %v", b, a))
	}
	return Size(b - a)
}

func (a Addr) Format(f fmt.State, verb rune) { formatAddr(uint64(a), f, verb) }
func (s Size) Format(f fmt.State, verb rune) { formatAddr(uint64(s), f, verb) }

func formatAddr(v uint64, f fmt.State, verb rune) {
	switch verb {
	case 'v', 's', 'q':
		fmt.Fprintf(f, "%#016x", v)
	default:
		fmt.Fprintf(f, fmtVerb(verb), v)
	}
}

func fmtVerb(verb rune) string { return "%" + string(verb) }

// Range is a half-open interval [Base, Limit) of addresses.
type Range struct {
	Base, Limit Addr
}

func (r Range) Size() Size { return r.Base.Sub(r.Limit) }

func (r Range) String() string {
	return fmt.Sprintf("[%v,%v)", r.Base, r.Limit)
}

// Overlaps reports whether r and o share any address.
func (r Range) Overlaps(o Range) bool {
	return r.Base < o.Limit && o.Base < r.Limit
}

// Adjacent reports whether r and o share a boundary but do not overlap.
func (r Range) Adjacent(o Range) bool {
	return r.Limit == o.Base || o.Limit == r.Base
}
