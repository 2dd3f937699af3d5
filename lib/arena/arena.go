// Copyright (C) 2026 mps authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package arena provides a byte-addressable backing store that a cbs.CBS
// can use to host its emergency-list records. It is the "host arena"
// spec.md treats as an external collaborator: the CBS engine only ever
// talks to it through the narrow cbs.Memory interface.
package arena

import (
	"encoding/binary"
	"fmt"

	"github.com/srdqty/mps/lib/cbs"
	"github.com/srdqty/mps/lib/containers"
)

// Arena is a contiguous span of simulated memory addressed by
// [Base, Base+Size). It satisfies cbs.Memory by overlaying emergency
// records directly onto its backing buffer with encoding/binary, rather
// than by an unsafe pointer cast.
type Arena struct {
	base  cbs.Addr
	bytes []byte
	pool  containers.SlicePool[byte]
}

var _ cbs.Memory = (*Arena)(nil)

// New allocates an Arena covering [base, base+size). The backing buffer
// comes from the Arena's own containers.SlicePool, and Close returns it
// there. Each Arena has a separate pool, so a buffer released by one Arena
// is not reused by another.
func New(base cbs.Addr, size cbs.Size) *Arena {
	a := &Arena{base: base}
	a.bytes = a.pool.Get(int(size))
	return a
}

// Close returns the backing buffer to the pool. The Arena must not be
// used afterward.
func (a *Arena) Close() {
	a.pool.Put(a.bytes)
	a.bytes = nil
}

// Base returns the arena's lowest address.
func (a *Arena) Base() cbs.Addr { return a.base }

// Limit returns the arena's address just past its highest byte.
func (a *Arena) Limit() cbs.Addr { return a.base.Add(cbs.Size(len(a.bytes))) }

// Range returns the arena's full extent.
func (a *Arena) Range() cbs.Range { return cbs.Range{Base: a.base, Limit: a.Limit()} }

func (a *Arena) offset(at cbs.Addr, width int) int {
	if at < a.base || at.Sub(a.base) > cbs.Size(len(a.bytes)-width) {
		panic(fmt.Errorf("arena: address %v out of range %v", at, a.Range()))
	}
	return int(at - a.base)
}

// WriteEmergencyBlock overlays a 16-byte EmergencyBlock record (next,
// limit; both little-endian uint64) at at.
func (a *Arena) WriteEmergencyBlock(at, next, limit cbs.Addr) {
	off := a.offset(at, 16)
	binary.LittleEndian.PutUint64(a.bytes[off:], uint64(next))
	binary.LittleEndian.PutUint64(a.bytes[off+8:], uint64(limit))
}

// ReadEmergencyBlock reads back a record written by WriteEmergencyBlock.
func (a *Arena) ReadEmergencyBlock(at cbs.Addr) (next, limit cbs.Addr) {
	off := a.offset(at, 16)
	next = cbs.Addr(binary.LittleEndian.Uint64(a.bytes[off:]))
	limit = cbs.Addr(binary.LittleEndian.Uint64(a.bytes[off+8:]))
	return next, limit
}

// WriteEmergencyGrain overlays an 8-byte EmergencyGrain record (next;
// little-endian uint64) at at.
func (a *Arena) WriteEmergencyGrain(at, next cbs.Addr) {
	off := a.offset(at, 8)
	binary.LittleEndian.PutUint64(a.bytes[off:], uint64(next))
}

// ReadEmergencyGrain reads back a record written by WriteEmergencyGrain.
func (a *Arena) ReadEmergencyGrain(at cbs.Addr) cbs.Addr {
	off := a.offset(at, 8)
	return cbs.Addr(binary.LittleEndian.Uint64(a.bytes[off:]))
}
