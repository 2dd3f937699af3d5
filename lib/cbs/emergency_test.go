// Copyright (C) 2026 mps authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMemory is a plain map-backed Memory, used to unit-test the
// emergency-list algorithms without going through a real arena.
type fakeMemory struct {
	blocks map[Addr][2]Addr // [next, limit]
	grains map[Addr]Addr    // next
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{blocks: map[Addr][2]Addr{}, grains: map[Addr]Addr{}}
}

func (m *fakeMemory) WriteEmergencyBlock(at, next, limit Addr) { m.blocks[at] = [2]Addr{next, limit} }
func (m *fakeMemory) ReadEmergencyBlock(at Addr) (Addr, Addr) {
	rec := m.blocks[at]
	return rec[0], rec[1]
}
func (m *fakeMemory) WriteEmergencyGrain(at, next Addr) { m.grains[at] = next }
func (m *fakeMemory) ReadEmergencyGrain(at Addr) Addr   { return m.grains[at] }

var _ Memory = (*fakeMemory)(nil)

func newTestEngine(mem Memory, poolCap int) *CBS {
	return &CBS{
		cfg: Config{
			MinSize:      0,
			Alignment:    16,
			MayUseInline: true,
		},
		pool:               NewBoundedPool(poolCap),
		mem:                mem,
		ix:                 index{fastFind: true},
		emergencyBlockHead: NoAddr,
		emergencyGrainHead: NoAddr,
	}
}

func TestAddEmergencyDispatchesBySize(t *testing.T) {
	mem := newFakeMemory()
	c := newTestEngine(mem, 0)
	c.cfg.Alignment = 8 // a size of 12 then fits neither a grain nor a block
	assert.Panics(t, func() {
		c.addEmergency(Range{Base: 0x100, Limit: 0x10C}) // size 12: not 8, not >= 16
	})
}

func TestAddEmergencyBlockOrdering(t *testing.T) {
	mem := newFakeMemory()
	c := newTestEngine(mem, 0)

	c.addEmergencyBlock(0x100, 0x120)
	c.addEmergencyBlock(0x50, 0x60)
	c.addEmergencyBlock(0x200, 0x220)

	var order []Addr
	for cur := c.emergencyBlockHead; cur != NoAddr; {
		next, _ := mem.ReadEmergencyBlock(cur)
		order = append(order, cur)
		cur = next
	}
	assert.Equal(t, []Addr{0x50, 0x100, 0x200}, order)
}

func TestCoalesceWithEmergencyAbsorbsBothSides(t *testing.T) {
	mem := newFakeMemory()
	c := newTestEngine(mem, 0)

	c.addEmergencyBlock(0x0, 0x10)
	c.addEmergencyBlock(0x20, 0x30)

	got := c.coalesceWithEmergency(Range{Base: 0x10, Limit: 0x20})
	assert.Equal(t, Range{Base: 0x0, Limit: 0x30}, got)
	assert.Equal(t, NoAddr, c.emergencyBlockHead, "both absorbed entries must be unlinked")
}

func TestCoalesceWithEmergencyNoMatch(t *testing.T) {
	mem := newFakeMemory()
	c := newTestEngine(mem, 0)
	c.addEmergencyBlock(0x100, 0x110)

	got := c.coalesceWithEmergency(Range{Base: 0x200, Limit: 0x210})
	assert.Equal(t, Range{Base: 0x200, Limit: 0x210}, got)
}

func TestFlushEmergencyStopsAtFirstAllocFailure(t *testing.T) {
	mem := newFakeMemory()
	c := newTestEngine(mem, 1) // only one cell: second flush attempt fails

	c.addEmergencyBlock(0x100, 0x110)
	c.addEmergencyBlock(0x200, 0x210)

	c.flushEmergency()

	require.Equal(t, 1, c.ix.len())
	assert.NotEqual(t, NoAddr, c.emergencyBlockHead, "second block should remain on the emergency list")
}

func TestDeleteFromEmergencyBlockListExactMatch(t *testing.T) {
	mem := newFakeMemory()
	c := newTestEngine(mem, 0)
	c.addEmergencyBlock(0x100, 0x110)

	result := c.deleteFromEmergencyBlockList(Range{Base: 0x100, Limit: 0x110})
	assert.Equal(t, OK, result)
	assert.Equal(t, NoAddr, c.emergencyBlockHead)
}

func TestDeleteFromEmergencyBlockListResidual(t *testing.T) {
	mem := newFakeMemory()
	c := newTestEngine(mem, 0)
	c.addEmergencyBlock(0x100, 0x140)

	result := c.deleteFromEmergencyBlockList(Range{Base: 0x110, Limit: 0x120})
	require.Equal(t, OK, result)

	var ranges [][2]Addr
	for cur := c.emergencyBlockHead; cur != NoAddr; {
		next, limit := mem.ReadEmergencyBlock(cur)
		ranges = append(ranges, [2]Addr{cur, limit})
		cur = next
	}
	assert.ElementsMatch(t, [][2]Addr{{0x100, 0x110}, {0x120, 0x140}}, ranges)
}

func TestDeleteFromEmergencyBlockListNotFound(t *testing.T) {
	mem := newFakeMemory()
	c := newTestEngine(mem, 0)
	c.addEmergencyBlock(0x100, 0x110)

	assert.Equal(t, NotFound, c.deleteFromEmergencyBlockList(Range{Base: 0x200, Limit: 0x210}))
}

func TestDeleteFromEmergencyGrainListRequiresExactSize(t *testing.T) {
	mem := newFakeMemory()
	c := newTestEngine(mem, 0)
	c.addEmergencyGrain(0x100)

	assert.Equal(t, NotFound, c.deleteFromEmergencyGrainList(Range{Base: 0x100, Limit: 0x108}))
	assert.Equal(t, OK, c.deleteFromEmergencyGrainList(Range{Base: 0x100, Limit: 0x110}))
}
