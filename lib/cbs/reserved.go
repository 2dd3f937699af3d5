// Copyright (C) 2026 mps authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

// Reserved ranges are addresses Insert must never be asked to track: a
// CBS client typically knows of regions permanently withheld from the
// pool it manages (a boot region, a guard page, a span owned by another
// subsystem). Insert rejects any range overlapping one of these with
// CONFLICT, the same result code it uses for overlap with existing
// tracked content, before ever touching the index or the emergency
// lists.
//
// This is not present in the distilled specification's core four
// components, but it is a direct, low-cost use of
// containers.IntervalTree.OverlapsAny and a realistic requirement for any
// caller embedding a CBS in a real arena allocator, where certain byte
// ranges (metadata, guard regions) must never be described as free.
//
// Reserved returns the configured reserved ranges, in the order they were
// supplied to Config.
func (c *CBS) Reserved() []Range {
	out := make([]Range, len(c.reservedRanges))
	copy(out, c.reservedRanges)
	return out
}
