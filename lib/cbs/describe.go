// Copyright (C) 2026 mps authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import (
	"fmt"
	"io"
)

// DescribeOptions controls the verbosity of Describe's output.
type DescribeOptions struct {
	// ShowEmergency also prints the contents of the emergency block
	// and grain lists. Off by default since those lists are an
	// implementation detail invisible to every other CBS operation.
	ShowEmergency bool
}

// Describe writes a human-readable (not parseable) rendering of the CBS
// to w: a header, the node pool and hook state, then the tree body in
// ascending order, one line per block, each printed as "[base,limit)
// {maxSize}" when FastFind is set and as "[base,limit)" otherwise.
func (c *CBS) Describe(w io.Writer, opts DescribeOptions) error {
	c.enter("Describe")
	defer c.leave()

	if _, err := fmt.Fprintf(w, "CBS %p {\n", c); err != nil {
		return newError("Describe", IOErr, Range{})
	}
	if _, err := fmt.Fprintf(w, "  pool: %p\n", c.pool); err != nil {
		return newError("Describe", IOErr, Range{})
	}
	if _, err := fmt.Fprintf(w, "  hooks: new=%v delete=%v grow=%v shrink=%v\n",
		c.hooks.New.OK, c.hooks.Delete.OK, c.hooks.Grow.OK, c.hooks.Shrink.OK); err != nil {
		return newError("Describe", IOErr, Range{})
	}
	if _, err := fmt.Fprintf(w, "  minSize: %v alignment: %v mayUseInline: %v fastFind: %v\n",
		c.cfg.MinSize, c.cfg.Alignment, c.cfg.MayUseInline, c.cfg.FastFind); err != nil {
		return newError("Describe", IOErr, Range{})
	}

	var ioErr error
	c.iterate(func(b *Block) IterateAction {
		var err error
		if c.cfg.FastFind {
			_, err = fmt.Fprintf(w, "  [%v,%v) {%v}\n", b.base, b.limit, b.maxSize)
		} else {
			_, err = fmt.Fprintf(w, "  [%v,%v)\n", b.base, b.limit)
		}
		if err != nil {
			ioErr = err
			return Stop
		}
		return Continue
	})
	if ioErr != nil {
		return newError("Describe", IOErr, Range{})
	}

	if opts.ShowEmergency {
		if err := c.describeEmergency(w); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "}\n"); err != nil {
		return newError("Describe", IOErr, Range{})
	}
	return nil
}

func (c *CBS) describeEmergency(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "  emergency blocks:\n"); err != nil {
		return newError("Describe", IOErr, Range{})
	}
	for cur := c.emergencyBlockHead; cur != NoAddr; {
		next, limit := c.mem.ReadEmergencyBlock(cur)
		if _, err := fmt.Fprintf(w, "    [%v,%v)\n", cur, limit); err != nil {
			return newError("Describe", IOErr, Range{})
		}
		cur = next
	}
	if _, err := fmt.Fprintf(w, "  emergency grains:\n"); err != nil {
		return newError("Describe", IOErr, Range{})
	}
	align := Size(c.cfg.Alignment)
	for cur := c.emergencyGrainHead; cur != NoAddr; {
		next := c.mem.ReadEmergencyGrain(cur)
		if _, err := fmt.Fprintf(w, "    [%v,%v)\n", cur, cur.Add(align)); err != nil {
			return newError("Describe", IOErr, Range{})
		}
		cur = next
	}
	return nil
}
