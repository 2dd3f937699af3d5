// Copyright (C) 2026 mps authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import "fmt"

// Result is the outcome of a CBS operation. The zero value is OK.
type Result int

const (
	// OK indicates success.
	OK Result = iota
	// Conflict indicates a client contract violation: an inserted range
	// overlapped existing content, or a deleted range straddled a
	// block boundary or exceeded a block's extent, or an inserted
	// range overlapped a permanently-reserved range.
	Conflict
	// NotFound indicates a delete target was absent from both the
	// index and the emergency lists.
	NotFound
	// AllocFail indicates the node pool could not furnish a cell.
	AllocFail
	// IOErr indicates the describe stream failed.
	IOErr
)

func (r Result) String() string {
	switch r {
	case OK:
		return "OK"
	case Conflict:
		return "CONFLICT"
	case NotFound:
		return "NOT_FOUND"
	case AllocFail:
		return "ALLOC_FAIL"
	case IOErr:
		return "IO_ERR"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Error wraps a non-OK Result so it satisfies the error interface while
// still letting callers recover the Result with errors.As.
type Error struct {
	Result Result
	Op     string
	Range  Range
}

func (e *Error) Error() string {
	return fmt.Sprintf("cbs: %s %v: %s", e.Op, e.Range, e.Result)
}

// Is reports whether target is the same Result, so callers can write
// errors.Is(err, cbs.ErrConflict) instead of unwrapping by hand.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Result == e.Result
}

// Sentinel errors for use with errors.Is.
var (
	ErrConflict  = &Error{Result: Conflict}
	ErrNotFound  = &Error{Result: NotFound}
	ErrAllocFail = &Error{Result: AllocFail}
	ErrIOErr     = &Error{Result: IOErr}
)

func newError(op string, result Result, r Range) error {
	if result == OK {
		return nil
	}
	return &Error{Result: result, Op: op, Range: r}
}
