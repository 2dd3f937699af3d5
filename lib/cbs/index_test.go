// Copyright (C) 2026 mps authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexNeighboursAndSearch(t *testing.T) {
	ix := &index{fastFind: true}

	a := &Block{base: 0, limit: 0x10}
	b := &Block{base: 0x20, limit: 0x30}
	ix.insertNode(a)
	ix.insertNode(b)

	left, right, conflict := ix.neighbours(0x18)
	assert.False(t, conflict)
	assert.Same(t, a, left)
	assert.Same(t, b, right)

	left, right, conflict = ix.neighbours(0x05)
	assert.True(t, conflict)
	assert.Same(t, a, left)
	assert.Same(t, a, right)

	left, right, conflict = ix.neighbours(0)
	assert.True(t, conflict)
	assert.Same(t, a, left)

	got := ix.search(0x25)
	require.NotNil(t, got)
	assert.Same(t, b, got)

	assert.Nil(t, ix.search(0x15))
}

func TestIndexFindFirstFindLast(t *testing.T) {
	ix := &index{fastFind: true}

	blocks := []*Block{
		{base: 0, limit: 0x10},   // size 0x10
		{base: 0x20, limit: 0x70}, // size 0x50
		{base: 0x80, limit: 0xA0}, // size 0x20
	}
	for _, b := range blocks {
		ix.insertNode(b)
	}

	first := ix.findFirst(0x20)
	require.NotNil(t, first)
	assert.Equal(t, Addr(0x20), first.base)

	last := ix.findLast(0x20)
	require.NotNil(t, last)
	assert.Equal(t, Addr(0x80), last.base)

	assert.Nil(t, ix.findFirst(0x1000))
}

func TestIndexRefreshAfterInPlaceMutation(t *testing.T) {
	ix := &index{fastFind: true}
	a := &Block{base: 0, limit: 0x10}
	b := &Block{base: 0x20, limit: 0x30}
	ix.insertNode(a)
	ix.insertNode(b)

	a.limit = 0x18
	ix.refresh(a)

	assert.Equal(t, Size(0x18), a.maxSize)

	root := ix.tree.Root()
	require.NotNil(t, root)
	assert.Equal(t, Size(0x18), root.Value.maxSize, "root (a itself) must carry the refreshed maxSize")
}

func TestIndexDeleteNode(t *testing.T) {
	ix := &index{}
	a := &Block{base: 0, limit: 0x10}
	ix.insertNode(a)
	require.Equal(t, 1, ix.len())

	ix.deleteNode(a)
	assert.Equal(t, 0, ix.len())
	assert.Nil(t, a.node)
}
