// Copyright (C) 2026 mps authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cbs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundedPoolCapacity(t *testing.T) {
	pool := NewBoundedPool(2)

	b1, ok := pool.Alloc()
	require.True(t, ok)
	require.NotNil(t, b1)
	assert.Equal(t, 1, pool.Live())

	b2, ok := pool.Alloc()
	require.True(t, ok)
	assert.Equal(t, 2, pool.Live())

	_, ok = pool.Alloc()
	assert.False(t, ok, "pool should be exhausted at capacity")

	pool.Free(b1)
	assert.Equal(t, 1, pool.Live())

	b3, ok := pool.Alloc()
	require.True(t, ok)
	assert.Same(t, b1, b3, "freed cell should be recycled")

	_ = b2
}

func TestBoundedPoolUnbounded(t *testing.T) {
	pool := NewBoundedPool(0)
	for i := 0; i < 1000; i++ {
		_, ok := pool.Alloc()
		require.True(t, ok)
	}
	assert.Equal(t, 1000, pool.Live())
}

func TestBoundedPoolFreeResetsCell(t *testing.T) {
	pool := NewBoundedPool(1)
	b, ok := pool.Alloc()
	require.True(t, ok)
	b.base, b.limit = 16, 32
	pool.Free(b)
	assert.Equal(t, Addr(0), b.base)
	assert.Equal(t, Addr(0), b.limit)
}
