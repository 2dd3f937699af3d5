// Copyright (C) 2026 mps authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package containers

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/constraints"
)

func (t *RBTree[K, V]) ASCIIArt() string {
	var out strings.Builder
	t.root.asciiArt(&out, "", "", "")
	return out.String()
}

func (node *RBNode[V]) String() string {
	switch {
	case node == nil:
		return "nil"
	case node.Color == Red:
		return fmt.Sprintf("R(%v)", node.Value)
	default:
		return fmt.Sprintf("B(%v)", node.Value)
	}
}

func (node *RBNode[V]) asciiArt(w io.Writer, u, m, l string) {
	if node == nil {
		fmt.Fprintf(w, "%snil\n", m)
		return
	}

	node.Right.asciiArt(w, u+"     ", u+"  ,--", u+"  |  ")
	fmt.Fprintf(w, "%s%v\n", m, node)
	node.Left.asciiArt(w, l+"  |  ", l+"  `--", l+"     ")
}

func checkRBTree[K constraints.Ordered, V any](t *testing.T, expectedSet map[K]struct{}, tree *RBTree[NativeOrdered[K], V]) {
	t.Helper()

	// The root is black.
	require.Equal(t, Black, tree.root.getColor())

	// If a node is red, both its children are black.
	require.NoError(t, tree.Walk(func(node *RBNode[V]) error {
		if node.getColor() == Red {
			require.Equal(t, Black, node.Left.getColor())
			require.Equal(t, Black, node.Right.getColor())
		}
		return nil
	}))

	// Every path from a node to a descendant leaf has the same
	// black-count.
	var walkCnt func(node *RBNode[V], cnt int, leafFn func(int))
	walkCnt = func(node *RBNode[V], cnt int, leafFn func(int)) {
		if node.getColor() == Black {
			cnt++
		}
		if node == nil {
			leafFn(cnt)
			return
		}
		walkCnt(node.Left, cnt, leafFn)
		walkCnt(node.Right, cnt, leafFn)
	}
	require.NoError(t, tree.Walk(func(node *RBNode[V]) error {
		var cnts []int
		walkCnt(node, 0, func(cnt int) {
			cnts = append(cnts, cnt)
		})
		for i := range cnts {
			require.Equalf(t, cnts[0], cnts[i], "node %v: not all leaves have the same black-count: %v", node.Value, cnts)
		}
		return nil
	}))

	expectedOrder := make([]K, 0, len(expectedSet))
	for k := range expectedSet {
		expectedOrder = append(expectedOrder, k)
		node := tree.Lookup(NativeOrdered[K]{Val: k})
		require.NotNil(t, node)
		require.Equal(t, k, tree.KeyFn(node.Value).Val)
	}
	sort.Slice(expectedOrder, func(i, j int) bool { return expectedOrder[i] < expectedOrder[j] })

	actOrder := make([]K, 0, len(expectedSet))
	require.NoError(t, tree.Walk(func(node *RBNode[V]) error {
		actOrder = append(actOrder, tree.KeyFn(node.Value).Val)
		return nil
	}))
	require.Equal(t, expectedOrder, actOrder)
}

func FuzzRBTree(f *testing.F) {
	Ins := uint8(0b0100_0000)
	Del := uint8(0)

	f.Add([]uint8{})
	f.Add([]uint8{Ins | 5, Del | 5})
	f.Add([]uint8{Ins | 5, Del | 6})
	f.Add([]uint8{Del | 6})
	f.Add([]uint8{ // CLRS Figure 14.4
		Ins | 1, Ins | 2, Ins | 5, Ins | 7, Ins | 8, Ins | 11, Ins | 14, Ins | 15, Ins | 4,
	})

	f.Fuzz(func(t *testing.T, dat []uint8) {
		tree := &RBTree[NativeOrdered[uint8], uint8]{
			KeyFn: func(x uint8) NativeOrdered[uint8] { return NativeOrdered[uint8]{Val: x} },
		}
		set := make(map[uint8]struct{})
		checkRBTree(t, set, tree)
		t.Logf("\n%s\n", tree.ASCIIArt())
		for _, b := range dat {
			ins := (b & 0b0100_0000) != 0
			val := b & 0b0011_1111
			if ins {
				t.Logf("Insert(%v)", val)
				tree.Insert(val)
				set[val] = struct{}{}
				t.Logf("\n%s\n", tree.ASCIIArt())
				node := tree.Lookup(NativeOrdered[uint8]{Val: val})
				require.NotNil(t, node)
				require.Equal(t, val, node.Value)
			} else {
				t.Logf("Delete(%v)", val)
				tree.Delete(NativeOrdered[uint8]{Val: val})
				delete(set, val)
				t.Logf("\n%s\n", tree.ASCIIArt())
				require.Nil(t, tree.Lookup(NativeOrdered[uint8]{Val: val}))
			}
			checkRBTree(t, set, tree)
		}
	})
}

type sizedVal struct {
	key     int
	size    int
	maxSize int
}

func TestRBTreeFindFirstLast(t *testing.T) {
	tree := &RBTree[NativeOrdered[int], *sizedVal]{
		KeyFn: func(v *sizedVal) NativeOrdered[int] { return NativeOrdered[int]{Val: v.key} },
		AttrFn: func(node *RBNode[*sizedVal]) {
			max := node.Value.size
			if node.Left != nil && node.Left.Value.maxSize > max {
				max = node.Left.Value.maxSize
			}
			if node.Right != nil && node.Right.Value.maxSize > max {
				max = node.Right.Value.maxSize
			}
			node.Value.maxSize = max
		},
	}

	for _, v := range []*sizedVal{{key: 1, size: 10}, {key: 2, size: 100}, {key: 3, size: 5}, {key: 4, size: 50}, {key: 5, size: 1}} {
		node := tree.Insert(v)
		tree.Refresh(node)
	}

	subtreeOK := func(threshold int) func(*RBNode[*sizedVal]) bool {
		return func(node *RBNode[*sizedVal]) bool { return node.Value.maxSize >= threshold }
	}
	nodeOK := func(threshold int) func(*sizedVal) bool {
		return func(v *sizedVal) bool { return v.size >= threshold }
	}

	first := tree.FindFirst(nodeOK(50), subtreeOK(50))
	require.NotNil(t, first)
	require.Equal(t, 2, first.Value.key)

	last := tree.FindLast(nodeOK(5), subtreeOK(5))
	require.NotNil(t, last)
	require.Equal(t, 4, last.Value.key)

	require.Nil(t, tree.FindFirst(nodeOK(1000), subtreeOK(1000)))
}
