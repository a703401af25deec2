//go:build property

package layout

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// consistent checks that every sibling chain in the tree is a well-formed
// doubly linked list whose ends match the parent's first/last pointers.
func consistent(t *Tree) bool {
	for id := NodeID(0); int(id) < t.Len(); id++ {
		prev := NoNode
		for c := t.FirstChild(id); c != NoNode; c = t.Next(c) {
			if t.Parent(c) != id || t.Prev(c) != prev {
				return false
			}
			prev = c
		}
		if t.LastChild(id) != prev {
			return false
		}
	}
	return true
}

// TestProperty_DetachKeepsLinksConsistent appends a random number of children
// under the root and detaches a random subset of them.
func TestProperty_DetachKeepsLinksConsistent(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("detach leaves neighbors linked and node orphaned", prop.ForAll(
		func(n int, picks []int) bool {
			tr := NewTree()
			ids := make([]NodeID, n)
			for i := range ids {
				ids[i] = tr.NewNode([]string{"x"}, 0)
				tr.AppendChild(tr.Root(), ids[i])
			}
			for _, p := range picks {
				id := ids[p%n]
				prev, next := tr.Prev(id), tr.Next(id)
				tr.Detach(id)
				if tr.Parent(id) != NoNode || tr.Next(id) != NoNode || tr.Prev(id) != NoNode {
					return false
				}
				if prev != NoNode && tr.Next(prev) != next {
					return false
				}
				if next != NoNode && tr.Prev(next) != prev {
					return false
				}
				if !consistent(tr) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 12),
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	properties.Property("re-parenting keeps every chain consistent", prop.ForAll(
		func(moves []int) bool {
			tr := NewTree()
			ids := []NodeID{tr.Root()}
			for i := 0; i < 8; i++ {
				id := tr.NewNode([]string{"x"}, 0)
				tr.AppendChild(tr.Root(), id)
				ids = append(ids, id)
			}
			for i := 0; i+1 < len(moves); i += 2 {
				child := ids[1+moves[i]%8]
				parent := ids[moves[i+1]%len(ids)]
				if parent == child || isAncestor(tr, child, parent) {
					continue
				}
				tr.AppendChild(parent, child)
			}
			return consistent(tr)
		},
		gen.SliceOf(gen.IntRange(0, 1000)),
	))

	properties.TestingRun(t)
}

func isAncestor(t *Tree, a, b NodeID) bool {
	for p := t.Parent(b); p != NoNode; p = t.Parent(p) {
		if p == a {
			return true
		}
	}
	return false
}
