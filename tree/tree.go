// Package tree is a rooted tree of payloads used to merge explored runs.
package tree

import (
	"fmt"
	"strings"
)

// A node of a tree.
//
// Children are kept in insertion order. Two payloads are considered the same node when eq returns true.
type Tree[T any] struct {
	payload  T
	parent   *Tree[T]
	children []*Tree[T]
	depth    int
	eq       func(a, b T) bool
}

// Creates a root node with the payload
func New[T any](payload T, eq func(a, b T) bool) *Tree[T] {
	return &Tree[T]{
		payload: payload,
		eq:      eq,
	}
}

// Returns the number of nodes in the tree rooted at t
func (t *Tree[T]) Len() int {
	n := 1
	for _, child := range t.children {
		n += child.Len()
	}
	return n
}

// Adds a new child without checking for an existing equal child
func (t *Tree[T]) AddChild(payload T) *Tree[T] {
	node := &Tree[T]{
		payload: payload,
		parent:  t,
		depth:   t.depth + 1,
		eq:      t.eq,
	}
	t.children = append(t.children, node)
	return node
}

// Returns the child equal to payload, adding it if there is none.
// The second return value is true if the child was added.
func (t *Tree[T]) Merge(payload T) (*Tree[T], bool) {
	if child := t.Child(payload); child != nil {
		return child, false
	}
	return t.AddChild(payload), true
}

// Returns the first child equal to the payload, or nil
func (t *Tree[T]) Child(payload T) *Tree[T] {
	for _, node := range t.children {
		if t.eq(payload, node.payload) {
			return node
		}
	}
	return nil
}

func (t *Tree[T]) String() string {
	out := strings.Builder{}
	t.Walk(func(n *Tree[T]) bool {
		out.WriteString(strings.Repeat("-", n.depth))
		fmt.Fprintf(&out, "%v\n", n.payload)
		return true
	})
	return out.String()
}

func (t *Tree[T]) IsRoot() bool {
	return t.parent == nil
}

func (t *Tree[T]) IsLeaf() bool {
	return len(t.children) == 0
}

// Returns the leaves below t, or t itself if it is a leaf
func (t *Tree[T]) Leaves() []*Tree[T] {
	if t.IsLeaf() {
		return []*Tree[T]{t}
	}
	leaves := []*Tree[T]{}
	for _, child := range t.children {
		leaves = append(leaves, child.Leaves()...)
	}
	return leaves
}

// Visits the nodes depth first in pre-order. Returning false from visit skips the subtree of that node.
func (t *Tree[T]) Walk(visit func(*Tree[T]) bool) {
	if !visit(t) {
		return
	}
	for _, child := range t.children {
		child.Walk(visit)
	}
}

// Returns the first node in pre-order whose payload satisfies match, or nil
func (t *Tree[T]) Find(match func(T) bool) *Tree[T] {
	if match(t.payload) {
		return t
	}
	for _, child := range t.children {
		if found := child.Find(match); found != nil {
			return found
		}
	}
	return nil
}

// Returns the payloads from the root down to and including t
func (t *Tree[T]) Path() []T {
	path := make([]T, t.depth+1)
	for n := t; n != nil; n = n.parent {
		path[n.depth] = n.payload
	}
	return path
}

func (t *Tree[T]) Payload() T {
	return t.payload
}

func (t *Tree[T]) Parent() *Tree[T] {
	return t.parent
}

func (t *Tree[T]) Depth() int {
	return t.depth
}

func (t *Tree[T]) Children() []*Tree[T] {
	return t.children
}

// Writes the tree in Newick format, labelling every node with label
func (t *Tree[T]) Newick(label func(T) string) string {
	out := strings.Builder{}
	t.newick(&out, label)
	out.WriteString(";")
	return out.String()
}

func (t *Tree[T]) newick(out *strings.Builder, label func(T) string) {
	if !t.IsLeaf() {
		out.WriteString("(")
		for i, child := range t.children {
			if i > 0 {
				out.WriteString(",")
			}
			child.newick(out, label)
		}
		out.WriteString(")")
	}
	fmt.Fprintf(out, "%q", label(t.payload))
}
