// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package descriptor

import (
	"fmt"
)

// Tree is the discovered benchmark hierarchy.
//
// Description:
//
//	Nodes live in a slice and are addressed by integer index. An id index
//	(string form of UniqueID -> node index) enforces that a logical node
//	exists at most once. Removal detaches a subtree; Compact then rebuilds
//	the slice densely in pre-order so indices are stable for the rest of
//	the tree's life.
//
// Thread Safety:
//
//	Not safe for concurrent mutation. Once built and compacted the tree is
//	treated as immutable and may be read from any goroutine.
type Tree struct {
	engineID string
	nodes    []*Node
	byID     map[string]int
}

// NewTree returns a tree holding only the engine root.
func NewTree(engineID string) *Tree {
	t := &Tree{
		engineID: engineID,
		byID:     make(map[string]int),
	}
	id := NewUniqueID(engineID)
	root := &Node{
		Index:       0,
		Kind:        KindEngine,
		ID:          id,
		DisplayName: engineID,
		Parent:      -1,
		key:         id.String(),
	}
	t.nodes = append(t.nodes, root)
	t.byID[root.key] = 0
	return t
}

// EngineID returns the engine id the root was created with.
func (t *Tree) EngineID() string {
	return t.engineID
}

// Root returns the engine root.
func (t *Tree) Root() *Node {
	return t.nodes[0]
}

// Node returns the live node at index i, or nil.
func (t *Tree) Node(i int) *Node {
	if i < 0 || i >= len(t.nodes) {
		return nil
	}
	n := t.nodes[i]
	if n.detached {
		return nil
	}
	return n
}

// Cap returns one past the highest index in use. Index-keyed state sized
// with Cap covers every node.
func (t *Tree) Cap() int {
	return len(t.nodes)
}

// Len returns the number of live nodes, root included.
func (t *Tree) Len() int {
	return len(t.byID)
}

// Lookup finds a live node by id.
func (t *Tree) Lookup(id UniqueID) (*Node, bool) {
	return t.LookupKey(id.String())
}

// LookupKey finds a live node by the string form of its id.
func (t *Tree) LookupKey(key string) (*Node, bool) {
	i, ok := t.byID[key]
	if !ok {
		return nil, false
	}
	return t.nodes[i], true
}

// Add registers n as a child of parent.
//
// Description:
//
//	If a node with n.ID is already registered, that node is returned and
//	created is false; n is discarded. Otherwise n is assigned the next
//	index, linked under parent and returned with created true.
//
// Inputs:
//
//	parent - A live node of this tree.
//	n - The node template. n.ID must be parent.ID plus one segment.
//
// Outputs:
//
//	*Node - The registered node.
//	bool - Whether a new node was created.
//	error - ErrNotChild if n.ID does not extend parent.ID by one segment.
func (t *Tree) Add(parent *Node, n *Node) (*Node, bool, error) {
	if len(n.ID) != len(parent.ID)+1 || !n.ID.HasPrefix(parent.ID) {
		return nil, false, fmt.Errorf("%w: %s under %s", ErrNotChild, n.ID, parent.ID)
	}

	key := n.ID.String()
	if i, ok := t.byID[key]; ok {
		return t.nodes[i], false, nil
	}

	n.Index = len(t.nodes)
	n.Parent = parent.Index
	n.Children = nil
	n.key = key
	n.detached = false
	t.nodes = append(t.nodes, n)
	t.byID[key] = n.Index
	parent.Children = append(parent.Children, n.Index)
	return n, true, nil
}

// Children returns the live children of n in insertion order.
func (t *Tree) Children(n *Node) []*Node {
	out := make([]*Node, 0, len(n.Children))
	for _, i := range n.Children {
		if c := t.Node(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// ParentOf returns n's parent. The root has none.
func (t *Tree) ParentOf(n *Node) (*Node, bool) {
	if n.Parent < 0 {
		return nil, false
	}
	return t.nodes[n.Parent], true
}

// Ancestors returns n's ancestors, nearest first, ending with the root.
func (t *Tree) Ancestors(n *Node) []*Node {
	var out []*Node
	for p, ok := t.ParentOf(n); ok; p, ok = t.ParentOf(p) {
		out = append(out, p)
	}
	return out
}

// Classes returns the top-level class nodes.
func (t *Tree) Classes() []*Node {
	return t.Children(t.Root())
}

// Walk visits every live node in pre-order. Returning false from fn skips
// the node's children.
func (t *Tree) Walk(fn func(*Node) bool) {
	t.WalkFrom(t.Root(), fn)
}

// WalkFrom visits n and its live descendants in pre-order.
func (t *Tree) WalkFrom(n *Node, fn func(*Node) bool) {
	if n == nil || n.detached {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range t.Children(n) {
		t.WalkFrom(c, fn)
	}
}

// Leaves returns the executable leaves under n (n itself if it is a leaf).
func (t *Tree) Leaves(n *Node) []*Node {
	var out []*Node
	t.WalkFrom(n, func(c *Node) bool {
		if c.Kind.IsLeaf() {
			out = append(out, c)
		}
		return true
	})
	return out
}

// CountLeaves counts the executable leaves under n accepted by include. A
// nil include accepts every leaf.
func (t *Tree) CountLeaves(n *Node, include func(*Node) bool) int {
	count := 0
	t.WalkFrom(n, func(c *Node) bool {
		if c.Kind.IsLeaf() && (include == nil || include(c)) {
			count++
		}
		return true
	})
	return count
}

// Remove detaches n and its subtree. The root cannot be removed.
func (t *Tree) Remove(n *Node) {
	if n.IsRoot() || n.detached {
		return
	}
	if p, ok := t.ParentOf(n); ok {
		kept := p.Children[:0]
		for _, i := range p.Children {
			if i != n.Index {
				kept = append(kept, i)
			}
		}
		p.Children = kept
	}
	t.detach(n)
}

func (t *Tree) detach(n *Node) {
	for _, i := range n.Children {
		if c := t.Node(i); c != nil {
			t.detach(c)
		}
	}
	delete(t.byID, n.key)
	n.detached = true
}

// Prune removes, bottom-up, every container with no executable leaf
// descendant. It returns the number of nodes removed. The root is kept even
// when empty.
func (t *Tree) Prune() int {
	before := t.Len()
	t.prune(t.Root())
	return before - t.Len()
}

// prune reports whether n still has an executable leaf beneath it.
func (t *Tree) prune(n *Node) bool {
	if n.Kind.IsLeaf() {
		return true
	}
	hasLeaf := false
	for _, c := range t.Children(n) {
		if t.prune(c) {
			hasLeaf = true
		}
	}
	if !hasLeaf && !n.IsRoot() {
		t.Remove(n)
	}
	return hasLeaf
}

// Compact rebuilds the node slice without detached nodes, in pre-order, and
// renumbers every index. Call it once after pruning; indices handed out
// before Compact are invalid afterwards.
func (t *Tree) Compact() {
	live := make([]*Node, 0, len(t.byID))
	remap := make(map[int]int, len(t.byID))
	t.Walk(func(n *Node) bool {
		remap[n.Index] = len(live)
		live = append(live, n)
		return true
	})

	byID := make(map[string]int, len(live))
	for i, n := range live {
		children := make([]int, 0, len(n.Children))
		for _, c := range n.Children {
			if ni, ok := remap[c]; ok {
				children = append(children, ni)
			}
		}
		n.Children = children
		if n.Parent >= 0 {
			n.Parent = remap[n.Parent]
		}
		n.Index = i
		byID[n.key] = i
	}
	t.nodes = live
	t.byID = byID
}
