// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package execution

import (
	"cmp"
	"slices"
	"sync"

	"github.com/AleutianAI/AleutianBench/services/bench/descriptor"
)

// progress holds the per-node execution state of one run in slices keyed
// by node index.
//
// Thread Safety: Safe for concurrent use.
type progress struct {
	tree *descriptor.Tree

	mu       sync.Mutex
	selected []bool // method-level nodes handed to the harness
	expected []int  // remaining selected leaves, -1 until computed
	started  []bool
	finished []bool
}

func newProgress(tree *descriptor.Tree) *progress {
	n := tree.Cap()
	p := &progress{
		tree:     tree,
		selected: make([]bool, n),
		expected: make([]int, n),
		started:  make([]bool, n),
		finished: make([]bool, n),
	}
	for i := range p.expected {
		p.expected[i] = -1
	}
	return p
}

func (p *progress) selectMethod(n *descriptor.Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selected[n.Index] = true
}

// markStarted records n as started and reports whether it was not before.
func (p *progress) markStarted(n *descriptor.Node) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started[n.Index] {
		return false
	}
	p.started[n.Index] = true
	return true
}

// markFinished records n as finished and reports whether it was started
// and not finished before.
func (p *progress) markFinished(n *descriptor.Node) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started[n.Index] || p.finished[n.Index] {
		return false
	}
	p.finished[n.Index] = true
	return true
}

// complete decrements the expected leaf count of every container above
// leaf, below the root, and returns the containers that reached zero,
// nearest first.
func (p *progress) complete(leaf *descriptor.Node) []*descriptor.Node {
	p.mu.Lock()
	defer p.mu.Unlock()

	var done []*descriptor.Node
	for _, a := range p.tree.Ancestors(leaf) {
		if a.IsRoot() {
			break
		}
		if p.expected[a.Index] < 0 {
			p.expected[a.Index] = p.tree.CountLeaves(a, p.isSelectedLeaf)
		}
		if p.expected[a.Index] == 0 {
			continue
		}
		p.expected[a.Index]--
		if p.expected[a.Index] == 0 {
			done = append(done, a)
		}
	}
	return done
}

// isSelectedLeaf is called with mu held.
func (p *progress) isSelectedLeaf(n *descriptor.Node) bool {
	switch n.Kind {
	case descriptor.KindMethod:
		return p.selected[n.Index]
	case descriptor.KindFixture:
		return n.Parent >= 0 && p.selected[n.Parent]
	default:
		return false
	}
}

// open returns every started, unfinished node other than the root,
// deepest first.
func (p *progress) open() []*descriptor.Node {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*descriptor.Node
	for i, started := range p.started {
		if !started || p.finished[i] {
			continue
		}
		if n := p.tree.Node(i); n != nil && !n.IsRoot() {
			out = append(out, n)
		}
	}
	slices.SortStableFunc(out, func(a, b *descriptor.Node) int {
		if c := cmp.Compare(len(b.ID), len(a.ID)); c != 0 {
			return c
		}
		return cmp.Compare(b.Index, a.Index)
	})
	return out
}

// anyStarted reports whether a node below the root was started.
func (p *progress) anyStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, started := range p.started {
		if started && i != p.tree.Root().Index {
			return true
		}
	}
	return false
}
