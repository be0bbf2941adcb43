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
	"fmt"
	"sync"

	"github.com/AleutianAI/AleutianBench/services/bench/descriptor"
	"github.com/AleutianAI/AleutianBench/services/bench/harness"
)

// identityCache maps the flat "pkg.Class.Method" names a harness reports
// back to selected tree nodes.
//
// Thread Safety: Safe for concurrent use. Each flat name is resolved
// once; concurrent first lookups agree on the stored node.
type identityCache struct {
	tree     *descriptor.Tree
	selected []*descriptor.Node
	resolved sync.Map // flat name -> *descriptor.Node, nil when unknown
}

func newIdentityCache(tree *descriptor.Tree, selected []*descriptor.Node) *identityCache {
	return &identityCache{tree: tree, selected: selected}
}

// Resolve returns the node for one reported execution: the method node
// for plain methods, the fixture whose parameters equal the reported ones
// for parametrized methods.
func (c *identityCache) Resolve(params harness.BenchmarkParams) (*descriptor.Node, error) {
	v, ok := c.resolved.Load(params.Benchmark)
	if !ok {
		v, _ = c.resolved.LoadOrStore(params.Benchmark, c.scan(params.Benchmark))
	}
	n := v.(*descriptor.Node)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrIdentityUnresolved, params.Benchmark)
	}
	if n.Kind != descriptor.KindParametrizedMethod {
		return n, nil
	}

	reported := params.ParamMap()
	for _, f := range c.tree.Children(n) {
		if f.Params.Matches(reported) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrIdentityUnresolved, params)
}

func (c *identityCache) scan(name string) *descriptor.Node {
	for _, n := range c.selected {
		if n.Method != nil && n.Method.Identity() == name {
			return n
		}
	}
	return nil
}
