// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discovery

import (
	"github.com/AleutianAI/AleutianBench/services/bench/descriptor"
	"github.com/AleutianAI/AleutianBench/services/bench/model"
)

// ElementResolver turns program elements or id segments into tree nodes for
// one node kind.
type ElementResolver interface {
	// ResolveElement returns the nodes for element under parent, or nil if
	// this resolver does not handle the (element, parent kind) pair. Calling
	// it again for an already registered id returns the registered node.
	ResolveElement(element any, parent *descriptor.Node) []*descriptor.Node

	// ResolveUniqueID reconstructs the child of parent named by segment
	// without rescanning the program. It re-validates candidacy and returns
	// false if the element is gone or no longer qualifies.
	ResolveUniqueID(segment descriptor.Segment, parent *descriptor.Node) (*descriptor.Node, bool)
}

// resolvers returns the class, method and fixture resolvers bound to tree
// and program, in that order.
func resolvers(tree *descriptor.Tree, program model.Program) []ElementResolver {
	return []ElementResolver{
		&classResolver{tree: tree, program: program},
		&methodResolver{tree: tree},
		&fixtureResolver{tree: tree},
	}
}

// register adds n under parent, returning the existing node for a known id.
func register(tree *descriptor.Tree, parent *descriptor.Node, n *descriptor.Node) *descriptor.Node {
	registered, _, err := tree.Add(parent, n)
	if err != nil {
		// Ids are always built from parent.ID here.
		panic(err)
	}
	return registered
}

// =============================================================================
// Class resolver
// =============================================================================

type classResolver struct {
	tree    *descriptor.Tree
	program model.Program
}

func (r *classResolver) ResolveElement(element any, parent *descriptor.Node) []*descriptor.Node {
	c, ok := element.(*model.Class)
	if !ok || parent.Kind != descriptor.KindEngine || !IsBenchmarkClass(c) {
		return nil
	}
	return []*descriptor.Node{r.node(c, parent)}
}

func (r *classResolver) ResolveUniqueID(segment descriptor.Segment, parent *descriptor.Node) (*descriptor.Node, bool) {
	if segment.Type != descriptor.SegmentClass || parent.Kind != descriptor.KindEngine {
		return nil, false
	}
	c, ok := r.program.LookupClass(segment.Value)
	if !ok || !IsBenchmarkClass(c) {
		return nil, false
	}
	return r.node(c, parent), true
}

func (r *classResolver) node(c *model.Class, parent *descriptor.Node) *descriptor.Node {
	return register(r.tree, parent, &descriptor.Node{
		Kind:        descriptor.KindClass,
		ID:          parent.ID.AppendSegment(descriptor.SegmentClass, c.QualifiedName()),
		DisplayName: c.SimpleName(),
		Class:       c,
	})
}

// =============================================================================
// Method resolver
// =============================================================================

type methodResolver struct {
	tree *descriptor.Tree
}

func (r *methodResolver) ResolveElement(element any, parent *descriptor.Node) []*descriptor.Node {
	m, ok := element.(*model.Method)
	if !ok || parent.Kind != descriptor.KindClass || !IsBenchmarkMethod(m) || !ownsMethod(parent.Class, m) {
		return nil
	}
	return []*descriptor.Node{r.node(m, parent)}
}

func (r *methodResolver) ResolveUniqueID(segment descriptor.Segment, parent *descriptor.Node) (*descriptor.Node, bool) {
	if segment.Type != descriptor.SegmentMethod || parent.Kind != descriptor.KindClass {
		return nil, false
	}
	m, ok := parent.Class.Method(segment.Value)
	if !ok || !IsBenchmarkMethod(m) {
		return nil, false
	}
	return r.node(m, parent), true
}

func (r *methodResolver) node(m *model.Method, parent *descriptor.Node) *descriptor.Node {
	kind := descriptor.KindMethod
	if IsParametrized(m) && len(Arguments(m)) > 0 {
		kind = descriptor.KindParametrizedMethod
	}
	return register(r.tree, parent, &descriptor.Node{
		Kind:        kind,
		ID:          parent.ID.AppendSegment(descriptor.SegmentMethod, m.Descriptor()),
		DisplayName: m.Name,
		Method:      m,
	})
}

func ownsMethod(c *model.Class, m *model.Method) bool {
	for _, candidate := range c.Methods {
		if candidate == m {
			return true
		}
	}
	return false
}

// =============================================================================
// Fixture resolver
// =============================================================================

type fixtureResolver struct {
	tree *descriptor.Tree
}

func (r *fixtureResolver) ResolveElement(element any, parent *descriptor.Node) []*descriptor.Node {
	m, ok := element.(*model.Method)
	if !ok || parent.Kind != descriptor.KindParametrizedMethod || parent.Method != m {
		return nil
	}
	fixtures := Expand(m)
	out := make([]*descriptor.Node, 0, len(fixtures))
	for _, params := range fixtures {
		out = append(out, r.node(m, params, parent))
	}
	return out
}

func (r *fixtureResolver) ResolveUniqueID(segment descriptor.Segment, parent *descriptor.Node) (*descriptor.Node, bool) {
	if segment.Type != descriptor.SegmentFixture || parent.Kind != descriptor.KindParametrizedMethod {
		return nil, false
	}
	for _, params := range Expand(parent.Method) {
		if params.DisplayName() == segment.Value {
			return r.node(parent.Method, params, parent), true
		}
	}
	return nil, false
}

func (r *fixtureResolver) node(m *model.Method, params descriptor.ParamMap, parent *descriptor.Node) *descriptor.Node {
	name := params.DisplayName()
	return register(r.tree, parent, &descriptor.Node{
		Kind:        descriptor.KindFixture,
		ID:          parent.ID.AppendSegment(descriptor.SegmentFixture, name),
		DisplayName: name,
		Method:      m,
		Params:      params,
	})
}
