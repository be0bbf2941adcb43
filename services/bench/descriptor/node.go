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
	"strings"

	"github.com/AleutianAI/AleutianBench/services/bench/model"
)

// Kind tags the variant of a Node.
type Kind uint8

const (
	// KindEngine is the root of a discovered tree.
	KindEngine Kind = iota

	// KindClass is a benchmark suite. Children are KindMethod or
	// KindParametrizedMethod.
	KindClass

	// KindMethod is a plain benchmark method. Always a leaf.
	KindMethod

	// KindParametrizedMethod is a benchmark method with a parameter matrix.
	// Children are KindFixture.
	KindParametrizedMethod

	// KindFixture is one parameter assignment. Always a leaf.
	KindFixture
)

// String returns the kind's wire name.
func (k Kind) String() string {
	switch k {
	case KindEngine:
		return "engine"
	case KindClass:
		return "class"
	case KindMethod:
		return "method"
	case KindParametrizedMethod:
		return "parametrized-method"
	case KindFixture:
		return "fixture"
	default:
		return "unknown"
	}
}

// IsLeaf reports whether nodes of this kind are executable leaves.
func (k Kind) IsLeaf() bool {
	return k == KindMethod || k == KindFixture
}

// IsContainer reports whether nodes of this kind own children.
func (k Kind) IsContainer() bool {
	return !k.IsLeaf()
}

// Param is one name=value assignment.
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ParamMap is an ordered parameter assignment.
type ParamMap []Param

// DisplayName renders "[a=1, b=2]" in assignment order.
func (p ParamMap) DisplayName() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, kv := range p {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(kv.Name)
		sb.WriteByte('=')
		sb.WriteString(kv.Value)
	}
	sb.WriteByte(']')
	return sb.String()
}

// Map returns the assignment as an unordered map.
func (p ParamMap) Map() map[string]string {
	m := make(map[string]string, len(p))
	for _, kv := range p {
		m[kv.Name] = kv.Value
	}
	return m
}

// Matches compares the assignment with an unordered map.
func (p ParamMap) Matches(other map[string]string) bool {
	if len(p) != len(other) {
		return false
	}
	for _, kv := range p {
		v, ok := other[kv.Name]
		if !ok || v != kv.Value {
			return false
		}
	}
	return true
}

// Node is one entry of a discovered tree.
//
// Nodes are allocated by Tree.Add and addressed by Index. A node refers to
// its parent and children by index only; the Tree owns them.
type Node struct {
	// Index is stable from Tree.Compact until the tree is discarded.
	Index int

	Kind        Kind
	ID          UniqueID
	DisplayName string

	// Parent is the parent's index, -1 for the root.
	Parent   int
	Children []int

	// Class is set on KindClass nodes.
	Class *model.Class

	// Method is set on KindMethod and KindParametrizedMethod nodes, and on
	// KindFixture nodes (the parametrized method the fixture belongs to).
	Method *model.Method

	// Params is set on KindFixture nodes.
	Params ParamMap

	key      string
	detached bool
}

// Key returns the node's id in string form.
func (n *Node) Key() string {
	return n.key
}

// IsRoot reports whether n is the engine root.
func (n *Node) IsRoot() bool {
	return n.Kind == KindEngine
}
