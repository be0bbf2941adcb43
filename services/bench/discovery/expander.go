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

// Argument is one named parameter axis of a parametrized method.
type Argument struct {
	Name string

	// Values is an ordered set; the first occurrence of a value fixes its
	// position.
	Values []string
}

// Arguments collects the merged argument list of m.
//
// Description:
//
//	Holder types are visited in order: m's declaring type, then each
//	parameter type of m, in declaration order. Each holder contributes its
//	parameter fields (visible fields before declared fields, duplicates by
//	name dropped). Fields sharing a name across holders merge into one
//	Argument whose position is fixed by the first occurrence and whose
//	values are the order-preserving union.
//
// Outputs:
//
//	[]Argument - The merged arguments. Empty when no holder contributes a
//	             field with values.
func Arguments(m *model.Method) []Argument {
	if m == nil || m.Declaring == nil {
		return nil
	}

	holders := make([]*model.Type, 0, len(m.Params)+1)
	if IsHolder(m.Declaring.Type) {
		holders = append(holders, m.Declaring.Type)
	}
	for _, p := range m.Params {
		if IsHolder(p) {
			holders = append(holders, p.Deref())
		}
	}

	var args []Argument
	index := make(map[string]int)
	seen := make(map[string]map[string]bool)
	for _, h := range holders {
		for _, f := range holderFields(h) {
			values := fieldValues(f)
			if len(values) == 0 {
				continue
			}
			i, ok := index[f.Name]
			if !ok {
				i = len(args)
				index[f.Name] = i
				seen[f.Name] = make(map[string]bool)
				args = append(args, Argument{Name: f.Name})
			}
			for _, v := range values {
				if seen[f.Name][v] {
					continue
				}
				seen[f.Name][v] = true
				args[i].Values = append(args[i].Values, v)
			}
		}
	}
	return args
}

// Expand returns every fixture of m's parameter matrix.
//
// Description:
//
//	Builds the cross-product of Arguments(m) with the first argument as the
//	outermost loop and the last as the innermost, so the last argument
//	varies fastest. The ordering is part of the contract: display order and
//	harness echo order both follow it.
//
// Outputs:
//
//	[]descriptor.ParamMap - n1 x n2 x ... x nk assignments, each exactly once.
//	                        Nil when m has no arguments.
func Expand(m *model.Method) []descriptor.ParamMap {
	return CrossProduct(Arguments(m))
}

// CrossProduct expands args in row-major order.
func CrossProduct(args []Argument) []descriptor.ParamMap {
	if len(args) == 0 {
		return nil
	}
	total := 1
	for _, a := range args {
		if len(a.Values) == 0 {
			return nil
		}
		total *= len(a.Values)
	}

	out := make([]descriptor.ParamMap, 0, total)
	current := make(descriptor.ParamMap, len(args))
	var fill func(depth int)
	fill = func(depth int) {
		if depth == len(args) {
			out = append(out, append(descriptor.ParamMap(nil), current...))
			return
		}
		for _, v := range args[depth].Values {
			current[depth] = descriptor.Param{Name: args[depth].Name, Value: v}
			fill(depth + 1)
		}
	}
	fill(0)
	return out
}
