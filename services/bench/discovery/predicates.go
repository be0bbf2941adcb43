// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package discovery turns program elements and unique-id selectors into a
// deduplicated descriptor.Tree.
//
// The package is reflection-free: it classifies elements only through the
// Tags a model binding computed.
package discovery

import (
	"strings"

	"github.com/AleutianAI/AleutianBench/services/bench/model"
)

// IsBenchmarkMethod reports whether m carries the benchmark marker.
func IsBenchmarkMethod(m *model.Method) bool {
	return m != nil && m.Tags.Has(model.TagBenchmark)
}

// IsBenchmarkClass reports whether any method declared on or promoted into c
// is a benchmark method. A class without one is never a candidate.
func IsBenchmarkClass(c *model.Class) bool {
	if c == nil {
		return false
	}
	for _, m := range c.Methods {
		if IsBenchmarkMethod(m) {
			return true
		}
	}
	return false
}

// IsParametrized reports whether m's declaring type or any of its parameter
// types is a parameter holder.
func IsParametrized(m *model.Method) bool {
	if m == nil || m.Declaring == nil {
		return false
	}
	if IsHolder(m.Declaring.Type) {
		return true
	}
	for _, p := range m.Params {
		if IsHolder(p) {
			return true
		}
	}
	return false
}

// IsHolder reports whether t (or the type t points to) declares at least one
// parameter field whose values resolve to a non-empty set.
func IsHolder(t *model.Type) bool {
	t = t.Deref()
	if t == nil || !t.Tags.Has(model.TagStruct) {
		return false
	}
	for _, f := range holderFields(t) {
		if len(fieldValues(f)) > 0 {
			return true
		}
	}
	return false
}

// holderFields returns the parameter fields of t: visible fields first, then
// declared fields, with duplicate names dropped.
func holderFields(t *model.Type) []*model.Field {
	seen := make(map[string]bool, len(t.Fields)+len(t.DeclaredFields))
	var out []*model.Field
	for _, group := range [][]*model.Field{t.Fields, t.DeclaredFields} {
		for _, f := range group {
			if !f.IsParam() || seen[f.Name] {
				continue
			}
			seen[f.Name] = true
			out = append(out, f)
		}
	}
	return out
}

// fieldValues resolves a parameter field's value set.
//
// Explicit values are used verbatim. A field with no values, or a single
// blank one, falls back to the enumeration constants of its type. Anything
// else resolves to the empty set.
func fieldValues(f *model.Field) []string {
	if !declaresNoValues(f.Values) {
		return f.Values
	}
	if t := f.Type.Deref(); t.IsEnum() {
		return t.Enum
	}
	return nil
}

func declaresNoValues(values []string) bool {
	return len(values) == 0 || (len(values) == 1 && strings.TrimSpace(values[0]) == "")
}
