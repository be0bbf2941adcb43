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
	"fmt"
	"regexp"

	"github.com/AleutianAI/AleutianBench/services/bench/descriptor"
)

// ClassNameFilter includes or excludes classes by qualified name.
//
// A class passes when it matches at least one include pattern (or there are
// none) and no exclude pattern.
type ClassNameFilter struct {
	Include []*regexp.Regexp
	Exclude []*regexp.Regexp
}

// NewClassNameFilter compiles include and exclude patterns.
func NewClassNameFilter(include, exclude []string) (ClassNameFilter, error) {
	var f ClassNameFilter
	for _, p := range include {
		re, err := regexp.Compile(p)
		if err != nil {
			return ClassNameFilter{}, fmt.Errorf("%w: include %q: %v", ErrInvalidFilter, p, err)
		}
		f.Include = append(f.Include, re)
	}
	for _, p := range exclude {
		re, err := regexp.Compile(p)
		if err != nil {
			return ClassNameFilter{}, fmt.Errorf("%w: exclude %q: %v", ErrInvalidFilter, p, err)
		}
		f.Exclude = append(f.Exclude, re)
	}
	return f, nil
}

// IsZero reports whether the filter accepts everything.
func (f ClassNameFilter) IsZero() bool {
	return len(f.Include) == 0 && len(f.Exclude) == 0
}

// Accepts reports whether the qualified class name passes.
func (f ClassNameFilter) Accepts(className string) bool {
	for _, re := range f.Exclude {
		if re.MatchString(className) {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, re := range f.Include {
		if re.MatchString(className) {
			return true
		}
	}
	return false
}

// Apply removes the subtree of every class node the filter rejects and
// returns how many nodes were removed, subtrees included.
func (f ClassNameFilter) Apply(tree *descriptor.Tree) int {
	if f.IsZero() {
		return 0
	}
	before := tree.Len()
	for _, n := range tree.Classes() {
		if n.Kind == descriptor.KindClass && !f.Accepts(n.Class.QualifiedName()) {
			tree.Remove(n)
		}
	}
	return before - tree.Len()
}
