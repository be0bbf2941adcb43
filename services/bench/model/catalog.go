// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import "sync"

// Catalog is an insertion-ordered Program backed by a map.
//
// Thread Safety: Safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	byName  map[string]*Class
	ordered []*Class
}

// NewCatalog returns a catalog holding classes in the given order.
func NewCatalog(classes ...*Class) *Catalog {
	c := &Catalog{byName: make(map[string]*Class)}
	for _, cls := range classes {
		c.Add(cls)
	}
	return c
}

// Add inserts cls, replacing any class with the same qualified name in place.
func (c *Catalog) Add(cls *Class) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := cls.QualifiedName()
	if _, exists := c.byName[name]; exists {
		for i, existing := range c.ordered {
			if existing.QualifiedName() == name {
				c.ordered[i] = cls
			}
		}
	} else {
		c.ordered = append(c.ordered, cls)
	}
	c.byName[name] = cls
}

// Classes implements Program.
func (c *Catalog) Classes(scope Scope) []*Class {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Class, 0, len(c.ordered))
	for _, cls := range c.ordered {
		if scope.Matches(cls) {
			out = append(out, cls)
		}
	}
	return out
}

// LookupClass implements Program.
func (c *Catalog) LookupClass(qualifiedName string) (*Class, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cls, ok := c.byName[qualifiedName]
	return cls, ok
}

// Len returns the number of classes.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ordered)
}
