// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package condition

import "sync"

// Registry holds extensions and an optional parent.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	parent *Registry

	mu    sync.RWMutex
	local []Extension
}

// NewRegistry returns a root registry.
func NewRegistry(extensions ...Extension) *Registry {
	return &Registry{local: extensions}
}

// NewChildRegistry returns a registry whose chain is local followed by the
// chain of parent. A nil parent yields a root registry.
func NewChildRegistry(parent *Registry, local ...Extension) *Registry {
	return &Registry{parent: parent, local: local}
}

// Register appends extensions to the local set.
func (r *Registry) Register(extensions ...Extension) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local = append(r.local, extensions...)
}

// Chain returns every extension in evaluation order.
func (r *Registry) Chain() []Extension {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	out := append([]Extension(nil), r.local...)
	r.mu.RUnlock()
	return append(out, r.parent.Chain()...)
}

// DefaultRegistry returns a registry with the built-in conditions.
func DefaultRegistry(env *EnvironmentCondition) *Registry {
	r := NewRegistry(DisabledCondition{}, OSCondition{})
	if env != nil {
		r.Register(env)
	}
	return r
}
