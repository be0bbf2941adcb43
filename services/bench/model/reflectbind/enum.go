// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reflectbind

import "reflect"

// RegisterEnum declares the constants of T in order. Parameter fields of
// type T without explicit values expand to these constants, rendered with
// fmt.Sprint (so a String method is honored).
//
// Example:
//
//	type Codec int
//	const (JSON Codec = iota; Gob)
//	func (c Codec) String() string { ... }
//
//	reflectbind.RegisterEnum(reflectbind.Default, JSON, Gob)
func RegisterEnum[T comparable](r *Registry, values ...T) {
	rv := make([]reflect.Value, len(values))
	for i, v := range values {
		rv[i] = reflect.ValueOf(v)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types.registerEnum(reflect.TypeFor[T](), rv)
}
