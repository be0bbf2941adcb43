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
	"errors"
	"fmt"
)

var (
	// ErrInvalidSelector is returned when a selector string cannot be parsed.
	ErrInvalidSelector = errors.New("invalid selector")

	// ErrInvalidFilter is returned when a class-name filter pattern does not
	// compile.
	ErrInvalidFilter = errors.New("invalid class name filter")

	// ErrClassNotFound is recorded when a selector names an unknown class or
	// a class without benchmark methods.
	ErrClassNotFound = errors.New("benchmark class not found")

	// ErrMethodNotFound is recorded when a method selector names an unknown
	// or non-benchmark method.
	ErrMethodNotFound = errors.New("benchmark method not found")

	// ErrForeignEngine is recorded when a unique id belongs to another engine.
	ErrForeignEngine = errors.New("unique id belongs to another engine")

	// ErrPartialResolution is recorded when only a prefix of a unique id
	// could be resolved.
	ErrPartialResolution = errors.New("unique id only partially resolved")
)

// ResolutionError ties a discovery failure to the selector that caused it.
type ResolutionError struct {
	Selector Selector
	Err      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Selector, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
