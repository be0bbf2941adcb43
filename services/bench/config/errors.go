// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidProperty is returned when a property value is out of range
	// or cannot be parsed.
	ErrInvalidProperty = errors.New("invalid configuration property")

	// ErrInvalidFile is returned for a malformed properties file.
	ErrInvalidFile = errors.New("invalid configuration file")
)

// PropertyError ties a parse failure to the property it came from.
type PropertyError struct {
	Name  string
	Value string
	Err   error
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("property %s=%q: %v", e.Name, e.Value, e.Err)
}

func (e *PropertyError) Unwrap() []error {
	return []error{ErrInvalidProperty, e.Err}
}
