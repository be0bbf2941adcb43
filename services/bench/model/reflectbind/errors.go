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

import "errors"

var (
	// ErrNotSuite is returned when a registered value is not a named struct
	// or a pointer to one.
	ErrNotSuite = errors.New("not a benchmark suite")

	// ErrDuplicateSuite is returned when a suite type is registered twice.
	ErrDuplicateSuite = errors.New("suite already registered")

	// ErrUnknownSuite is returned by Prepare for an unregistered class.
	ErrUnknownSuite = errors.New("unknown suite")

	// ErrUnsupportedParam is returned when a parameter value cannot be
	// assigned to its field.
	ErrUnsupportedParam = errors.New("unsupported parameter")
)
