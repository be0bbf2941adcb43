// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import "errors"

var (
	// ErrNotExecutable is returned by Execute for trees whose classes are
	// not registered at runtime, such as trees discovered from source.
	ErrNotExecutable = errors.New("tree contains classes without a runtime binding")

	// ErrInvalidConfiguration is returned by Execute when the run
	// properties do not parse or validate.
	ErrInvalidConfiguration = errors.New("invalid benchmark configuration")

	// ErrInvalidRequest is returned for malformed discovery requests.
	ErrInvalidRequest = errors.New("invalid discovery request")
)
