// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package descriptor

import "errors"

var (
	// ErrMalformedUniqueID is returned when a unique id string cannot be
	// parsed.
	ErrMalformedUniqueID = errors.New("malformed unique id")

	// ErrNotChild is returned when a node's id does not extend its parent's
	// id by exactly one segment.
	ErrNotChild = errors.New("node id is not a direct child of parent id")
)
