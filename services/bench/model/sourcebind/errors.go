// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sourcebind

import "errors"

var (
	// ErrNoModule is returned when no go.mod encloses the scanned directory.
	ErrNoModule = errors.New("no go.mod found")

	// ErrInvalidContent is returned for non UTF-8 input.
	ErrInvalidContent = errors.New("invalid content")
)
