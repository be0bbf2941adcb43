// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package publish

import "errors"

var (
	// ErrUnknownWriter is returned by Resolve when no factory accepts a URI.
	ErrUnknownWriter = errors.New("no results writer for uri")

	// ErrInvalidURI is returned by a factory that recognizes a scheme but
	// cannot parse the rest of the URI.
	ErrInvalidURI = errors.New("invalid results uri")
)

// WriteError reports one writer failure.
type WriteError struct {
	URI string
	Err error
}

func (e *WriteError) Error() string {
	return "Cannot save benchmark results to '" + e.URI + "': " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
