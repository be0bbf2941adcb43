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

import (
	"errors"
	"strings"
)

// ErrInvalidCondition is returned by built-in conditions when an element
// carries a malformed attribute.
var ErrInvalidCondition = errors.New("invalid condition attribute")

// EvaluationError reports an extension that failed instead of deciding.
type EvaluationError struct {
	Extension string
	Err       error
}

func (e *EvaluationError) Error() string {
	msg := "Failed to evaluate condition [" + e.Extension + "]"
	if e.Err != nil && strings.TrimSpace(e.Err.Error()) != "" {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
