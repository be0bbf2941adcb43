// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package execution

import (
	"errors"
	"strings"
)

var (
	// ErrIdentityUnresolved is returned when the harness reports a
	// benchmark the selected tree does not contain. It means the include
	// patterns and the harness's echoed identities diverged, and it fails
	// the whole run.
	ErrIdentityUnresolved = errors.New("harness identity does not match any selected node")

	// ErrBridgeReused is returned by Execute on a Bridge that already ran.
	ErrBridgeReused = errors.New("bridge already executed")

	// ErrNotCompleted finishes nodes the harness started but never ended.
	ErrNotCompleted = errors.New("benchmark did not complete")
)

// BenchmarkError is the failure of one benchmark execution, with the
// diagnostic lines the harness printed while it ran.
type BenchmarkError struct {
	Benchmark string
	Err       error
	Output    []string
}

func (e *BenchmarkError) Error() string {
	msg := "benchmark " + e.Benchmark + " failed"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BenchmarkError) Unwrap() error {
	return e.Err
}

// Diagnostics joins the captured output.
func (e *BenchmarkError) Diagnostics() string {
	return strings.Join(e.Output, "\n")
}
