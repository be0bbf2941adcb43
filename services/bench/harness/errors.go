// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package harness

import "errors"

var (
	// ErrUnsupportedMode is returned for unknown benchmark or warmup modes.
	ErrUnsupportedMode = errors.New("unsupported mode")

	// ErrInvalidPattern is returned when an include or exclude pattern does
	// not compile.
	ErrInvalidPattern = errors.New("invalid benchmark pattern")

	// ErrNoMatchingBenchmarks is returned when the patterns select nothing.
	ErrNoMatchingBenchmarks = errors.New("no matching benchmarks")

	// ErrBenchmarkPanicked wraps a recovered panic from a benchmark body.
	ErrBenchmarkPanicked = errors.New("benchmark panicked")

	// ErrBenchmarkFailed is reported when testing.Benchmark returns no
	// result, which happens after b.Fatal, b.FailNow or b.Skip.
	ErrBenchmarkFailed = errors.New("benchmark failed or was skipped")

	// ErrIterationTimeout is reported when an iteration exceeds the timeout.
	ErrIterationTimeout = errors.New("iteration timed out")
)
