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

import (
	"fmt"
	"strings"
	"time"
)

// Mode is the benchmark measurement mode.
type Mode string

const (
	// ModeAverageTime reports the average time per operation.
	ModeAverageTime Mode = "avgt"

	// ModeThroughput reports operations per second.
	ModeThroughput Mode = "thrpt"

	// ModeSingleShot times single invocations without a loop.
	ModeSingleShot Mode = "ss"
)

// ParseMode accepts the short labels ("avgt", "thrpt", "ss") and the long
// names ("AverageTime", "Throughput", "SingleShotTime"), case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "avgt", "averagetime":
		return ModeAverageTime, nil
	case "thrpt", "throughput":
		return ModeThroughput, nil
	case "ss", "singleshottime":
		return ModeSingleShot, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
	}
}

// Unit returns the score unit of the mode.
func (m Mode) Unit() string {
	if m == ModeThroughput {
		return "ops/s"
	}
	return "ns/op"
}

// Label returns the long mode name.
func (m Mode) Label() string {
	switch m {
	case ModeThroughput:
		return "Throughput"
	case ModeSingleShot:
		return "SingleShotTime"
	default:
		return "AverageTime"
	}
}

// WarmupMode controls when warmup iterations run.
type WarmupMode string

const (
	// WarmupIndividual warms each benchmark right before measuring it.
	WarmupIndividual WarmupMode = "INDI"

	// WarmupBulk warms every selected benchmark before measuring any.
	WarmupBulk WarmupMode = "BULK"

	// WarmupBulkIndividual does both.
	WarmupBulkIndividual WarmupMode = "BULK_INDI"
)

// ParseWarmupMode parses a warmup mode, case-insensitively.
func ParseWarmupMode(s string) (WarmupMode, error) {
	switch m := WarmupMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case WarmupIndividual, WarmupBulk, WarmupBulkIndividual:
		return m, nil
	default:
		return "", fmt.Errorf("%w: warmup mode %q", ErrUnsupportedMode, s)
	}
}

func (m WarmupMode) bulk() bool {
	return m == WarmupBulk || m == WarmupBulkIndividual
}

func (m WarmupMode) individual() bool {
	return m == "" || m == WarmupIndividual || m == WarmupBulkIndividual
}

// Defaults applied by Options.WithDefaults.
const (
	DefaultWarmupIterations      = 1
	DefaultMeasurementIterations = 5
	DefaultIterationTime         = time.Second
	DefaultForks                 = 1
	DefaultTimeout               = 10 * time.Minute
)

// NoWarmup as Options.WarmupIterations disables warmup.
const NoWarmup = -1

// Options selects and tunes a run. Zero values mean "use the default";
// WarmupIterations takes NoWarmup to run without warmup.
type Options struct {
	// Includes are regular expressions matched against the flat benchmark
	// name. No includes selects everything.
	Includes []string
	Excludes []string

	// Fixtures restricts parametrized benchmarks, keyed by flat name, to
	// the listed FixtureKey values. Benchmarks without an entry run every
	// assignment.
	Fixtures map[string][]string

	WarmupIterations int
	WarmupTime       time.Duration
	WarmupBatchSize  int
	WarmupMode       WarmupMode

	MeasurementIterations int
	MeasurementTime       time.Duration
	MeasurementBatchSize  int

	Forks   int
	Timeout time.Duration
	Mode    Mode
}

// WithDefaults returns a copy with every unset tuning value filled in.
func (o Options) WithDefaults() Options {
	switch {
	case o.WarmupIterations == 0:
		o.WarmupIterations = DefaultWarmupIterations
	case o.WarmupIterations < 0:
		o.WarmupIterations = 0
	}
	if o.WarmupTime <= 0 {
		o.WarmupTime = DefaultIterationTime
	}
	if o.WarmupMode == "" {
		o.WarmupMode = WarmupIndividual
	}
	if o.MeasurementIterations <= 0 {
		o.MeasurementIterations = DefaultMeasurementIterations
	}
	if o.MeasurementTime <= 0 {
		o.MeasurementTime = DefaultIterationTime
	}
	if o.Forks <= 0 {
		o.Forks = DefaultForks
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Mode == "" {
		o.Mode = ModeAverageTime
	}
	return o
}

func (o Options) warmupSettings() IterationSettings {
	return IterationSettings{Count: o.WarmupIterations, Time: o.WarmupTime, BatchSize: o.WarmupBatchSize}
}

func (o Options) measurementSettings() IterationSettings {
	return IterationSettings{Count: o.MeasurementIterations, Time: o.MeasurementTime, BatchSize: o.MeasurementBatchSize}
}

// benchtime renders the -test.benchtime value for one iteration.
func benchtime(mode Mode, s IterationSettings) string {
	switch {
	case s.BatchSize > 0:
		return fmt.Sprintf("%dx", s.BatchSize)
	case mode == ModeSingleShot:
		return "1x"
	default:
		return s.Time.String()
	}
}
