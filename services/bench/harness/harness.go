// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package harness runs benchmarks and reports progress through a flat,
// sequential callback stream.
//
// The Harness interface is all the execution bridge sees. InProcess is the
// built-in implementation on top of testing.Benchmark.
package harness

import (
	"context"
	"strings"
	"time"
)

// Harness executes the benchmarks selected by Options.
type Harness interface {
	// Run executes every benchmark whose flat name matches an include
	// pattern and no exclude pattern, reporting through cb. Callbacks are
	// delivered sequentially from one goroutine at a time.
	Run(ctx context.Context, opts Options, cb Callbacks) ([]Result, error)
}

// Param is one reported parameter assignment.
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// BenchmarkParams identifies one benchmark execution.
type BenchmarkParams struct {
	// Benchmark is the flat "pkg.Class.Method" identity.
	Benchmark string `json:"benchmark"`

	// Params is the fixture assignment in argument order. Empty for plain
	// methods.
	Params []Param `json:"params,omitempty"`

	Mode  Mode `json:"mode"`
	Forks int  `json:"forks"`

	Warmup      IterationSettings `json:"warmup"`
	Measurement IterationSettings `json:"measurement"`
}

// ParamMap returns Params as an unordered map.
func (p BenchmarkParams) ParamMap() map[string]string {
	m := make(map[string]string, len(p.Params))
	for _, kv := range p.Params {
		m[kv.Name] = kv.Value
	}
	return m
}

// Param returns the value of the named parameter.
func (p BenchmarkParams) Param(name string) (string, bool) {
	for _, kv := range p.Params {
		if kv.Name == name {
			return kv.Value, true
		}
	}
	return "", false
}

// String renders "name" or "name[a=1, b=2]".
func (p BenchmarkParams) String() string {
	if len(p.Params) == 0 {
		return p.Benchmark
	}
	parts := make([]string, len(p.Params))
	for i, kv := range p.Params {
		parts[i] = kv.Name + "=" + kv.Value
	}
	return p.Benchmark + "[" + strings.Join(parts, ", ") + "]"
}

// FixtureKey renders the assignment alone as "[a=1, b=2]", or "" for plain
// methods.
func (p BenchmarkParams) FixtureKey() string {
	if len(p.Params) == 0 {
		return ""
	}
	return strings.TrimPrefix(p.String(), p.Benchmark)
}

// IterationSettings are the resolved settings of one iteration phase.
type IterationSettings struct {
	Count     int           `json:"count"`
	Time      time.Duration `json:"time"`
	BatchSize int           `json:"batch_size"`
}

// IterationType distinguishes warmup from measurement.
type IterationType string

const (
	IterationWarmup      IterationType = "warmup"
	IterationMeasurement IterationType = "measurement"
)

// IterationParams describes one iteration.
type IterationParams struct {
	Type IterationType `json:"type"`

	// Index is 1-based within its phase and fork.
	Index int `json:"index"`
	Count int `json:"count"`

	// Fork is 1-based.
	Fork int `json:"fork"`

	Time      time.Duration `json:"time"`
	BatchSize int           `json:"batch_size"`
}

// IterationResult is the measurement of one iteration.
type IterationResult struct {
	Score       float64       `json:"score"`
	Unit        string        `json:"unit"`
	Ops         int           `json:"ops"`
	Elapsed     time.Duration `json:"elapsed"`
	AllocsPerOp int64         `json:"allocs_per_op"`
	BytesPerOp  int64         `json:"bytes_per_op"`
}

// Result is the aggregated outcome of one benchmark execution.
type Result struct {
	Params BenchmarkParams `json:"params"`

	// Score is the median of the measurement samples.
	Score float64 `json:"score"`

	// ScoreError is half the width of the confidence interval.
	ScoreError float64 `json:"score_error"`

	// ScoreConfidence is the [low, high] confidence interval.
	ScoreConfidence [2]float64 `json:"score_confidence"`

	// Confidence is the confidence level of ScoreConfidence.
	Confidence float64 `json:"confidence"`

	Unit string `json:"unit"`

	// Samples are the per-iteration measurement scores in run order.
	Samples []float64 `json:"samples"`

	// Ops is the total number of measured operations.
	Ops int `json:"ops"`

	// Warnings are statistical caveats, such as too few samples for a
	// confidence interval.
	Warnings []string `json:"warnings,omitempty"`
}

// Failure is a per-benchmark failure. Err wraps ErrBenchmarkPanicked,
// ErrBenchmarkFailed or ErrIterationTimeout for in-process runs.
type Failure struct {
	Params BenchmarkParams
	Err    error
}

func (f *Failure) Error() string {
	return f.Params.String() + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Outcome carries exactly one of Result or Failure.
type Outcome struct {
	Params  BenchmarkParams
	Result  *Result
	Failure *Failure
}

// Succeeded reports whether the outcome carries a result.
func (o Outcome) Succeeded() bool {
	return o.Result != nil
}
