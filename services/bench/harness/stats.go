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
	"math"
	"slices"

	"golang.org/x/perf/benchmath"
)

// DefaultConfidence is the confidence level of reported intervals.
const DefaultConfidence = 0.95

// Summarize aggregates measurement samples.
//
// Description:
//
//	Uses benchmath's distribution-free summary: the center is the sample
//	median and the interval comes from order statistics. When there are
//	too few samples for an interval at the requested confidence, the
//	interval falls back to [min, max] and a warning is kept.
//
// Outputs:
//
//	Result - Score, ScoreError, ScoreConfidence, Confidence, Samples and
//	         Warnings are set. Params and Unit are left to the caller.
func Summarize(samples []float64, confidence float64) Result {
	r := Result{
		Samples:    append([]float64(nil), samples...),
		Confidence: confidence,
	}
	if len(samples) == 0 {
		return r
	}

	// NewSample sorts in place.
	sample := benchmath.NewSample(append([]float64(nil), samples...), &benchmath.DefaultThresholds)
	summary := benchmath.AssumeNothing.Summary(sample, confidence)

	lo, hi := summary.Lo, summary.Hi
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) || math.IsNaN(lo) || math.IsNaN(hi) {
		lo, hi = slices.Min(samples), slices.Max(samples)
	}
	for _, w := range summary.Warnings {
		r.Warnings = append(r.Warnings, w.Error())
	}

	r.Score = summary.Center
	r.ScoreConfidence = [2]float64{lo, hi}
	r.ScoreError = (hi - lo) / 2
	return r
}

// Mean returns the arithmetic mean of values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Range returns max - min of values.
func Range(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return slices.Max(values) - slices.Min(values)
}
