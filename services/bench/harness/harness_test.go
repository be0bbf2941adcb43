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
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseMode verifies short and long mode names.
func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"avgt":           ModeAverageTime,
		"AverageTime":    ModeAverageTime,
		"thrpt":          ModeThroughput,
		" Throughput ":   ModeThroughput,
		"ss":             ModeSingleShot,
		"SingleShotTime": ModeSingleShot,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			got, err := ParseMode(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	_, err := ParseMode("sample")
	assert.ErrorIs(t, err, ErrUnsupportedMode)

	wm, err := ParseWarmupMode("bulk_indi")
	require.NoError(t, err)
	assert.Equal(t, WarmupBulkIndividual, wm)
	_, err = ParseWarmupMode("eager")
	assert.ErrorIs(t, err, ErrUnsupportedMode)
}

// TestOptions_WithDefaults verifies that only unset values are filled.
func TestOptions_WithDefaults(t *testing.T) {
	got := Options{MeasurementIterations: 3, Mode: ModeThroughput}.WithDefaults()

	assert.Equal(t, DefaultWarmupIterations, got.WarmupIterations)
	assert.Equal(t, 3, got.MeasurementIterations)
	assert.Equal(t, DefaultIterationTime, got.MeasurementTime)
	assert.Equal(t, DefaultForks, got.Forks)
	assert.Equal(t, DefaultTimeout, got.Timeout)
	assert.Equal(t, ModeThroughput, got.Mode)
	assert.Equal(t, WarmupIndividual, got.WarmupMode)

	t.Run("no warmup", func(t *testing.T) {
		got := Options{WarmupIterations: NoWarmup}.WithDefaults()
		assert.Equal(t, 0, got.WarmupIterations)
	})
}

// TestSummarize verifies the median score and the interval fallback for
// small samples.
func TestSummarize(t *testing.T) {
	r := Summarize([]float64{5, 1, 4, 2, 3}, DefaultConfidence)

	assert.InDelta(t, 3.0, r.Score, 1e-9)
	assert.Equal(t, [2]float64{1, 5}, r.ScoreConfidence)
	assert.InDelta(t, 2.0, r.ScoreError, 1e-9)
	assert.Equal(t, []float64{5, 1, 4, 2, 3}, r.Samples, "samples keep run order")
	assert.Equal(t, DefaultConfidence, r.Confidence)

	empty := Summarize(nil, DefaultConfidence)
	assert.Zero(t, empty.Score)
	assert.Empty(t, empty.Samples)
}

// TestMeanAndRange verifies the helper statistics.
func TestMeanAndRange(t *testing.T) {
	assert.InDelta(t, 2.5, Mean([]float64{1, 2, 3, 4}), 1e-9)
	assert.InDelta(t, 3.0, Range([]float64{4, 1, 2}), 1e-9)
}

// TestBenchfmtName verifies the Go benchmark name of a fixture.
func TestBenchfmtName(t *testing.T) {
	p := BenchmarkParams{
		Benchmark: "example.com/bench.Suite.BenchmarkEncode",
		Params:    []Param{{Name: "size", Value: "10"}, {Name: "codec", Value: "a b"}},
	}
	assert.Equal(t, "Suite/Encode/size=10/codec=a_b", string(BenchfmtName(p)))

	class, method := SplitIdentity(p.Benchmark)
	assert.Equal(t, "example.com/bench.Suite", class)
	assert.Equal(t, "BenchmarkEncode", method)
}

// TestTextCallbacks verifies one benchmark line per sample.
func TestTextCallbacks(t *testing.T) {
	var buf bytes.Buffer
	text := NewTextCallbacks(&buf)

	params := BenchmarkParams{
		Benchmark: "example.com/bench.Suite.BenchmarkEncode",
		Params:    []Param{{Name: "size", Value: "10"}},
	}
	text.EndBenchmark(Outcome{Params: params, Result: &Result{
		Params:  params,
		Unit:    "ns/op",
		Samples: []float64{120, 130},
		Ops:     2000,
	}})
	text.EndBenchmark(Outcome{Params: params, Failure: &Failure{Params: params, Err: ErrBenchmarkFailed}})
	require.NoError(t, text.Err())

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "Suite/Encode/size=10"))
	assert.Contains(t, out, "ns/op")
	assert.Contains(t, out, "pkg: example.com/bench")
}

// TestBenchmarkParams verifies the rendering helpers.
func TestBenchmarkParams(t *testing.T) {
	p := BenchmarkParams{Benchmark: "p.S.M", Params: []Param{{Name: "a", Value: "1"}}, Measurement: IterationSettings{Time: time.Second}}

	assert.Equal(t, "p.S.M[a=1]", p.String())
	assert.Equal(t, map[string]string{"a": "1"}, p.ParamMap())
	v, ok := p.Param("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, "p.S.M", BenchmarkParams{Benchmark: "p.S.M"}.String())
}
