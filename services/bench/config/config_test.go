// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianBench/services/bench/harness"
)

// TestProperties_Aliases verifies lookup under primary names and aliases.
func TestProperties_Aliases(t *testing.T) {
	p := New(map[string]string{
		"wi":                             "3",
		"jmh.mbr.measurement.time":       "2",
		"jmh.mbr.disable.Suite":          "true",
		"jmh.mbr.report.dir":             "  ",
		"jmh.mbr.warmup.iterations":      "",
		"jmh.mbr.measurement.iterations": "7",
		"i":                              "9",
	})

	v, ok := p.Get(WarmupIterations)
	require.True(t, ok)
	assert.Equal(t, "3", v, "blank primary falls through to the alias")

	v, _ = p.Get(MeasurementIterations)
	assert.Equal(t, "7", v, "primary wins over alias")
	_, ok = p.Lookup("i")
	assert.False(t, ok, "aliases are folded into the primary name")

	assert.False(t, p.IsSet(ReportDir))
	assert.Equal(t, "-1", p.GetOrDefault(Forks))

	v, ok = p.Lookup("disable.Suite")
	require.True(t, ok)
	assert.Equal(t, "true", v)

	assert.Equal(t, map[string]string{
		WarmupIterations.Name():      "3",
		MeasurementIterations.Name(): "7",
		MeasurementTime.Name():       "2",
	}, p.AsMap())
}

// TestMerge verifies that earlier sources win.
func TestMerge(t *testing.T) {
	flags := New(map[string]string{"f": "2"})
	env := New(map[string]string{"f": "3", "bm": "thrpt"})
	file := New(map[string]string{"bm": "avgt", "jmh.mbr.project": "demo"})

	merged := Merge(flags, env, file)
	assert.Equal(t, "2", merged.GetOrDefault(Forks))
	assert.Equal(t, "thrpt", merged.GetOrDefault(Mode))
	assert.Equal(t, "demo", merged.GetOrDefault(Project))

	// An alias in a higher-priority source beats the primary name in a
	// lower one.
	assert.Equal(t, "2", Merge(flags, New(map[string]string{"jmh.mbr.forks": "9"})).GetOrDefault(Forks))

	with := merged.With("f", "5")
	assert.Equal(t, "5", with.GetOrDefault(Forks))
	assert.Equal(t, "2", merged.GetOrDefault(Forks), "With copies")
}

// TestFromEnv verifies verbatim keys and upper-snake names.
func TestFromEnv(t *testing.T) {
	p := FromEnv([]string{
		"JMH_MBR_WARMUP_ITERATIONS=4",
		"JMH_MBR_PROJECT_VERSION=1.2.3",
		"jmh.mbr.forks=2",
		"bs=16",
		"MALFORMED",
	})

	assert.Equal(t, "4", p.GetOrDefault(WarmupIterations))
	assert.Equal(t, "1.2.3", p.GetOrDefault(Version))
	assert.Equal(t, "2", p.GetOrDefault(Forks))
	assert.Equal(t, "16", p.GetOrDefault(MeasurementBatchSize))
}

// TestFromYAML verifies flattening of nested maps.
func TestFromYAML(t *testing.T) {
	p, err := FromYAML([]byte(`
jmh:
  mbr:
    warmup:
      iterations: 2
      time: 500ms
    project.version: 1.4.0
    report:
      publishTo: [csv:out.csv, sysout]
`))
	require.NoError(t, err)

	assert.Equal(t, "2", p.GetOrDefault(WarmupIterations))
	assert.Equal(t, "500ms", p.GetOrDefault(WarmupTime))
	assert.Equal(t, "1.4.0", p.GetOrDefault(Version))
	assert.Equal(t, "csv:out.csv,sysout", p.GetOrDefault(PublishTo))

	_, err = FromYAML([]byte("jmh: [unclosed"))
	assert.ErrorIs(t, err, ErrInvalidFile)
}

// TestParse verifies the typed view, defaults and validation.
func TestParse(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		b, err := Parse(Empty())
		require.NoError(t, err)
		assert.True(t, b.Enabled)
		assert.Equal(t, -1, b.WarmupIterations)
		assert.Equal(t, time.Duration(0), b.MeasurementTime)
		assert.Empty(t, b.Metadata())
	})

	t.Run("values", func(t *testing.T) {
		b, err := Parse(New(map[string]string{
			"jmh.mbr.enabled": "false",
			"wi":              "2",
			"w":               "3",
			"r":               "250ms",
			"bm":              "Throughput",
			"wm":              "bulk",
			"to":              "1m",
			"f":               "1",
			"benchmark":       "Suite#BenchmarkA",
		}))
		require.NoError(t, err)
		assert.False(t, b.Enabled)
		assert.Equal(t, 3*time.Second, b.WarmupTime)
		assert.Equal(t, 250*time.Millisecond, b.MeasurementTime)
		assert.Equal(t, "Suite#BenchmarkA", b.Filter)

		opts := b.HarnessOptions([]string{"x"})
		assert.Equal(t, harness.ModeThroughput, opts.Mode)
		assert.Equal(t, harness.WarmupBulk, opts.WarmupMode)
		assert.Equal(t, 2, opts.WarmupIterations)
		assert.Equal(t, 0, opts.MeasurementIterations)
		assert.Equal(t, time.Minute, opts.Timeout)

		assert.Equal(t, map[string]string{
			WarmupIterations.Name(): "2",
			WarmupTime.Name():       "3s",
			WarmupMode.Name():       "bulk",
			MeasurementTime.Name():  "250ms",
			Mode.Name():             "Throughput",
			Timeout.Name():          "1m0s",
			Forks.Name():            "1",
		}, b.Metadata())
	})

	t.Run("warmup iterations", func(t *testing.T) {
		tests := []struct {
			value string
			want  int
		}{
			{"", 0},
			{"0", harness.NoWarmup},
			{"3", 3},
		}
		for _, tt := range tests {
			t.Run("wi="+tt.value, func(t *testing.T) {
				values := map[string]string{}
				if tt.value != "" {
					values["wi"] = tt.value
				}
				b, err := Parse(New(values))
				require.NoError(t, err)
				assert.Equal(t, tt.want, b.HarnessOptions(nil).WarmupIterations)
			})
		}
	})

	t.Run("invalid", func(t *testing.T) {
		tests := map[string]map[string]string{
			"not a number":    {"wi": "many"},
			"bad duration":    {"r": "soon"},
			"bad bool":        {"jmh.mbr.enabled": "perhaps"},
			"unknown mode":    {"bm": "sample"},
			"negative forks":  {"f": "-2"},
			"bad warmup mode": {"wm": "eager"},
		}
		for name, values := range tests {
			t.Run(name, func(t *testing.T) {
				_, err := Parse(New(values))
				assert.ErrorIs(t, err, ErrInvalidProperty)
			})
		}
	})
}

// TestParseDuration verifies seconds and Go durations.
func TestParseDuration(t *testing.T) {
	for in, want := range map[string]time.Duration{"": 0, "5": 5 * time.Second, "1m30s": 90 * time.Second, " 0 ": 0} {
		got, err := ParseDuration(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

// TestResolve verifies source priority and default file creation.
func TestResolve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bench.yaml")

	p, err := Resolve(path, map[string]string{"f": "3"}, []string{"JMH_MBR_FORKS=2", "JMH_MBR_MODE=ss"})
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "default file is created")

	assert.Equal(t, "3", p.GetOrDefault(Forks))
	assert.Equal(t, "ss", p.GetOrDefault(Mode))
	assert.Equal(t, "true", p.GetOrDefault(Enabled))
}
