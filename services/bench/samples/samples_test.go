// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package samples

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianBench/services/bench/descriptor"
	"github.com/AleutianAI/AleutianBench/services/bench/discovery"
	"github.com/AleutianAI/AleutianBench/services/bench/harness"
	"github.com/AleutianAI/AleutianBench/services/bench/model"
	"github.com/AleutianAI/AleutianBench/services/bench/model/reflectbind"
)

const pkg = "github.com/AleutianAI/AleutianBench/services/bench/samples"

// TestRegister verifies the sample suites discover into the expected tree.
func TestRegister(t *testing.T) {
	r := reflectbind.New()
	require.NoError(t, Register(r))

	tree, report := discovery.NewBuilder(r).Resolve(context.Background(), discovery.Request{
		Selectors: []discovery.Selector{discovery.PackageSelector{Package: pkg}},
	})
	require.Empty(t, report.Errors)

	counts := map[descriptor.Kind]int{}
	tree.Walk(func(n *descriptor.Node) bool {
		counts[n.Kind]++
		return true
	})
	assert.Equal(t, 4, counts[descriptor.KindClass])
	// Strings: 2 methods x 2 parts. Encoding: 2 methods x 2 codecs x 2 sizes.
	assert.Equal(t, 4, counts[descriptor.KindParametrizedMethod])
	assert.Equal(t, 12, counts[descriptor.KindFixture])
	// PageCache and Fixture each have one plain method.
	assert.Equal(t, 2, counts[descriptor.KindMethod])

	encode, ok := tree.LookupKey("[engine:microbenchmark-engine]/[class:" + pkg + ".EncodingSuite]" +
		"/[method:BenchmarkEncode(*testing.B, *" + pkg + ".Payload)]")
	require.True(t, ok)
	var names []string
	for _, c := range tree.Children(encode) {
		names = append(names, c.DisplayName)
	}
	assert.Equal(t, []string{
		"[Codec=json, Items=10]",
		"[Codec=json, Items=1000]",
		"[Codec=gob, Items=10]",
		"[Codec=gob, Items=1000]",
	}, names)
}

// TestEncodingPrepare verifies that a sample benchmark body runs.
func TestEncodingPrepare(t *testing.T) {
	r := reflectbind.New()
	require.NoError(t, Register(r))

	fn, err := r.Prepare(pkg+".EncodingSuite", "BenchmarkEncode", []harness.Param{
		{Name: "Codec", Value: "gob"},
		{Name: "Items", Value: "10"},
	})
	require.NoError(t, err)

	res := testing.Benchmark(fn)
	assert.Positive(t, res.N)
}

// TestFixtureSuiteAssumption verifies the fixture suite skips without its
// environment variable.
func TestFixtureSuiteAssumption(t *testing.T) {
	t.Setenv(FixtureEnv, "")

	s := &FixtureSuite{}
	err := s.SetupSuite()
	assert.True(t, errors.Is(err, model.ErrAssumption))
}
