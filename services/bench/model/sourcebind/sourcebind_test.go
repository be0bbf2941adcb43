// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sourcebind

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianBench/services/bench/discovery"
	"github.com/AleutianAI/AleutianBench/services/bench/model"
)

const suiteSource = `package bench

import (
	"strings"
	"testing"
)

type Codec int

const (
	CodecJSON Codec = iota
	CodecGob
)

type Level string

const (
	LevelLow  Level = "low"
	LevelHigh Level = "high"
)

type Mode int

func (Mode) EnumValues() []string { return []string{"fast", "slow"} }

type Payload struct {
	Items int   ` + "`param:\"10, 1000\"`" + `
	Codec Codec ` + "`param:\"\"`" + `
	Level Level ` + "`param:\"\"`" + `
	Mode  Mode  ` + "`param:\"\"`" + `
	note  string
}

type common struct{}

func (c *common) BenchmarkShared(b *testing.B) {}

// StringsSuite measures joins.
//
//bench:goos linux,darwin
type StringsSuite struct {
	common
	Parts int ` + "`param:\"4,64\"`" + `
}

func (s *StringsSuite) BenchmarkJoin(b *testing.B) { _ = strings.Repeat("x", s.Parts) }

func (s *StringsSuite) BenchmarkEncode(b *testing.B, p *Payload) {}

//bench:disabled flaky on CI
func (s StringsSuite) BenchmarkSlow(b *testing.B) {}

func (s *StringsSuite) Helper(n int) int { return n }

func (s *StringsSuite) BenchmarkReturns(b *testing.B) error { return nil }

func (s *StringsSuite) benchmarkHidden(b *testing.B) {}

type NotASuite struct{ X int }

func (NotASuite) Method() {}
`

const externalSource = `package bench_test

import "testing"

type ExtSuite struct{}

func (ExtSuite) BenchmarkExt(b *testing.B) {}
`

const hiddenSource = `package testdata

import "testing"

type Hidden struct{}

func (h *Hidden) BenchmarkHidden(b *testing.B) {}
`

func writeModule(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"go.mod":                   "module example.com/demo\n\ngo 1.22\n",
		"bench/suite.go":           suiteSource,
		"bench/suite_test.go":      externalSource,
		"bench/testdata/hidden.go": hiddenSource,
		"bench/_scratch/hidden.go": hiddenSource,
		"bench/README.md":          "not go\n",
	}
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
	return dir
}

func classNames(classes []*model.Class) []string {
	out := make([]string, len(classes))
	for i, c := range classes {
		out[i] = c.QualifiedName()
	}
	return out
}

func methodNames(c *model.Class) []string {
	out := make([]string, len(c.Methods))
	for i, m := range c.Methods {
		out[i] = m.Name
	}
	return out
}

// TestScan verifies classes, methods and parameter fields built from source.
func TestScan(t *testing.T) {
	dir := writeModule(t)
	catalog, err := NewScanner(WithConcurrency(2)).Scan(context.Background(), filepath.Join(dir, "bench"))
	require.NoError(t, err)

	root, err := filepath.Abs(filepath.Join(dir, "bench"))
	require.NoError(t, err)

	t.Run("classes sorted and filtered", func(t *testing.T) {
		assert.Equal(t, []string{
			"example.com/demo/bench.StringsSuite",
			"example.com/demo/bench_test.ExtSuite",
		}, classNames(catalog.Classes(model.Scope{})))
	})

	suite, ok := catalog.LookupClass("example.com/demo/bench.StringsSuite")
	require.True(t, ok)

	t.Run("class attributes", func(t *testing.T) {
		assert.Equal(t, "example.com/demo/bench", suite.Package)
		assert.Equal(t, root, suite.Root)
		assert.Equal(t, "StringsSuite", suite.SimpleName())
		goos, _ := suite.Attribute(model.AttrGOOS)
		assert.Equal(t, "linux,darwin", goos)
		file, _ := suite.Attribute(model.AttrSourceFile)
		assert.Equal(t, "suite.go", filepath.Base(file))
		assert.False(t, suite.Tags.Has(model.TagDisabled))
	})

	t.Run("methods", func(t *testing.T) {
		assert.Equal(t, []string{
			"BenchmarkEncode", "BenchmarkJoin", "BenchmarkReturns",
			"BenchmarkShared", "BenchmarkSlow", "Helper",
		}, methodNames(suite))

		benchmarks := map[string]bool{}
		for _, m := range suite.Methods {
			benchmarks[m.Name] = m.Tags.Has(model.TagBenchmark)
		}
		assert.Equal(t, map[string]bool{
			"BenchmarkEncode": true, "BenchmarkJoin": true, "BenchmarkReturns": false,
			"BenchmarkShared": true, "BenchmarkSlow": true, "Helper": false,
		}, benchmarks)
	})

	t.Run("descriptor", func(t *testing.T) {
		m, ok := suite.Method("BenchmarkEncode(*testing.B, *example.com/demo/bench.Payload)")
		require.True(t, ok)
		assert.Equal(t, "example.com/demo/bench.StringsSuite.BenchmarkEncode", m.Identity())
	})

	t.Run("promoted method", func(t *testing.T) {
		m := suite.MethodsNamed("BenchmarkShared")[0]
		assert.True(t, m.Tags.Has(model.TagPromoted))
		from, _ := m.Attribute(model.AttrDeclaredIn)
		assert.Equal(t, "example.com/demo/bench.common", from)
	})

	t.Run("disabled directive", func(t *testing.T) {
		m := suite.MethodsNamed("BenchmarkSlow")[0]
		assert.True(t, m.Tags.Has(model.TagDisabled))
		reason, _ := m.Attribute(model.AttrDisabledReason)
		assert.Equal(t, "flaky on CI", reason)
	})

	t.Run("parameter fields", func(t *testing.T) {
		require.Len(t, suite.Type.Fields, 1)
		assert.Equal(t, "Parts", suite.Type.Fields[0].Name)
		assert.Equal(t, []string{"4", "64"}, suite.Type.Fields[0].Values)

		m := suite.MethodsNamed("BenchmarkEncode")[0]
		payload := m.Params[1].Deref()
		assert.True(t, payload.Tags.Has(model.TagStruct))
		assert.Len(t, payload.DeclaredFields, 5)
		require.Len(t, payload.Fields, 4)

		items := payload.Fields[0]
		assert.True(t, items.IsParam())
		assert.Equal(t, []string{"10", "1000"}, items.Values)

		enums := map[string][]string{}
		for _, f := range payload.Fields[1:] {
			require.True(t, f.Type.IsEnum(), f.Name)
			enums[f.Name] = f.Type.Enum
		}
		assert.Equal(t, map[string][]string{
			"Codec": {"CodecJSON", "CodecGob"},
			"Level": {"low", "high"},
			"Mode":  {"fast", "slow"},
		}, enums)
	})

	t.Run("fixtures expand", func(t *testing.T) {
		m := suite.MethodsNamed("BenchmarkEncode")[0]
		fixtures := discovery.Expand(m)
		require.Len(t, fixtures, 32)
		assert.Equal(t, "[Parts=4, Items=10, Codec=CodecJSON, Level=low, Mode=fast]", fixtures[0].DisplayName())
		assert.Equal(t, "[Parts=64, Items=1000, Codec=CodecGob, Level=high, Mode=slow]", fixtures[31].DisplayName())
	})
}

// TestScan_Options verifies test-file exclusion and module detection errors.
func TestScan_Options(t *testing.T) {
	t.Run("without tests", func(t *testing.T) {
		dir := writeModule(t)
		catalog, err := NewScanner(WithTests(false)).Scan(context.Background(), dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"example.com/demo/bench.StringsSuite"}, classNames(catalog.Classes(model.Scope{})))
	})

	t.Run("max file size skips", func(t *testing.T) {
		dir := writeModule(t)
		catalog, err := NewScanner(WithMaxFileSize(16)).Scan(context.Background(), dir)
		require.NoError(t, err)
		assert.Zero(t, catalog.Len())
	})

	t.Run("not a directory", func(t *testing.T) {
		dir := writeModule(t)
		_, err := NewScanner().Scan(context.Background(), filepath.Join(dir, "go.mod"))
		assert.Error(t, err)
	})

	t.Run("canceled", func(t *testing.T) {
		dir := writeModule(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewScanner().Scan(ctx, dir)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// TestFindModule verifies go.mod lookup from nested directories.
func TestFindModule(t *testing.T) {
	dir := writeModule(t)
	modDir, modPath, err := findModule(filepath.Join(dir, "bench", "testdata"))
	require.NoError(t, err)
	assert.Equal(t, dir, modDir)
	assert.Equal(t, "example.com/demo", modPath)
}

// TestParseFile verifies declaration extraction from a single file.
func TestParseFile(t *testing.T) {
	fd, err := parseFile(context.Background(), []byte(suiteSource), "suite.go")
	require.NoError(t, err)

	assert.Equal(t, "bench", fd.pkg)
	assert.False(t, fd.broken)
	assert.Equal(t, map[string]string{"strings": "strings", "testing": "testing"}, fd.imports)

	t.Run("const groups repeat type", func(t *testing.T) {
		var codec []string
		for _, c := range fd.consts {
			if c.typ == "Codec" {
				codec = append(codec, c.name)
			}
		}
		assert.Equal(t, []string{"CodecJSON", "CodecGob"}, codec)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		_, err := parseFile(context.Background(), []byte{0xff, 0xfe}, "bad.go")
		assert.ErrorIs(t, err, ErrInvalidContent)
	})

	t.Run("syntax errors are flagged", func(t *testing.T) {
		fd, err := parseFile(context.Background(), []byte("package x\n\nfunc (s *S) Broken( {\n"), "broken.go")
		require.NoError(t, err)
		assert.True(t, fd.broken)
	})
}
