// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianBench/services/bench/config"
	"github.com/AleutianAI/AleutianBench/services/bench/descriptor"
	"github.com/AleutianAI/AleutianBench/services/bench/execution"
	"github.com/AleutianAI/AleutianBench/services/bench/model/reflectbind"
	"github.com/AleutianAI/AleutianBench/services/bench/publish"
	"github.com/AleutianAI/AleutianBench/services/bench/samples"
	"github.com/AleutianAI/AleutianBench/services/bench/storage/badger"
)

const stringsSuite = "github.com/AleutianAI/AleutianBench/services/bench/samples.StringsSuite"

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	reg := reflectbind.New(reflectbind.WithLogger(quiet()))
	require.NoError(t, samples.Register(reg))
	clock := func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	base := []Option{WithLogger(quiet()), WithRegistry(reg), WithClock(clock)}
	return New(append(base, opts...)...)
}

// fastRun keeps in-process measurements to a couple of single-op rounds.
func fastRun() map[string]string {
	return map[string]string{
		config.WarmupIterations.Name():      "1",
		config.WarmupBatchSize.Name():       "1",
		config.MeasurementIterations.Name(): "2",
		config.MeasurementBatchSize.Name():  "1",
		config.Timeout.Name():               "60",
	}
}

// TestDiscover verifies selector parsing and registry resolution.
func TestDiscover(t *testing.T) {
	eng := newEngine(t)
	assert.Equal(t, "microbenchmark-engine", eng.ID())

	t.Run("class selector", func(t *testing.T) {
		tree, err := eng.Discover(context.Background(), Request{Selectors: []string{"class:" + stringsSuite}})
		require.NoError(t, err)
		require.Len(t, tree.Classes(), 1)
		assert.Equal(t, 4, tree.CountLeaves(tree.Root(), nil))
	})

	t.Run("everything by default", func(t *testing.T) {
		tree, err := eng.Discover(context.Background(), Request{})
		require.NoError(t, err)
		assert.Len(t, tree.Classes(), 4)
	})

	t.Run("class filter", func(t *testing.T) {
		tree, err := eng.Discover(context.Background(), Request{Exclude: []string{`StringsSuite$`}})
		require.NoError(t, err)
		for _, c := range tree.Classes() {
			assert.NotEqual(t, stringsSuite, c.Class.QualifiedName())
		}
	})

	t.Run("unresolved selectors are reported", func(t *testing.T) {
		tree, report, err := eng.Resolve(context.Background(), Request{Selectors: []string{"class:example.com/missing.Suite"}})
		require.NoError(t, err)
		assert.Len(t, report.Errors, 1)
		assert.Empty(t, tree.Classes())
	})

	t.Run("invalid requests", func(t *testing.T) {
		_, err := eng.Discover(context.Background(), Request{Selectors: []string{"class:"}})
		assert.ErrorIs(t, err, ErrInvalidRequest)

		_, err = eng.Discover(context.Background(), Request{Include: []string{"("}})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})
}

// TestDiscover_Source verifies source discovery and that source trees are
// rejected by Execute.
func TestDiscover_Source(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/src\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "suite.go"), []byte(`package src

import "testing"

type Suite struct {
	Size int `+"`param:\"1,2,3\"`"+`
}

func (s *Suite) BenchmarkA(b *testing.B) {}
`), 0o600))

	eng := newEngine(t)
	tree, err := eng.Discover(context.Background(), Request{SourceDir: dir})
	require.NoError(t, err)
	require.Len(t, tree.Classes(), 1)
	assert.Equal(t, "example.com/src.Suite", tree.Classes()[0].Class.QualifiedName())
	assert.Equal(t, 3, tree.CountLeaves(tree.Root(), nil))

	rec := &execution.Recorder{}
	err = eng.Execute(context.Background(), tree, rec)
	assert.ErrorIs(t, err, ErrNotExecutable)
	assert.Equal(t, []string{
		"started microbenchmark-engine",
		"finished microbenchmark-engine: failed",
	}, rec.Strings())
}

// TestExecute verifies a full run with reports, history and publishing.
func TestExecute(t *testing.T) {
	out := t.TempDir()
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := badger.NewRunStore(db)

	props := fastRun()
	props[config.ReportDir.Name()] = filepath.Join(out, "reports")
	props[config.PublishTo.Name()] = "json:" + filepath.Join(out, "results.json")
	props[config.Project.Name()] = "demo"

	eng := newEngine(t,
		WithProperties(config.New(props)),
		WithHistory(store),
		WithPublisher(publish.NewPublisher(publish.WithLogger(quiet()))),
	)

	tree, err := eng.Discover(context.Background(), Request{Selectors: []string{"class:" + stringsSuite}})
	require.NoError(t, err)

	rec := &execution.Recorder{}
	bundle, err := eng.ExecuteRun(context.Background(), tree, rec)
	require.NoError(t, err)
	require.NotNil(t, bundle)

	t.Run("events", func(t *testing.T) {
		finished := 0
		for _, e := range rec.Events() {
			if e.Type == execution.EventFinished {
				finished++
				assert.Equal(t, "successful", e.Status, e.Name)
			}
		}
		// root + class + 2 methods + 4 fixtures
		assert.Equal(t, 8, finished)
	})

	t.Run("bundle", func(t *testing.T) {
		assert.Len(t, bundle.Records, 4)
		assert.Equal(t, "demo", bundle.Metadata.Project)
		assert.NotEmpty(t, bundle.Metadata.RunID)
	})

	t.Run("report files", func(t *testing.T) {
		_, err := os.Stat(filepath.Join(out, "reports", "2025-03-01_StringsSuite.json"))
		assert.NoError(t, err)
	})

	t.Run("published", func(t *testing.T) {
		_, err := os.Stat(filepath.Join(out, "results.json"))
		assert.NoError(t, err)
	})

	t.Run("history", func(t *testing.T) {
		runs, err := store.List(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, bundle.Metadata.RunID, runs[0].ID)
		assert.Len(t, runs[0].Records, 4)
	})
}

// TestExecute_Configuration verifies disabled runs, environment conditions
// and invalid configuration.
func TestExecute_Configuration(t *testing.T) {
	discover := func(t *testing.T, eng *Engine) *descriptor.Tree {
		t.Helper()
		tree, err := eng.Discover(context.Background(), Request{Selectors: []string{"class:" + stringsSuite}})
		require.NoError(t, err)
		return tree
	}

	t.Run("disabled", func(t *testing.T) {
		eng := newEngine(t).Configure(map[string]string{config.Enabled.Name(): "false"})
		rec := &execution.Recorder{}
		bundle, err := eng.ExecuteRun(context.Background(), discover(t, eng), rec)
		require.NoError(t, err)
		assert.Nil(t, bundle)
		assert.Equal(t, []string{"skipped microbenchmark-engine: " + execution.ReasonDisabled}, rec.Strings())
	})

	t.Run("environment condition", func(t *testing.T) {
		props := fastRun()
		props["disable.StringsSuite#BenchmarkConcat"] = "true"
		eng := newEngine(t).Configure(props)
		rec := &execution.Recorder{}
		require.NoError(t, eng.Execute(context.Background(), discover(t, eng), rec))

		skipped := 0
		for _, e := range rec.Events() {
			if e.Type == execution.EventSkipped {
				skipped++
				assert.Contains(t, e.Reason, "disable.StringsSuite#BenchmarkConcat")
			}
		}
		assert.Equal(t, 1, skipped)
	})

	t.Run("invalid configuration", func(t *testing.T) {
		eng := newEngine(t).Configure(map[string]string{config.Forks.Name(): "many"})
		rec := &execution.Recorder{}
		err := eng.Execute(context.Background(), discover(t, eng), rec)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
		assert.Equal(t, []string{
			"started microbenchmark-engine",
			"finished microbenchmark-engine: failed",
		}, rec.Strings())
	})
}

// TestConfigure verifies that overrides do not leak into the original.
func TestConfigure(t *testing.T) {
	eng := newEngine(t, WithProperties(config.New(map[string]string{config.Project.Name(): "base"})))
	child := eng.Configure(map[string]string{config.Project.Name(): "override"})

	v, _ := child.Properties().Get(config.Project)
	assert.Equal(t, "override", v)
	v, _ = eng.Properties().Get(config.Project)
	assert.Equal(t, "base", v)
}
