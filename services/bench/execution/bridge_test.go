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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianBench/services/bench/condition"
	"github.com/AleutianAI/AleutianBench/services/bench/config"
	"github.com/AleutianAI/AleutianBench/services/bench/descriptor"
	"github.com/AleutianAI/AleutianBench/services/bench/discovery"
	"github.com/AleutianAI/AleutianBench/services/bench/harness"
	"github.com/AleutianAI/AleutianBench/services/bench/model"
	"github.com/AleutianAI/AleutianBench/services/bench/model/modeltest"
)

const pkg = "example.com/bench"

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func simpleClass() *model.Class {
	stateX := modeltest.Struct(pkg, "StateX", modeltest.Param("Field", modeltest.Int, "1", "2"))
	return modeltest.Class(modeltest.Struct(pkg, "Simple"),
		modeltest.Bench("BenchmarkA"),
		modeltest.Bench("BenchmarkB", modeltest.Ptr(stateX)),
		modeltest.Helper("Helper"))
}

func offClass() *model.Class {
	return modeltest.Disable(modeltest.Class(modeltest.Struct(pkg, "Off"), modeltest.Bench("BenchmarkO")), "not today")
}

func buildTree(t *testing.T, classes ...*model.Class) *descriptor.Tree {
	t.Helper()
	tree, report := discovery.NewBuilder(model.NewCatalog(classes...), discovery.WithLogger(quiet())).
		Resolve(context.Background(), discovery.Request{
			Selectors: []discovery.Selector{discovery.PackageSelector{Package: pkg}},
		})
	require.Empty(t, report.Errors)
	return tree
}

func bp(name string, kv ...string) harness.BenchmarkParams {
	p := harness.BenchmarkParams{Benchmark: pkg + "." + name}
	for i := 0; i+1 < len(kv); i += 2 {
		p.Params = append(p.Params, harness.Param{Name: kv[i], Value: kv[i+1]})
	}
	return p
}

// step is one scripted benchmark execution.
type step struct {
	params harness.BenchmarkParams
	lines  []string
	fail   error

	// abort returns the harness error right after the start callback.
	abort bool
}

// scripted replays steps through the callbacks.
type scripted struct {
	steps []step
	err   error

	// errFirst returns err before any callback.
	errFirst bool

	calls  int
	opts   harness.Options
	ctxErr error
}

func (s *scripted) Run(ctx context.Context, opts harness.Options, cb harness.Callbacks) ([]harness.Result, error) {
	s.calls++
	s.opts = opts
	if s.errFirst {
		return nil, s.err
	}
	cb.StartRun()
	var results []harness.Result
	for _, st := range s.steps {
		cb.StartBenchmark(st.params)
		if st.abort {
			return results, s.err
		}
		for _, line := range st.lines {
			cb.Println(line)
		}
		if err := ctx.Err(); err != nil {
			s.ctxErr = err
			return results, err
		}
		if st.fail != nil {
			cb.EndBenchmark(harness.Outcome{Params: st.params, Failure: &harness.Failure{Params: st.params, Err: st.fail}})
			continue
		}
		r := harness.Result{Params: st.params, Score: 1, Unit: "ns/op"}
		results = append(results, r)
		cb.EndBenchmark(harness.Outcome{Params: st.params, Result: &r})
	}
	cb.EndRun(results)
	return results, s.err
}

func enabled() config.Benchmark {
	return config.Benchmark{Enabled: true}
}

// TestExecute_Success verifies the nested event stream of a full run.
func TestExecute_Success(t *testing.T) {
	tree := buildTree(t, simpleClass(), offClass())
	h := &scripted{steps: []step{
		{params: bp("Simple.BenchmarkA")},
		{params: bp("Simple.BenchmarkB", "Field", "1")},
		{params: bp("Simple.BenchmarkB", "Field", "2")},
	}}
	var published []harness.Result
	rec := &Recorder{}

	b := NewBridge(h, enabled(), WithLogger(quiet()),
		WithResultsHandler(func(_ context.Context, results []harness.Result) { published = results }))
	require.NoError(t, b.Execute(context.Background(), tree, rec))

	assert.Equal(t, []string{
		"skipped Off: not today",
		"started microbenchmark-engine",
		"started Simple",
		"started BenchmarkA",
		"finished BenchmarkA: successful",
		"started BenchmarkB",
		"started [Field=1]",
		"finished [Field=1]: successful",
		"started [Field=2]",
		"finished [Field=2]: successful",
		"finished BenchmarkB: successful",
		"finished Simple: successful",
		"finished microbenchmark-engine: successful",
	}, rec.Strings())
	assert.Equal(t, StateFinished, b.State())
	assert.Len(t, published, 3)

	assert.Equal(t, []string{
		`example\.com/bench\.Simple\.BenchmarkA$`,
		`example\.com/bench\.Simple\.BenchmarkB$`,
	}, h.opts.Includes)
	assert.Equal(t, map[string][]string{
		pkg + ".Simple.BenchmarkB": {"[Field=1]", "[Field=2]"},
	}, h.opts.Fixtures)

	t.Run("executes once", func(t *testing.T) {
		assert.ErrorIs(t, b.Execute(context.Background(), tree, rec), ErrBridgeReused)
	})
}

// TestExecute_DisabledClass verifies that a blanket-disabled class yields
// one skip event and no patterns.
func TestExecute_DisabledClass(t *testing.T) {
	tree := buildTree(t, offClass())
	h := &scripted{}
	rec := &Recorder{}

	b := NewBridge(h, enabled(), WithLogger(quiet()))
	require.NoError(t, b.Execute(context.Background(), tree, rec))

	assert.Equal(t, []string{
		"skipped Off: not today",
		"skipped microbenchmark-engine: No benchmarks",
	}, rec.Strings())
	assert.Zero(t, h.calls)
	assert.Equal(t, StateSkipped, b.State())
}

// TestExecute_HarnessErrorBeforeEvents verifies that an early harness
// failure finishes only the root.
func TestExecute_HarnessErrorBeforeEvents(t *testing.T) {
	tree := buildTree(t, simpleClass())
	boom := errors.New("fork failed")
	h := &scripted{err: boom, errFirst: true}
	rec := &Recorder{}

	err := NewBridge(h, enabled(), WithLogger(quiet())).Execute(context.Background(), tree, rec)
	require.ErrorIs(t, err, boom)

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "started microbenchmark-engine", events[0].String())
	assert.Equal(t, "finished microbenchmark-engine: failed", events[1].String())
	assert.ErrorIs(t, events[1].Result.Err, boom)
}

// TestExecute_HarnessErrorMidRun verifies that open nodes fail deepest
// first when the harness dies mid-run.
func TestExecute_HarnessErrorMidRun(t *testing.T) {
	tree := buildTree(t, simpleClass())
	boom := errors.New("harness crashed")
	h := &scripted{err: boom, steps: []step{
		{params: bp("Simple.BenchmarkA")},
		{params: bp("Simple.BenchmarkB", "Field", "1"), abort: true},
	}}
	rec := &Recorder{}

	err := NewBridge(h, enabled(), WithLogger(quiet())).Execute(context.Background(), tree, rec)
	require.ErrorIs(t, err, boom)

	assert.Equal(t, []string{
		"started microbenchmark-engine",
		"started Simple",
		"started BenchmarkA",
		"finished BenchmarkA: successful",
		"started BenchmarkB",
		"started [Field=1]",
		"finished [Field=1]: failed",
		"finished BenchmarkB: failed",
		"finished Simple: failed",
		"finished microbenchmark-engine: failed",
	}, rec.Strings())
}

// TestExecute_Propagation verifies that a container finishes exactly once,
// after its last selected leaf, in any arrival order.
func TestExecute_Propagation(t *testing.T) {
	tree := buildTree(t, simpleClass())
	h := &scripted{steps: []step{
		{params: bp("Simple.BenchmarkB", "Field", "2")},
		{params: bp("Simple.BenchmarkA")},
		{params: bp("Simple.BenchmarkB", "Field", "1")},
	}}
	rec := &Recorder{}
	require.NoError(t, NewBridge(h, enabled(), WithLogger(quiet())).Execute(context.Background(), tree, rec))

	finished := map[string]int{}
	position := map[string]int{}
	for i, e := range rec.Events() {
		if e.Type == EventFinished {
			finished[e.Name]++
			position[e.Name] = i
		}
	}
	for name, count := range finished {
		assert.Equal(t, 1, count, name)
	}
	assert.Greater(t, position["BenchmarkB"], position["[Field=1]"])
	assert.Greater(t, position["BenchmarkB"], position["[Field=2]"])
	assert.Greater(t, position["Simple"], position["BenchmarkA"])
	assert.Greater(t, position["Simple"], position["BenchmarkB"])
	assert.Greater(t, position["microbenchmark-engine"], position["Simple"])
}

// TestExecute_BenchmarkFailure verifies the typed failure and captured
// diagnostics.
func TestExecute_BenchmarkFailure(t *testing.T) {
	tree := buildTree(t, simpleClass())
	cause := errors.New("index out of range")
	h := &scripted{steps: []step{
		{params: bp("Simple.BenchmarkA"), lines: []string{"# Warmup Iteration 1", "# Failure: boom"}, fail: cause},
		{params: bp("Simple.BenchmarkB", "Field", "1")},
		{params: bp("Simple.BenchmarkB", "Field", "2")},
	}}
	rec := &Recorder{}
	require.NoError(t, NewBridge(h, enabled(), WithLogger(quiet())).Execute(context.Background(), tree, rec))

	var failure Event
	for _, e := range rec.Events() {
		if e.Type == EventFinished && e.Name == "BenchmarkA" {
			failure = e
		}
	}
	require.Equal(t, StatusFailed, failure.Result.Status)
	var be *BenchmarkError
	require.ErrorAs(t, failure.Result.Err, &be)
	assert.ErrorIs(t, be, cause)
	assert.Equal(t, []string{"# Warmup Iteration 1", "# Failure: boom"}, be.Output)
	assert.Equal(t, pkg+".Simple.BenchmarkA", be.Benchmark)
}

// TestExecute_IdentityUnresolved verifies that an unknown benchmark name
// is fatal and cancels the harness.
func TestExecute_IdentityUnresolved(t *testing.T) {
	tree := buildTree(t, simpleClass())

	tests := []struct {
		name   string
		params harness.BenchmarkParams
	}{
		{name: "unknown method", params: bp("Simple.BenchmarkZ")},
		{name: "unknown fixture", params: bp("Simple.BenchmarkB", "Field", "3")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &scripted{steps: []step{{params: tt.params}}}
			rec := &Recorder{}

			err := NewBridge(h, enabled(), WithLogger(quiet())).Execute(context.Background(), tree, rec)
			require.ErrorIs(t, err, ErrIdentityUnresolved)
			assert.ErrorIs(t, h.ctxErr, context.Canceled)

			events := rec.Events()
			last := events[len(events)-1]
			assert.Equal(t, "finished microbenchmark-engine: failed", last.String())
			assert.ErrorIs(t, last.Result.Err, ErrIdentityUnresolved)
		})
	}
}

// TestExecute_Configuration verifies the enabled switch and the user name
// filter.
func TestExecute_Configuration(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		tree := buildTree(t, simpleClass())
		h := &scripted{}
		rec := &Recorder{}
		b := NewBridge(h, config.Benchmark{Enabled: false}, WithLogger(quiet()))
		require.NoError(t, b.Execute(context.Background(), tree, rec))
		assert.Equal(t, []string{"skipped microbenchmark-engine: " + ReasonDisabled}, rec.Strings())
		assert.Zero(t, h.calls)
	})

	tests := []struct {
		name   string
		filter string
		want   []string
	}{
		{name: "simple name", filter: "Simple", want: []string{
			`example\.com/bench\.Simple\.BenchmarkA$`,
			`example\.com/bench\.Simple\.BenchmarkB$`,
		}},
		{name: "qualified method", filter: pkg + ".Simple#BenchmarkB", want: []string{
			`example\.com/bench\.Simple\.BenchmarkB$`,
		}},
		{name: "no match", filter: "Other", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := buildTree(t, simpleClass())
			h := &scripted{}
			settings := enabled()
			settings.Filter = tt.filter
			require.NoError(t, NewBridge(h, settings, WithLogger(quiet())).Execute(context.Background(), tree, &Recorder{}))
			assert.Equal(t, tt.want, h.opts.Includes)
		})
	}
}

// TestExecute_Conditions verifies class-local conditions, evaluation
// errors and disabled methods.
func TestExecute_Conditions(t *testing.T) {
	t.Run("evaluation error fails the class", func(t *testing.T) {
		tree := buildTree(t, simpleClass())
		rec := &Recorder{}
		broken := condition.Func{ID: "broken", Fn: func(*condition.Context) (condition.Result, error) {
			return condition.Result{}, errors.New("no config")
		}}
		b := NewBridge(&scripted{}, enabled(), WithLogger(quiet()),
			WithClassConditions(func(*model.Class) []condition.Extension { return []condition.Extension{broken} }))
		require.NoError(t, b.Execute(context.Background(), tree, rec))

		events := rec.Events()
		require.Len(t, events, 3)
		assert.Equal(t, "started Simple", events[0].String())
		assert.Equal(t, "finished Simple: failed", events[1].String())
		var ee *condition.EvaluationError
		assert.ErrorAs(t, events[1].Result.Err, &ee)
		assert.Equal(t, "skipped microbenchmark-engine: No benchmarks", events[2].String())
	})

	t.Run("disabled method", func(t *testing.T) {
		c := simpleClass()
		c.Methods[0].Tags |= model.TagDisabled
		c.Methods[0].Attributes[model.AttrDisabledReason] = "flaky"
		tree := buildTree(t, c)
		h := &scripted{steps: []step{
			{params: bp("Simple.BenchmarkB", "Field", "1")},
			{params: bp("Simple.BenchmarkB", "Field", "2")},
		}}
		rec := &Recorder{}
		require.NoError(t, NewBridge(h, enabled(), WithLogger(quiet())).Execute(context.Background(), tree, rec))

		strs := rec.Strings()
		assert.Equal(t, "skipped BenchmarkA: flaky", strs[0])
		assert.Contains(t, strs, "finished Simple: successful")
		assert.Equal(t, []string{`example\.com/bench\.Simple\.BenchmarkB$`}, h.opts.Includes)
	})
}

// TestExecute_SuiteHooks verifies setup assumptions, setup failures and
// teardown.
func TestExecute_SuiteHooks(t *testing.T) {
	t.Run("assumption skips", func(t *testing.T) {
		c := simpleClass()
		c.Setup = func() error { return fmt.Errorf("%w: no data", model.ErrAssumption) }
		rec := &Recorder{}
		require.NoError(t, NewBridge(&scripted{}, enabled(), WithLogger(quiet())).
			Execute(context.Background(), buildTree(t, c), rec))
		assert.Equal(t, []string{
			"skipped Simple: Assumptions failed: assumption failed: no data",
			"skipped microbenchmark-engine: No benchmarks",
		}, rec.Strings())
	})

	t.Run("setup error fails", func(t *testing.T) {
		c := simpleClass()
		c.Setup = func() error { return errors.New("disk full") }
		rec := &Recorder{}
		require.NoError(t, NewBridge(&scripted{}, enabled(), WithLogger(quiet())).
			Execute(context.Background(), buildTree(t, c), rec))
		assert.Equal(t, []string{
			"started Simple",
			"finished Simple: failed",
			"skipped microbenchmark-engine: No benchmarks",
		}, rec.Strings())
	})

	t.Run("teardown runs after publishing", func(t *testing.T) {
		var order []string
		c := simpleClass()
		c.Setup = func() error { order = append(order, "setup"); return nil }
		c.Teardown = func() error { order = append(order, "teardown"); return nil }
		h := &scripted{steps: []step{{params: bp("Simple.BenchmarkA")}}}
		b := NewBridge(h, enabled(), WithLogger(quiet()),
			WithResultsHandler(func(context.Context, []harness.Result) { order = append(order, "publish") }))
		rootDone := ListenerFuncs(func(e Event) {
			if e.Type == EventFinished && e.Kind == descriptor.KindEngine.String() {
				order = append(order, "finish root")
			}
		})
		require.NoError(t, b.Execute(context.Background(), buildTree(t, c), rootDone))
		assert.Equal(t, []string{"setup", "publish", "teardown", "finish root"}, order)
	})

	t.Run("teardown runs when the harness fails", func(t *testing.T) {
		tornDown := false
		c := simpleClass()
		c.Teardown = func() error { tornDown = true; return nil }
		h := &scripted{err: errors.New("harness crashed"), errFirst: true}
		err := NewBridge(h, enabled(), WithLogger(quiet())).
			Execute(context.Background(), buildTree(t, c), &Recorder{})
		require.Error(t, err)
		assert.True(t, tornDown)
	})
}

// TestExecute_Incomplete verifies that nodes the harness never ended are
// aborted so every started node finishes.
func TestExecute_Incomplete(t *testing.T) {
	tree := buildTree(t, simpleClass())
	h := &scripted{steps: []step{
		{params: bp("Simple.BenchmarkA")},
		{params: bp("Simple.BenchmarkB", "Field", "1")},
	}}
	rec := &Recorder{}
	require.NoError(t, NewBridge(h, enabled(), WithLogger(quiet())).Execute(context.Background(), tree, rec))

	started := map[string]bool{}
	finished := map[string]string{}
	for _, e := range rec.Events() {
		switch e.Type {
		case EventStarted:
			started[e.Name] = true
		case EventFinished:
			finished[e.Name] = e.Status
		}
	}
	for name := range started {
		assert.Contains(t, finished, name)
	}
	assert.Equal(t, "aborted", finished["BenchmarkB"])
	assert.Equal(t, "aborted", finished["Simple"])
	assert.Equal(t, "successful", finished["microbenchmark-engine"])
}
