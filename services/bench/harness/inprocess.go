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
	"context"
	"flag"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

// Argument is one parameter axis of an in-process benchmark.
type Argument struct {
	Name   string
	Values []string
}

// Benchmark is a benchmark the in-process harness can run.
type Benchmark struct {
	// Name is the flat "pkg.Class.Method" identity matched by patterns.
	Name string

	// Arguments is the parameter matrix. The harness runs every
	// assignment, first argument outermost.
	Arguments []Argument

	// Prepare builds the benchmark body for one assignment. It is called
	// once per execution, before warmup.
	Prepare func(params []Param) (func(*testing.B), error)
}

// Runner executes one iteration of fn with the given -test.benchtime value.
type Runner func(benchtime string, fn func(*testing.B)) (testing.BenchmarkResult, error)

// TestingRunner is the default Runner. It sets -test.benchtime and calls
// testing.Benchmark.
func TestingRunner(benchtime string, fn func(*testing.B)) (testing.BenchmarkResult, error) {
	testing.Init()
	if err := flag.Set("test.benchtime", benchtime); err != nil {
		return testing.BenchmarkResult{}, fmt.Errorf("set benchtime %q: %w", benchtime, err)
	}
	return testing.Benchmark(fn), nil
}

// InProcessOption configures an InProcess harness.
type InProcessOption func(*InProcess)

// WithRunner replaces the iteration runner.
func WithRunner(r Runner) InProcessOption {
	return func(h *InProcess) {
		if r != nil {
			h.runner = r
		}
	}
}

// WithLogger sets the harness logger.
func WithLogger(logger *slog.Logger) InProcessOption {
	return func(h *InProcess) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// runMu serializes runs. testing.Benchmark reads the process-wide
// -test.benchtime flag.
var runMu sync.Mutex

// InProcess runs benchmarks in the current process with testing.Benchmark.
//
// Description:
//
//	Benchmarks run sequentially. Each execution is warmed up and then
//	measured for the configured number of iterations; forks are emulated
//	as repeated warmup+measurement rounds. Scores are summarized with
//	Summarize. Panics in benchmark bodies are recovered and reported as
//	per-benchmark failures.
//
// Thread Safety:
//
//	Run calls are serialized process-wide. An iteration that exceeds the
//	timeout is reported as failed at once, but the next iteration and the
//	end of Run wait for its runner to return, so runners never overlap.
type InProcess struct {
	benchmarks []Benchmark
	runner     Runner
	logger     *slog.Logger

	// inflight counts runner goroutines, including abandoned ones.
	inflight sync.WaitGroup
}

// NewInProcess returns a harness over benchmarks.
func NewInProcess(benchmarks []Benchmark, opts ...InProcessOption) *InProcess {
	h := &InProcess{
		benchmarks: benchmarks,
		runner:     TestingRunner,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// planned is one benchmark execution.
type planned struct {
	bench  Benchmark
	params BenchmarkParams
}

// Run implements Harness.
//
// Description:
//
//	Selects every benchmark whose name matches an include pattern (all
//	when there are none) and no exclude pattern, expands its parameter
//	matrix and runs each assignment. Per-benchmark failures are reported
//	through EndBenchmark and do not stop the run.
//
// Outputs:
//
//	[]Result - Results of the successful executions.
//	error - ErrInvalidPattern or ErrNoMatchingBenchmarks before any
//	        callback, or the context error if the run was interrupted.
func (h *InProcess) Run(ctx context.Context, opts Options, cb Callbacks) ([]Result, error) {
	runMu.Lock()
	defer runMu.Unlock()
	defer h.inflight.Wait()

	opts = opts.WithDefaults()
	plan, err := h.plan(opts)
	if err != nil {
		return nil, err
	}
	if len(plan) == 0 {
		return nil, fmt.Errorf("%w: includes %v, excludes %v", ErrNoMatchingBenchmarks, opts.Includes, opts.Excludes)
	}

	h.logger.Debug("harness run starting",
		slog.Int("executions", len(plan)),
		slog.String("mode", string(opts.Mode)),
		slog.Int("forks", opts.Forks))

	cb.StartRun()
	if opts.WarmupMode.bulk() {
		h.bulkWarmup(ctx, plan, opts, cb)
	}

	var results []Result
	for i, p := range plan {
		if err := ctx.Err(); err != nil {
			cb.EndRun(results)
			return results, fmt.Errorf("harness run interrupted: %w", err)
		}

		cb.Println(fmt.Sprintf("# Run progress: %d of %d", i+1, len(plan)))
		cb.Println("# Benchmark: " + p.params.String())
		cb.StartBenchmark(p.params)
		outcome := h.execute(ctx, p, opts, cb)
		cb.EndBenchmark(outcome)

		if outcome.Result != nil {
			results = append(results, *outcome.Result)
		}
	}
	cb.EndRun(results)

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("harness run interrupted: %w", err)
	}
	return results, nil
}

func (h *InProcess) plan(opts Options) ([]planned, error) {
	includes, err := compileAll(opts.Includes)
	if err != nil {
		return nil, err
	}
	excludes, err := compileAll(opts.Excludes)
	if err != nil {
		return nil, err
	}

	var plan []planned
	for _, b := range h.benchmarks {
		if !selected(b.Name, includes, excludes) {
			continue
		}
		allowed, restricted := opts.Fixtures[b.Name]
		for _, params := range expand(b.Arguments) {
			bp := BenchmarkParams{
				Benchmark:   b.Name,
				Params:      params,
				Mode:        opts.Mode,
				Forks:       opts.Forks,
				Warmup:      opts.warmupSettings(),
				Measurement: opts.measurementSettings(),
			}
			if restricted && !slices.Contains(allowed, bp.FixtureKey()) {
				continue
			}
			plan = append(plan, planned{bench: b, params: bp})
		}
	}
	return plan, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func selected(name string, includes, excludes []*regexp.Regexp) bool {
	for _, re := range excludes {
		if re.MatchString(name) {
			return false
		}
	}
	if len(includes) == 0 {
		return true
	}
	for _, re := range includes {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// expand returns the row-major cross-product of args. A benchmark without
// arguments has exactly one, empty, assignment.
func expand(args []Argument) [][]Param {
	out := [][]Param{nil}
	for _, a := range args {
		if len(a.Values) == 0 {
			continue
		}
		next := make([][]Param, 0, len(out)*len(a.Values))
		for _, prefix := range out {
			for _, v := range a.Values {
				row := make([]Param, len(prefix), len(prefix)+1)
				copy(row, prefix)
				next = append(next, append(row, Param{Name: a.Name, Value: v}))
			}
		}
		out = next
	}
	return out
}

func (h *InProcess) bulkWarmup(ctx context.Context, plan []planned, opts Options, cb Callbacks) {
	for _, p := range plan {
		fn, err := p.bench.Prepare(p.params.Params)
		if err != nil {
			// Reported when the benchmark itself runs.
			continue
		}
		for i := 1; i <= opts.WarmupIterations; i++ {
			if ctx.Err() != nil {
				return
			}
			it := IterationParams{Type: IterationWarmup, Index: i, Count: opts.WarmupIterations, Fork: 1,
				Time: opts.WarmupTime, BatchSize: opts.WarmupBatchSize}
			if _, err := h.iteration(ctx, p.params, fn, it, opts, cb); err != nil {
				h.logger.Warn("bulk warmup failed",
					slog.String("benchmark", p.params.String()),
					slog.String("error", err.Error()))
				break
			}
		}
	}
}

// execute runs warmup and measurement for one planned execution.
func (h *InProcess) execute(ctx context.Context, p planned, opts Options, cb Callbacks) Outcome {
	fail := func(err error) Outcome {
		cb.Println(fmt.Sprintf("# Failure: %v", err))
		return Outcome{Params: p.params, Failure: &Failure{Params: p.params, Err: err}}
	}

	fn, err := p.bench.Prepare(p.params.Params)
	if err != nil {
		return fail(fmt.Errorf("prepare: %w", err))
	}

	start := time.Now()
	ops := 0
	samples := make([]float64, 0, opts.Forks*opts.MeasurementIterations)
	for fork := 1; fork <= opts.Forks; fork++ {
		if opts.WarmupMode.individual() {
			for i := 1; i <= opts.WarmupIterations; i++ {
				it := IterationParams{Type: IterationWarmup, Index: i, Count: opts.WarmupIterations, Fork: fork,
					Time: opts.WarmupTime, BatchSize: opts.WarmupBatchSize}
				if _, err := h.iteration(ctx, p.params, fn, it, opts, cb); err != nil {
					return fail(err)
				}
			}
		}
		for i := 1; i <= opts.MeasurementIterations; i++ {
			it := IterationParams{Type: IterationMeasurement, Index: i, Count: opts.MeasurementIterations, Fork: fork,
				Time: opts.MeasurementTime, BatchSize: opts.MeasurementBatchSize}
			r, err := h.iteration(ctx, p.params, fn, it, opts, cb)
			if err != nil {
				return fail(err)
			}
			samples = append(samples, r.Score)
			ops += r.Ops
		}
	}

	result := Summarize(samples, DefaultConfidence)
	result.Params = p.params
	result.Unit = opts.Mode.Unit()
	result.Ops = ops
	cb.Println(fmt.Sprintf("Result %q: %.3f ±(%.0f%%) %.3f %s [%s, %s]",
		p.params.String(), result.Score, result.Confidence*100, result.ScoreError, result.Unit,
		opts.Mode.Label(), time.Since(start).Round(time.Millisecond)))
	return Outcome{Params: p.params, Result: &result}
}

// iteration runs fn once under the iteration's settings.
func (h *InProcess) iteration(ctx context.Context, params BenchmarkParams, fn func(*testing.B), it IterationParams, opts Options, cb Callbacks) (IterationResult, error) {
	h.awaitAbandoned()
	cb.Iteration(params, it)

	type ran struct {
		res testing.BenchmarkResult
		err error
	}
	done := make(chan ran, 1)
	bt := benchtime(opts.Mode, IterationSettings{Time: it.Time, BatchSize: it.BatchSize})

	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		var panicked error
		wrapped := func(b *testing.B) {
			defer func() {
				if r := recover(); r != nil {
					panicked = fmt.Errorf("%w: %v", ErrBenchmarkPanicked, r)
				}
			}()
			fn(b)
		}
		res, err := h.runner(bt, wrapped)
		if err == nil {
			err = panicked
		}
		done <- ran{res: res, err: err}
	}()

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			return IterationResult{}, r.err
		}
		if r.res.N == 0 {
			return IterationResult{}, ErrBenchmarkFailed
		}
		ir := toIterationResult(opts.Mode, r.res)
		cb.IterationResult(params, it, ir)
		cb.Println(fmt.Sprintf("# %s Iteration %3d: %.3f %s",
			strings.ToUpper(string(it.Type[:1]))+string(it.Type[1:]), it.Index, ir.Score, ir.Unit))
		return ir, nil
	case <-timer.C:
		return IterationResult{}, fmt.Errorf("%w after %s", ErrIterationTimeout, opts.Timeout)
	case <-ctx.Done():
		return IterationResult{}, ctx.Err()
	}
}

// awaitAbandoned blocks until runners left behind by a timed out or
// canceled iteration have returned.
func (h *InProcess) awaitAbandoned() {
	h.inflight.Wait()
}

func toIterationResult(mode Mode, res testing.BenchmarkResult) IterationResult {
	ir := IterationResult{
		Unit:        mode.Unit(),
		Ops:         res.N,
		Elapsed:     res.T,
		AllocsPerOp: res.AllocsPerOp(),
		BytesPerOp:  res.AllocedBytesPerOp(),
	}
	switch mode {
	case ModeThroughput:
		elapsed := res.T.Seconds()
		if elapsed <= 0 {
			elapsed = time.Nanosecond.Seconds()
		}
		ir.Score = float64(res.N) / elapsed
	default:
		ir.Score = float64(res.T.Nanoseconds()) / float64(res.N)
	}
	return ir
}
