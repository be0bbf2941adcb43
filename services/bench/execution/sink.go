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
	"log/slog"
	"slices"
	"sync"

	"github.com/AleutianAI/AleutianBench/services/bench/descriptor"
	"github.com/AleutianAI/AleutianBench/services/bench/harness"
)

// sink decorates the harness callbacks and turns the flat stream back into
// hierarchical listener events.
//
// The harness delivers start/end pairs one at a time, so a single current
// execution is tracked.
type sink struct {
	delegate harness.Callbacks
	tree     *descriptor.Tree
	listener Listener
	cache    *identityCache
	progress *progress
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger

	mu       sync.Mutex
	current  harness.BenchmarkParams
	inFlight bool
	captured []string
	fatal    error
	perBench int
}

func (s *sink) StartRun() {
	s.delegate.StartRun()
}

func (s *sink) Iteration(params harness.BenchmarkParams, it harness.IterationParams) {
	s.delegate.Iteration(params, it)
}

func (s *sink) IterationResult(params harness.BenchmarkParams, it harness.IterationParams, r harness.IterationResult) {
	s.delegate.IterationResult(params, it, r)
}

func (s *sink) EndRun(results []harness.Result) {
	s.delegate.EndRun(results)
}

// Println captures diagnostic lines while a benchmark is in flight.
func (s *sink) Println(line string) {
	s.delegate.Println(line)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		s.captured = append(s.captured, line)
	}
}

func (s *sink) StartBenchmark(params harness.BenchmarkParams) {
	s.delegate.StartBenchmark(params)

	s.mu.Lock()
	s.current = params
	s.inFlight = true
	s.captured = nil
	s.perBench++
	s.mu.Unlock()

	n, err := s.cache.Resolve(params)
	if err != nil {
		s.fail(err)
		return
	}

	ancestors := s.tree.Ancestors(n)
	slices.Reverse(ancestors)
	for _, a := range ancestors {
		if a.IsRoot() {
			continue
		}
		s.start(a)
	}
	s.start(n)
}

func (s *sink) EndBenchmark(outcome harness.Outcome) {
	s.delegate.EndBenchmark(outcome)

	s.mu.Lock()
	params := s.current
	if outcome.Result != nil {
		params = outcome.Result.Params
	}
	captured := s.captured
	s.inFlight = false
	s.captured = nil
	fatal := s.fatal
	s.mu.Unlock()

	if fatal != nil {
		return
	}
	n, err := s.cache.Resolve(params)
	if err != nil {
		s.fail(err)
		return
	}

	result := Successful()
	if outcome.Result == nil {
		var cause error
		if outcome.Failure != nil {
			cause = outcome.Failure.Err
		}
		result = Failed(&BenchmarkError{Benchmark: params.String(), Err: cause, Output: captured})
	}
	s.finish(n, result)

	for _, a := range s.progress.complete(n) {
		s.finish(a, result)
	}
}

func (s *sink) start(n *descriptor.Node) {
	if !s.progress.markStarted(n) {
		return
	}
	recordEvent(s.ctx, EventStarted, "")
	s.listener.ExecutionStarted(n)
}

func (s *sink) finish(n *descriptor.Node, result Result) {
	if !s.progress.markFinished(n) {
		return
	}
	recordEvent(s.ctx, EventFinished, result.Status.String())
	s.listener.ExecutionFinished(n, result)
}

// fail records a fatal identity error and stops the harness.
func (s *sink) fail(err error) {
	s.mu.Lock()
	first := s.fatal == nil
	if first {
		s.fatal = err
	}
	s.mu.Unlock()
	if first {
		s.logger.Error("harness reported an unknown benchmark", slog.String("error", err.Error()))
		s.cancel()
	}
}

func (s *sink) fatalErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}

// sawBenchmarks reports whether any per-benchmark callback arrived.
func (s *sink) sawBenchmarks() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perBench > 0
}
