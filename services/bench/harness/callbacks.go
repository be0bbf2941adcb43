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

// Callbacks receives the harness's flat event stream.
//
// The order for one run is:
//
//	StartRun
//	  StartBenchmark
//	    (Iteration IterationResult)*
//	  EndBenchmark
//	  ...
//	EndRun
//
// Println may be called at any point with a line of diagnostic output.
type Callbacks interface {
	StartRun()
	StartBenchmark(params BenchmarkParams)
	Iteration(params BenchmarkParams, it IterationParams)
	IterationResult(params BenchmarkParams, it IterationParams, r IterationResult)
	EndBenchmark(outcome Outcome)
	EndRun(results []Result)
	Println(line string)
}

// NopCallbacks ignores every event. Embed it to implement a subset.
type NopCallbacks struct{}

func (NopCallbacks) StartRun()                                                         {}
func (NopCallbacks) StartBenchmark(BenchmarkParams)                                    {}
func (NopCallbacks) Iteration(BenchmarkParams, IterationParams)                        {}
func (NopCallbacks) IterationResult(BenchmarkParams, IterationParams, IterationResult) {}
func (NopCallbacks) EndBenchmark(Outcome)                                              {}
func (NopCallbacks) EndRun([]Result)                                                   {}
func (NopCallbacks) Println(string)                                                    {}

// Multi fans every event out to each of cbs in order.
type Multi []Callbacks

func (m Multi) StartRun() {
	for _, cb := range m {
		cb.StartRun()
	}
}

func (m Multi) StartBenchmark(params BenchmarkParams) {
	for _, cb := range m {
		cb.StartBenchmark(params)
	}
}

func (m Multi) Iteration(params BenchmarkParams, it IterationParams) {
	for _, cb := range m {
		cb.Iteration(params, it)
	}
}

func (m Multi) IterationResult(params BenchmarkParams, it IterationParams, r IterationResult) {
	for _, cb := range m {
		cb.IterationResult(params, it, r)
	}
}

func (m Multi) EndBenchmark(outcome Outcome) {
	for _, cb := range m {
		cb.EndBenchmark(outcome)
	}
}

func (m Multi) EndRun(results []Result) {
	for _, cb := range m {
		cb.EndRun(results)
	}
}

func (m Multi) Println(line string) {
	for _, cb := range m {
		cb.Println(line)
	}
}
