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
	"io"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/perf/benchfmt"
)

// BenchfmtName returns the Go benchmark name of params without the
// "Benchmark" prefix: "Class/Method/name=value/...".
func BenchfmtName(params BenchmarkParams) benchfmt.Name {
	class, method := SplitIdentity(params.Benchmark)
	if i := strings.LastIndex(class, "."); i >= 0 {
		class = class[i+1:]
	}

	var sb strings.Builder
	sb.WriteString(class)
	sb.WriteByte('/')
	sb.WriteString(strings.TrimPrefix(method, "Benchmark"))
	for _, p := range params.Params {
		sb.WriteByte('/')
		sb.WriteString(nameSafe(p.Name))
		sb.WriteByte('=')
		sb.WriteString(nameSafe(p.Value))
	}
	return benchfmt.Name(sb.String())
}

// SplitIdentity splits "pkg.Class.Method" into "pkg.Class" and "Method".
func SplitIdentity(identity string) (class, method string) {
	i := strings.LastIndex(identity, ".")
	if i < 0 {
		return "", identity
	}
	return identity[:i], identity[i+1:]
}

var nameReplacer = strings.NewReplacer(" ", "_", "/", "_", "\t", "_")

func nameSafe(s string) string {
	return nameReplacer.Replace(s)
}

// BenchfmtResults converts r to one benchfmt line per measurement sample,
// which is the shape benchstat expects.
func BenchfmtResults(r Result) []*benchfmt.Result {
	class, _ := SplitIdentity(r.Params.Benchmark)
	pkg := class
	if i := strings.LastIndex(pkg, "."); i >= 0 {
		pkg = pkg[:i]
	}

	iters := 1
	if len(r.Samples) > 0 && r.Ops > len(r.Samples) {
		iters = r.Ops / len(r.Samples)
	}

	name := BenchfmtName(r.Params)
	out := make([]*benchfmt.Result, 0, len(r.Samples))
	for _, sample := range r.Samples {
		out = append(out, &benchfmt.Result{
			Config: []benchfmt.Config{
				{Key: "goos", Value: []byte(runtime.GOOS), File: true},
				{Key: "goarch", Value: []byte(runtime.GOARCH), File: true},
				{Key: "pkg", Value: []byte(pkg), File: true},
			},
			Name:   name,
			Iters:  iters,
			Values: []benchfmt.Value{{Value: sample, Unit: r.Unit}},
		})
	}
	return out
}

// TextCallbacks writes every successful result in the Go benchmark text
// format as it arrives. It is a diagnostic sink: other events are ignored.
//
// Thread Safety: Safe for concurrent use.
type TextCallbacks struct {
	NopCallbacks

	mu  sync.Mutex
	w   *benchfmt.Writer
	err error
}

// NewTextCallbacks returns callbacks writing to w.
func NewTextCallbacks(w io.Writer) *TextCallbacks {
	return &TextCallbacks{w: benchfmt.NewWriter(w)}
}

// EndBenchmark implements Callbacks.
func (t *TextCallbacks) EndBenchmark(outcome Outcome) {
	if outcome.Result == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range BenchfmtResults(*outcome.Result) {
		if err := t.w.Write(r); err != nil && t.err == nil {
			t.err = err
		}
	}
}

// Err returns the first write error.
func (t *TextCallbacks) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
