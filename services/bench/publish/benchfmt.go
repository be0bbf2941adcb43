// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"golang.org/x/perf/benchfmt"

	"github.com/AleutianAI/AleutianBench/services/bench/harness"
)

// EncodeBenchfmt renders b in the Go benchmark format, one line per
// measurement sample, so the output can be fed to benchstat.
func EncodeBenchfmt(b Bundle) ([]byte, error) {
	var buf bytes.Buffer
	w := benchfmt.NewWriter(&buf)
	for _, r := range b.Records {
		for _, res := range harness.BenchfmtResults(r) {
			if err := w.Write(res); err != nil {
				return nil, fmt.Errorf("encode %s: %w", r.Params, err)
			}
		}
	}
	return buf.Bytes(), nil
}

// BenchfmtFactory handles "benchfmt:<path>".
func BenchfmtFactory() Factory {
	return PrefixFactory("benchfmt:", func(path string) (Writer, error) {
		if path == "" {
			return nil, fmt.Errorf("%w: benchfmt: needs a file path", ErrInvalidURI)
		}
		return WriterFunc(func(_ context.Context, out io.Writer, b Bundle) error {
			data, err := EncodeBenchfmt(b)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Writing result to file: "+path)
			return writeFile(path, data)
		}), nil
	})
}
