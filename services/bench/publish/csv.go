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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianBench/services/bench/harness"
)

// CSVReport renders records as a comma-and-space separated table.
//
// Description:
//
//	The header is "class, method, <param names...>, median, mean, range".
//	Parameter columns are the union of every record's parameter names in
//	first-seen order; a record without a parameter leaves its cell empty.
//	median is the record score, mean the sample mean and range half the
//	spread between the slowest and fastest sample.
func CSVReport(records []harness.Result) string {
	var names []string
	seen := make(map[string]bool)
	for _, r := range records {
		for _, p := range r.Params.Params {
			if !seen[p.Name] {
				seen[p.Name] = true
				names = append(names, p.Name)
			}
		}
	}

	var sb strings.Builder
	header := append([]string{"class", "method"}, names...)
	header = append(header, "median", "mean", "range")
	sb.WriteString(strings.Join(header, ", "))
	sb.WriteByte('\n')

	for _, r := range records {
		class, method := harness.SplitIdentity(r.Params.Benchmark)
		row := make([]string, 0, len(header))
		row = append(row, class, method)
		for _, name := range names {
			v, _ := r.Params.Param(name)
			row = append(row, v)
		}
		row = append(row,
			formatScore(r.Score),
			formatScore(harness.Mean(r.Samples)),
			formatScore(harness.Range(r.Samples)/2),
		)
		sb.WriteString(strings.Join(row, ", "))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// CSVFactory handles "csv:<path>". The report is printed to the output and
// written to path, creating parent directories.
func CSVFactory() Factory {
	return PrefixFactory("csv:", func(path string) (Writer, error) {
		if path == "" {
			return nil, fmt.Errorf("%w: csv: needs a file path", ErrInvalidURI)
		}
		return WriterFunc(func(_ context.Context, out io.Writer, b Bundle) error {
			report := CSVReport(b.Records)
			fmt.Fprintln(out, report)
			fmt.Fprintln(out, "Writing result to file: "+path)
			return writeFile(path, []byte(report))
		}), nil
	})
}

// SysoutFactory handles "sysout" by printing the CSV report to the output.
func SysoutFactory() Factory {
	return FactoryFunc(func(uri string) (Writer, bool, error) {
		if uri != "sysout" {
			return nil, false, nil
		}
		return WriterFunc(func(_ context.Context, out io.Writer, b Bundle) error {
			_, err := fmt.Fprintln(out, CSVReport(b.Records))
			return err
		}), true, nil
	})
}

// writeFile replaces path, creating parent directories.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
