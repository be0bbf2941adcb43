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
	"fmt"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/AleutianAI/AleutianBench/services/bench/harness"
)

// ReportFilename returns "<version>_yyyy-MM-dd_<Simple>.json", without the
// version prefix when version is empty.
func ReportFilename(m Metadata, simpleClass string) string {
	var sb strings.Builder
	if m.Version != "" {
		sb.WriteString(m.Version)
		sb.WriteByte('_')
	}
	sb.WriteString(m.Time.Format("2006-01-02"))
	sb.WriteByte('_')
	sb.WriteString(simpleClass)
	sb.WriteString(".json")
	return sb.String()
}

// WriteReports writes one JSON report per class into dir, replacing any
// existing file, and returns the paths written in class order.
//
// Each report holds that class's harness results.
func WriteReports(dir string, b Bundle) ([]string, error) {
	if dir == "" {
		return nil, nil
	}

	var order []string
	byClass := make(map[string][]harness.Result)
	for _, r := range b.Records {
		class, _ := harness.SplitIdentity(r.Params.Benchmark)
		if _, ok := byClass[class]; !ok {
			order = append(order, class)
		}
		byClass[class] = append(byClass[class], r)
	}

	paths := make([]string, 0, len(order))
	for _, class := range order {
		data, err := json.MarshalIndent(byClass[class], "", "  ")
		if err != nil {
			return paths, fmt.Errorf("encode report for %s: %w", class, err)
		}
		p := filepath.Join(dir, ReportFilename(b.Metadata, simpleName(class)))
		if err := writeFile(p, data); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// simpleName strips the package path from a qualified class name.
func simpleName(class string) string {
	if i := strings.LastIndex(class, "."); i >= 0 {
		return class[i+1:]
	}
	return class
}
