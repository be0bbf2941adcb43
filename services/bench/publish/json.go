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
	"time"

	json "github.com/goccy/go-json"

	"github.com/AleutianAI/AleutianBench/services/bench/harness"
)

// Record is the JSON shape of one published result.
type Record struct {
	Date      string            `json:"date"`
	Project   string            `json:"project"`
	Version   string            `json:"version"`
	Group     string            `json:"group"`
	Benchmark string            `json:"benchmark"`
	Method    string            `json:"method"`
	Mode      string            `json:"mode"`
	Env       map[string]string `json:"env"`
	Params    map[string]string `json:"params,omitempty"`
	Primary   Primary           `json:"primary"`
}

// Primary is the primary score of a Record.
type Primary struct {
	Score           float64    `json:"score"`
	ScoreError      float64    `json:"scoreError"`
	ScoreConfidence [2]float64 `json:"scoreConfidence"`
	ScoreUnit       string     `json:"scoreUnit"`
}

// Records converts b to one Record per result. group is the class part of
// the flat benchmark name, benchmark the method part and method the full
// name.
func Records(b Bundle) []Record {
	env := b.Metadata.env()
	out := make([]Record, 0, len(b.Records))
	for _, r := range b.Records {
		group, bench := harness.SplitIdentity(r.Params.Benchmark)
		rec := Record{
			Date:      b.Metadata.Time.Format(time.RFC3339),
			Project:   b.Metadata.Project,
			Version:   b.Metadata.Version,
			Group:     group,
			Benchmark: bench,
			Method:    r.Params.Benchmark,
			Mode:      string(r.Params.Mode),
			Env:       env,
			Primary: Primary{
				Score:           r.Score,
				ScoreError:      r.ScoreError,
				ScoreConfidence: r.ScoreConfidence,
				ScoreUnit:       r.Unit,
			},
		}
		if len(r.Params.Params) > 0 {
			rec.Params = r.Params.ParamMap()
		}
		out = append(out, rec)
	}
	return out
}

// EncodeRecords renders Records(b) as an indented JSON array.
func EncodeRecords(b Bundle) ([]byte, error) {
	data, err := json.MarshalIndent(Records(b), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	return data, nil
}

// JSONFactory handles "json:<path>".
func JSONFactory() Factory {
	return PrefixFactory("json:", func(path string) (Writer, error) {
		if path == "" {
			return nil, fmt.Errorf("%w: json: needs a file path", ErrInvalidURI)
		}
		return WriterFunc(func(_ context.Context, out io.Writer, b Bundle) error {
			data, err := EncodeRecords(b)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Writing result to file: "+path)
			return writeFile(path, data)
		}), nil
	})
}
