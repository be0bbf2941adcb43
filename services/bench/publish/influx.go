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
	"net/url"
	"strings"

	"github.com/awnumar/memguard"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/AleutianAI/AleutianBench/services/bench/harness"
)

// InfluxMeasurement is the measurement every result point is written to.
const InfluxMeasurement = "benchmark"

// influxTarget is a parsed influxdb:// URI. The token stays sealed until a
// write needs it.
type influxTarget struct {
	serverURL string
	org       string
	bucket    string
	token     *memguard.Enclave
}

// parseInflux parses "influxdb://token@host:port/org/bucket". The
// "influxdbs" scheme selects https.
func parseInflux(uri string) (*influxTarget, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	httpScheme := "http"
	if u.Scheme == "influxdbs" {
		httpScheme = "https"
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if u.Host == "" || len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: want influxdb://token@host:port/org/bucket", ErrInvalidURI)
	}
	if u.User == nil || u.User.Username() == "" {
		return nil, fmt.Errorf("%w: influxdb uri has no token", ErrInvalidURI)
	}

	return &influxTarget{
		serverURL: httpScheme + "://" + u.Host,
		org:       parts[0],
		bucket:    parts[1],
		token:     memguard.NewEnclave([]byte(u.User.Username())),
	}, nil
}

// InfluxPoints converts b to one point per result.
//
// Tags: run_id, project, version, group, benchmark, mode and one
// "param_<name>" tag per fixture parameter. Fields: score, score_error,
// ci_low, ci_high, ops and samples.
func InfluxPoints(b Bundle) []*write.Point {
	points := make([]*write.Point, 0, len(b.Records))
	for _, r := range b.Records {
		group, bench := harness.SplitIdentity(r.Params.Benchmark)
		p := influxdb2.NewPointWithMeasurement(InfluxMeasurement).
			AddTag("run_id", b.Metadata.RunID).
			AddTag("group", group).
			AddTag("benchmark", bench).
			AddTag("mode", string(r.Params.Mode)).
			AddField("score", r.Score).
			AddField("score_error", r.ScoreError).
			AddField("ci_low", r.ScoreConfidence[0]).
			AddField("ci_high", r.ScoreConfidence[1]).
			AddField("ops", r.Ops).
			AddField("samples", len(r.Samples)).
			SetTime(b.Metadata.Time)
		if b.Metadata.Project != "" {
			p.AddTag("project", b.Metadata.Project)
		}
		if b.Metadata.Version != "" {
			p.AddTag("version", b.Metadata.Version)
		}
		for _, kv := range r.Params.Params {
			p.AddTag("param_"+kv.Name, kv.Value)
		}
		points = append(points, p)
	}
	return points
}

func (t *influxTarget) Write(ctx context.Context, out io.Writer, b Bundle) error {
	sealed, err := t.token.Open()
	if err != nil {
		return fmt.Errorf("open influxdb token: %w", err)
	}
	token := string(sealed.Bytes())
	sealed.Destroy()

	client := influxdb2.NewClient(t.serverURL, token)
	defer client.Close()

	writeAPI := client.WriteAPIBlocking(t.org, t.bucket)
	if err := writeAPI.WritePoint(ctx, InfluxPoints(b)...); err != nil {
		return fmt.Errorf("write to influxdb %s: %w", t.serverURL, err)
	}
	fmt.Fprintf(out, "Wrote %d results to influxdb bucket %s\n", len(b.Records), t.bucket)
	return nil
}

// InfluxFactory handles "influxdb://" and "influxdbs://" URIs.
func InfluxFactory() Factory {
	return FactoryFunc(func(uri string) (Writer, bool, error) {
		if !strings.HasPrefix(uri, "influxdb://") && !strings.HasPrefix(uri, "influxdbs://") {
			return nil, false, nil
		}
		t, err := parseInflux(uri)
		if err != nil {
			return nil, true, err
		}
		return t, true, nil
	})
}
