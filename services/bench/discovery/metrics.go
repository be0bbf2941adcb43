// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discovery

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianBench/services/bench/telemetry"
)

var (
	tracer = otel.Tracer("aleutian.bench.discovery")
	meter  = otel.Meter("aleutian.bench.discovery")
)

var (
	resolveLatency metric.Float64Histogram
	resolveTotal   metric.Int64Counter
	leavesResolved metric.Int64Histogram
	selectorErrors metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		resolveLatency, err = meter.Float64Histogram(
			"bench_discovery_duration_seconds",
			metric.WithDescription("Duration of discovery requests"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		resolveTotal, err = meter.Int64Counter(
			"bench_discovery_total",
			metric.WithDescription("Total number of discovery requests"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		leavesResolved, err = meter.Int64Histogram(
			"bench_discovery_leaves",
			metric.WithDescription("Executable leaves per discovered tree"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		selectorErrors, err = meter.Int64Counter(
			"bench_discovery_selector_errors_total",
			metric.WithDescription("Selectors that could not be resolved"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordResolveMetrics(ctx context.Context, duration time.Duration, report Report) {
	if err := initMetrics(); err != nil {
		return
	}

	ok := len(report.Errors) == 0
	attrs := metric.WithAttributes(attribute.Bool("success", ok))
	resolveLatency.Record(ctx, duration.Seconds(), attrs)
	resolveTotal.Add(ctx, 1, attrs)
	leavesResolved.Record(ctx, int64(report.Leaves))
	if !ok {
		selectorErrors.Add(ctx, int64(len(report.Errors)))
	}
}

func startResolveSpan(ctx context.Context, selectors int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Builder.Resolve",
		trace.WithAttributes(telemetry.AttrSelectors.Int(selectors)),
	)
}
