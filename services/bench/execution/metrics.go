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
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianBench/services/bench/telemetry"
)

var (
	tracer = otel.Tracer("aleutian.bench.execution")
	meter  = otel.Meter("aleutian.bench.execution")
)

var (
	eventsTotal  metric.Int64Counter
	runDuration  metric.Float64Histogram
	runsTotal    metric.Int64Counter
	patternCount metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		eventsTotal, err = meter.Int64Counter(
			"bench_events_total",
			metric.WithDescription("Listener events emitted by the execution bridge"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runDuration, err = meter.Float64Histogram(
			"bench_execution_duration_seconds",
			metric.WithDescription("Duration of bridge executions"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runsTotal, err = meter.Int64Counter(
			"bench_executions_total",
			metric.WithDescription("Bridge executions by final state"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		patternCount, err = meter.Int64Histogram(
			"bench_execution_patterns",
			metric.WithDescription("Inclusion patterns handed to the harness per run"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordEvent(ctx context.Context, typ EventType, status string) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("type", string(typ))}
	if status != "" {
		attrs = append(attrs, attribute.String("status", status))
	}
	eventsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func recordRun(ctx context.Context, seconds float64, state State, patterns int) {
	if err := initMetrics(); err != nil {
		return
	}
	runDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("state", state.String())))
	runsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state.String())))
	patternCount.Record(ctx, int64(patterns))
}

func startExecuteSpan(ctx context.Context, leaves int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Bridge.Execute",
		trace.WithAttributes(telemetry.AttrLeaves.Int(leaves)),
	)
}
