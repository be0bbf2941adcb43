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
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianBench/services/bench/telemetry"
)

var (
	tracer = otel.Tracer("aleutian.bench.publish")
	meter  = otel.Meter("aleutian.bench.publish")
)

var (
	publishTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		publishTotal, metricsErr = meter.Int64Counter(
			"bench_publish_total",
			metric.WithDescription("Results writer invocations by scheme and status"),
		)
	})
	return metricsErr
}

func recordPublish(ctx context.Context, scheme, status string) {
	if err := initMetrics(); err != nil {
		return
	}
	publishTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scheme", scheme),
		attribute.String("status", status),
	))
}

func startPublishSpan(ctx context.Context, writers, records int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Publisher.Publish",
		trace.WithAttributes(
			telemetry.AttrWriters.Int(writers),
			telemetry.AttrRecords.Int(records),
		),
	)
}
