// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry sets up OpenTelemetry tracing and metrics for the
// benchmark service.
//
// Init installs the global tracer and meter providers. Packages that emit
// spans or metrics call otel.Tracer and otel.Meter and pick up whatever
// providers are installed, so nothing here is required for correctness:
// without Init every instrument is a no-op.
//
// Exporters:
//
//	Traces:  "otlp" (gRPC), "stdout", "none"
//	Metrics: "prometheus", "stdout", "none"
//
// With the Prometheus exporter, MetricsHandler returns the handler that
// serves /metrics.
package telemetry
