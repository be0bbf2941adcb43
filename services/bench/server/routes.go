// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the benchmark engine over HTTP.
package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/AleutianBench/services/bench/telemetry"
)

// RegisterRoutes registers the /bench endpoints on rg.
//
// Endpoints:
//
//	GET  /v1/bench/health - Health check
//	POST /v1/bench/discover - Discover a tree
//	POST /v1/bench/execute - Discover and run, respond when done
//	GET  /v1/bench/execute/stream - Discover and run over a websocket
//	GET  /v1/bench/runs - List stored runs
//	GET  /v1/bench/runs/:id - Get one stored run
//
// Example:
//
//	v1 := router.Group("/v1")
//	server.RegisterRoutes(v1, server.NewHandlers(eng))
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	bench := rg.Group("/bench")
	{
		bench.GET("/health", h.HandleHealth)
		bench.POST("/discover", h.HandleDiscover)
		bench.POST("/execute", h.HandleExecute)
		bench.GET("/execute/stream", h.HandleExecuteStream)
		bench.GET("/runs", h.HandleListRuns)
		bench.GET("/runs/:id", h.HandleGetRun)
	}
}

// NewRouter returns a gin engine with tracing, request metrics, the API
// under /v1 and Prometheus metrics under /metrics.
func NewRouter(serviceName string, h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(metricsMiddleware(h.metrics))

	handler := telemetry.MetricsHandler()
	if handler == nil {
		handler = promhttp.Handler()
	}
	router.GET("/metrics", gin.WrapH(handler))

	RegisterRoutes(router.Group("/v1"), h)
	return router
}

func metricsMiddleware(m *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		start := time.Now()
		m.HTTPActiveRequests.Add(ctx, 1)
		defer m.HTTPActiveRequests.Add(ctx, -1)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("route", route),
			attribute.Int("status", c.Writer.Status()),
		)
		m.HTTPRequestsTotal.Add(ctx, 1, attrs)
		m.HTTPRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}
