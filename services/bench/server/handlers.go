// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianBench/services/bench/engine"
	"github.com/AleutianAI/AleutianBench/services/bench/execution"
	"github.com/AleutianAI/AleutianBench/services/bench/publish"
	"github.com/AleutianAI/AleutianBench/services/bench/storage/badger"
	"github.com/AleutianAI/AleutianBench/services/bench/telemetry"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "0.4.0"

// Run statuses.
const (
	StatusSuccessful = "successful"
	StatusSkipped    = "skipped"
	StatusFailed     = "failed"
)

var rejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bench_server_rejected_total",
	Help: "Execute requests rejected before running",
}, []string{"reason"})

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// Option configures Handlers.
type Option func(*Handlers)

// WithHistory serves stored runs from store.
func WithHistory(store *badger.RunStore) Option {
	return func(h *Handlers) {
		h.history = store
	}
}

// WithMetrics records request and run metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(h *Handlers) {
		h.metrics = m
	}
}

// WithExecuteLimit rate-limits execute requests. Defaults to one run per
// second with a burst of two.
func WithExecuteLimit(limit rate.Limit, burst int) Option {
	return func(h *Handlers) {
		h.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithLogger sets the handler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handlers) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Handlers serves the benchmark API.
//
// Thread Safety:
//
//	Safe for concurrent use. At most one execution runs at a time; a
//	concurrent execute request is rejected with 409 so measurements do not
//	compete for the CPU.
type Handlers struct {
	engine  *engine.Engine
	history *badger.RunStore
	metrics *telemetry.Metrics
	limiter *rate.Limiter
	logger  *slog.Logger

	running atomic.Bool
}

// NewHandlers returns handlers over eng.
func NewHandlers(eng *engine.Engine, opts ...Option) *Handlers {
	h := &Handlers{
		engine:  eng,
		limiter: rate.NewLimiter(rate.Limit(1), 2),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleHealth handles GET /v1/bench/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Engine:  h.engine.ID(),
		Version: ServiceVersion,
	})
}

// HandleDiscover handles POST /v1/bench/discover.
//
// Response:
//
//	200 OK: DiscoverResponse
//	400 Bad Request: malformed body, selectors or filters
//	500 Internal Server Error: source scan failure
func (h *Handlers) HandleDiscover(c *gin.Context) {
	var req DiscoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, "discover", http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := c.Request.Context()
	tree, report, err := h.engine.Resolve(ctx, req.engineRequest())
	if err != nil {
		h.fail(c, "discover", statusFor(err), err.Error())
		return
	}

	resp := DiscoverResponse{
		Tree:     TreeView(tree, tree.Root()),
		Classes:  report.Classes,
		Leaves:   report.Leaves,
		Warnings: report.Warnings,
	}
	for _, rerr := range report.Errors {
		resp.Errors = append(resp.Errors, rerr.Error())
	}
	h.recordRun(ctx, "discover", StatusSuccessful)
	if h.metrics != nil {
		h.metrics.NodesDiscovered.Record(ctx, int64(tree.Len()))
	}
	c.JSON(http.StatusOK, resp)
}

// HandleExecute handles POST /v1/bench/execute.
//
// Description:
//
//	Discovers the requested tree and runs it synchronously. A failed run
//	is still 200 OK; Status and Error describe the outcome.
//
// Response:
//
//	200 OK: ExecuteResponse
//	400 Bad Request: malformed body, selectors or properties
//	409 Conflict: another execution is in progress
//	422 Unprocessable Entity: the tree has no runtime binding
//	429 Too Many Requests: execute rate exceeded
func (h *Handlers) HandleExecute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, "execute", http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.admit(c) {
		return
	}
	defer h.running.Store(false)

	rec := &execution.Recorder{}
	resp, status := h.execute(c.Request.Context(), req, rec)
	if status != http.StatusOK {
		h.fail(c, "execute", status, resp.Error)
		return
	}
	resp.Events = rec.Events()
	c.JSON(http.StatusOK, resp)
}

// HandleExecuteStream handles GET /v1/bench/execute/stream.
//
// Description:
//
//	Upgrades to a websocket, reads one ExecuteRequest and streams every
//	execution event as a StreamMessage of type "event", followed by one
//	"done" message carrying the ExecuteResponse. The server closes the
//	connection afterwards.
func (h *Handlers) HandleExecuteStream(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade the websocket", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	var req ExecuteRequest
	if err := ws.ReadJSON(&req); err != nil {
		h.logger.Info("websocket client sent no request", slog.String("error", err.Error()))
		return
	}

	done := func(resp ExecuteResponse) {
		if err := ws.WriteJSON(StreamMessage{Type: "done", Done: &resp}); err != nil {
			h.logger.Warn("failed to write websocket message", slog.String("error", err.Error()))
		}
	}

	if !h.limiter.Allow() {
		rejectedTotal.WithLabelValues("rate_limited").Inc()
		done(ExecuteResponse{Status: StatusFailed, Error: "execute rate exceeded"})
		return
	}
	if !h.running.CompareAndSwap(false, true) {
		rejectedTotal.WithLabelValues("busy").Inc()
		done(ExecuteResponse{Status: StatusFailed, Error: "another execution is in progress"})
		return
	}
	defer h.running.Store(false)

	var mu sync.Mutex
	stream := execution.ListenerFuncs(func(e execution.Event) {
		mu.Lock()
		defer mu.Unlock()
		if err := ws.WriteJSON(StreamMessage{Type: "event", Event: &e}); err != nil {
			h.logger.Warn("failed to write websocket message", slog.String("error", err.Error()))
		}
	})

	resp, _ := h.execute(c.Request.Context(), req, stream)
	mu.Lock()
	defer mu.Unlock()
	done(resp)
}

// admit applies the rate limit and the single-execution rule.
func (h *Handlers) admit(c *gin.Context) bool {
	if !h.limiter.Allow() {
		rejectedTotal.WithLabelValues("rate_limited").Inc()
		h.fail(c, "execute", http.StatusTooManyRequests, "execute rate exceeded")
		return false
	}
	if !h.running.CompareAndSwap(false, true) {
		rejectedTotal.WithLabelValues("busy").Inc()
		h.fail(c, "execute", http.StatusConflict, "another execution is in progress")
		return false
	}
	return true
}

// execute discovers and runs req. The returned status is the HTTP status
// for request errors, or 200 when the run itself completed in any state.
func (h *Handlers) execute(ctx context.Context, req ExecuteRequest, listener execution.Listener) (ExecuteResponse, int) {
	eng := h.engine.Configure(req.Properties)

	tree, err := eng.Discover(ctx, req.engineRequest())
	if err != nil {
		return ExecuteResponse{Status: StatusFailed, Error: err.Error()}, statusFor(err)
	}

	skipped := false
	root := tree.Root()
	watch := execution.ListenerFuncs(func(e execution.Event) {
		if e.Type == execution.EventSkipped && e.Node == root.Key() {
			skipped = true
		}
	})

	bundle, err := eng.ExecuteRun(ctx, tree, execution.Multi{listener, watch})
	switch {
	case errors.Is(err, engine.ErrInvalidConfiguration), errors.Is(err, engine.ErrNotExecutable):
		return ExecuteResponse{Status: StatusFailed, Error: err.Error()}, statusFor(err)
	case err != nil:
		h.recordRun(ctx, "execute", StatusFailed)
		return ExecuteResponse{Status: StatusFailed, Error: err.Error()}, http.StatusOK
	case skipped:
		h.recordRun(ctx, "execute", StatusSkipped)
		return ExecuteResponse{Status: StatusSkipped}, http.StatusOK
	}

	h.recordRun(ctx, "execute", StatusSuccessful)
	resp := ExecuteResponse{Status: StatusSuccessful}
	if bundle != nil {
		resp.RunID = bundle.Metadata.RunID
		resp.Results = bundle.Records
	}
	return resp, http.StatusOK
}

// HandleListRuns handles GET /v1/bench/runs?limit=N.
func (h *Handlers) HandleListRuns(c *gin.Context) {
	if h.history == nil {
		h.fail(c, "history", http.StatusServiceUnavailable, "run history is not configured")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 {
		h.fail(c, "history", http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	runs, err := h.history.List(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, "history", http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]RunSummary, 0, len(runs))
	for _, r := range runs {
		out = append(out, RunSummary{
			ID:      r.ID,
			Project: r.Project,
			Version: r.Version,
			Time:    r.Time,
			OS:      r.OS,
			Records: len(r.Records),
		})
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

// HandleGetRun handles GET /v1/bench/runs/:id. The run is returned in the
// json: writer's record format.
func (h *Handlers) HandleGetRun(c *gin.Context) {
	if h.history == nil {
		h.fail(c, "history", http.StatusServiceUnavailable, "run history is not configured")
		return
	}
	run, err := h.history.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, badger.ErrRunNotFound) {
		h.fail(c, "history", http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.fail(c, "history", http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": run.ID, "records": publish.Records(publish.BundleOf(run))})
}

func (h *Handlers) fail(c *gin.Context, component string, status int, msg string) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", slog.String("component", component), slog.String("error", msg))
	}
	if h.metrics != nil {
		h.metrics.ErrorsTotal.Add(c.Request.Context(), 1, metric.WithAttributes(
			attribute.String("component", component),
			attribute.Int("status", status),
		))
	}
	c.JSON(status, ErrorResponse{Error: msg})
}

func (h *Handlers) recordRun(ctx context.Context, kind, status string) {
	if h.metrics == nil {
		return
	}
	h.metrics.RunsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidRequest), errors.Is(err, engine.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNotExecutable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
