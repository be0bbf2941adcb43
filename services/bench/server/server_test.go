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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianBench/services/bench/config"
	"github.com/AleutianAI/AleutianBench/services/bench/engine"
	"github.com/AleutianAI/AleutianBench/services/bench/execution"
	"github.com/AleutianAI/AleutianBench/services/bench/model/reflectbind"
	"github.com/AleutianAI/AleutianBench/services/bench/publish"
	"github.com/AleutianAI/AleutianBench/services/bench/samples"
	"github.com/AleutianAI/AleutianBench/services/bench/storage/badger"
	"github.com/AleutianAI/AleutianBench/services/bench/telemetry"
)

const stringsSuite = "github.com/AleutianAI/AleutianBench/services/bench/samples.StringsSuite"

func init() {
	gin.SetMode(gin.TestMode)
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	router *gin.Engine
	store  *badger.RunStore
}

func setup(t *testing.T, opts ...Option) fixture {
	t.Helper()
	reg := reflectbind.New(reflectbind.WithLogger(quiet()))
	require.NoError(t, samples.Register(reg))

	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := badger.NewRunStore(db)

	props := config.New(map[string]string{
		config.WarmupIterations.Name():      "1",
		config.WarmupBatchSize.Name():       "1",
		config.MeasurementIterations.Name(): "2",
		config.MeasurementBatchSize.Name():  "1",
		config.Timeout.Name():               "60",
	})
	eng := engine.New(
		engine.WithLogger(quiet()),
		engine.WithRegistry(reg),
		engine.WithProperties(props),
		engine.WithHistory(store),
		engine.WithPublisher(publish.NewPublisher(publish.WithLogger(quiet()))),
	)

	metrics, err := telemetry.NewMetrics(otel.Meter("server-test"))
	require.NoError(t, err)

	base := []Option{
		WithLogger(quiet()),
		WithHistory(store),
		WithMetrics(metrics),
		WithExecuteLimit(rate.Inf, 1),
	}
	h := NewHandlers(eng, append(base, opts...)...)
	return fixture{router: NewRouter("bench-test", h), store: store}
}

func (f fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func finishedEvents(events []execution.Event) int {
	n := 0
	for _, e := range events {
		if e.Type == execution.EventFinished {
			n++
		}
	}
	return n
}

// TestHandleHealth verifies the health endpoint.
func TestHandleHealth(t *testing.T) {
	f := setup(t)
	w := f.do(t, http.MethodGet, "/v1/bench/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, engine.ID, resp.Engine)
	assert.Equal(t, ServiceVersion, resp.Version)
}

// TestHandleDiscover verifies tree rendering and request validation.
func TestHandleDiscover(t *testing.T) {
	f := setup(t)

	t.Run("class selector", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/bench/discover", DiscoverRequest{Selectors: []string{"class:" + stringsSuite}})
		require.Equal(t, http.StatusOK, w.Code)

		resp := decode[DiscoverResponse](t, w)
		assert.Equal(t, 1, resp.Classes)
		assert.Equal(t, 4, resp.Leaves)
		assert.Equal(t, "engine", resp.Tree.Kind)
		require.Len(t, resp.Tree.Children, 1)
		class := resp.Tree.Children[0]
		assert.Equal(t, "class", class.Kind)
		require.Len(t, class.Children, 2)

		fixtures := class.Children[0].Children
		require.Len(t, fixtures, 2)
		assert.Equal(t, "fixture", fixtures[0].Kind)
		assert.Equal(t, map[string]string{"Parts": "4"}, fixtures[0].Params)
	})

	t.Run("unknown class is reported", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/bench/discover", DiscoverRequest{Selectors: []string{"class:example.com/nope.Suite"}})
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[DiscoverResponse](t, w)
		assert.Len(t, resp.Errors, 1)
		assert.Empty(t, resp.Tree.Children)
	})

	t.Run("invalid selector", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/bench/discover", DiscoverRequest{Selectors: []string{"class:"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/bench/discover", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// TestHandleExecute verifies a synchronous run and the stored history.
func TestHandleExecute(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodPost, "/v1/bench/execute", ExecuteRequest{
		DiscoverRequest: DiscoverRequest{Selectors: []string{"class:" + stringsSuite}},
		Properties:      map[string]string{config.Project.Name(): "api"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[ExecuteResponse](t, w)
	assert.Equal(t, StatusSuccessful, resp.Status)
	assert.Empty(t, resp.Error)
	require.NotEmpty(t, resp.RunID)
	assert.Len(t, resp.Results, 4)
	// root + class + 2 methods + 4 fixtures
	assert.Equal(t, 8, finishedEvents(resp.Events))

	t.Run("list runs", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/v1/bench/runs", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode[struct {
			Runs []RunSummary `json:"runs"`
		}](t, w)
		require.Len(t, body.Runs, 1)
		assert.Equal(t, resp.RunID, body.Runs[0].ID)
		assert.Equal(t, "api", body.Runs[0].Project)
		assert.Equal(t, 4, body.Runs[0].Records)
	})

	t.Run("get run", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/v1/bench/runs/"+resp.RunID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode[struct {
			ID      string           `json:"id"`
			Records []publish.Record `json:"records"`
		}](t, w)
		assert.Equal(t, resp.RunID, body.ID)
		require.Len(t, body.Records, 4)
		assert.Equal(t, "api", body.Records[0].Project)
	})

	t.Run("unknown run", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/v1/bench/runs/nope", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad limit", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/v1/bench/runs?limit=x", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// TestHandleExecute_Outcomes verifies skipped runs and request errors.
func TestHandleExecute_Outcomes(t *testing.T) {
	f := setup(t)

	t.Run("disabled run is skipped", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/bench/execute", ExecuteRequest{
			DiscoverRequest: DiscoverRequest{Selectors: []string{"class:" + stringsSuite}},
			Properties:      map[string]string{config.Enabled.Name(): "false"},
		})
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[ExecuteResponse](t, w)
		assert.Equal(t, StatusSkipped, resp.Status)
		assert.Empty(t, resp.RunID)
	})

	t.Run("invalid properties", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/bench/execute", ExecuteRequest{
			Properties: map[string]string{config.Forks.Name(): "many"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid selector", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/bench/execute", ExecuteRequest{
			DiscoverRequest: DiscoverRequest{Selectors: []string{"uid:[broken"}},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// TestHandleExecute_RateLimit verifies that excess runs are rejected and
// counted.
func TestHandleExecute_RateLimit(t *testing.T) {
	f := setup(t, WithExecuteLimit(rate.Every(time.Hour), 1))
	req := ExecuteRequest{
		DiscoverRequest: DiscoverRequest{Selectors: []string{"class:" + stringsSuite}},
		Properties:      map[string]string{config.Enabled.Name(): "false"},
	}

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/bench/execute", req).Code)
	w := f.do(t, http.MethodPost, "/v1/bench/execute", req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "execute rate exceeded", decode[ErrorResponse](t, w).Error)

	metrics := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "bench_server_rejected_total")
}

// TestHandleListRuns_NoHistory verifies 503 without a run store.
func TestHandleListRuns_NoHistory(t *testing.T) {
	reg := reflectbind.New(reflectbind.WithLogger(quiet()))
	h := NewHandlers(engine.New(engine.WithRegistry(reg), engine.WithLogger(quiet())), WithLogger(quiet()))
	router := NewRouter("bench-test", h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/bench/runs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// TestHandleExecuteStream verifies events and the final message over a
// websocket.
func TestHandleExecuteStream(t *testing.T) {
	f := setup(t)
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/bench/execute/stream"
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(ExecuteRequest{
		DiscoverRequest: DiscoverRequest{Selectors: []string{"method:" + stringsSuite + "#BenchmarkBuilder"}},
	}))

	var events []execution.Event
	var done *ExecuteResponse
	for done == nil {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(time.Minute)))
		var msg StreamMessage
		require.NoError(t, ws.ReadJSON(&msg))
		switch msg.Type {
		case "event":
			require.NotNil(t, msg.Event)
			events = append(events, *msg.Event)
		case "done":
			done = msg.Done
		}
	}

	require.NotNil(t, done)
	assert.Equal(t, StatusSuccessful, done.Status, done.Error)
	assert.Len(t, done.Results, 2)
	// root + class + method + 2 fixtures
	assert.Equal(t, 5, finishedEvents(events))
	assert.Equal(t, execution.EventStarted, events[0].Type)
}
