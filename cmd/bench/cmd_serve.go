// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianBench/services/bench/engine"
	"github.com/AleutianAI/AleutianBench/services/bench/server"
	"github.com/AleutianAI/AleutianBench/services/bench/telemetry"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	addr, _ := cmd.Flags().GetString("addr")
	executeRate, _ := cmd.Flags().GetFloat64("execute-rate")

	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = Version
	shutdownTelemetry, err := telemetry.Init(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	metrics, err := telemetry.NewMetrics(otel.Meter("aleutian.bench.server"))
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	store, closeHistory, err := openHistory()
	if err != nil {
		return err
	}
	defer closeHistory()

	eng, err := newEngine(engine.WithHistory(store))
	if err != nil {
		return err
	}
	handlers := server.NewHandlers(eng,
		server.WithHistory(store),
		server.WithMetrics(metrics),
		server.WithExecuteLimit(rate.Limit(executeRate), 2),
		server.WithLogger(slog.Default()),
	)

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.NewRouter(cfg.ServiceName, handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting benchmark server", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down benchmark server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
