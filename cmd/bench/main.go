// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command bench discovers and runs Go microbenchmark suites.
//
// Suites are structs registered with the reflectbind registry; every method
// shaped like func (s *Suite) BenchmarkX(b *testing.B) is a benchmark and
// exported fields tagged `param:"..."` span its parameter matrix.
//
// Usage:
//
//	bench discover                         # list every registered suite
//	bench run StringsSuite                 # run one suite
//	bench run --pick                       # choose benchmarks interactively
//	bench run -D wi=1 -D i=3 --text        # override properties, print benchfmt
//	bench serve --addr :8088               # HTTP API with /metrics
//	bench watch ./benchmarks               # re-scan sources on change
//	bench history --limit 5                # recent runs
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
