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
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianBench/services/bench/publish"
	"github.com/AleutianAI/AleutianBench/services/bench/storage/badger"
)

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	store, closeHistory, err := openHistory()
	if err != nil {
		return err
	}
	defer closeHistory()

	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}
	renderRuns(cmd.OutOrStdout(), runs)
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, closeHistory, err := openHistory()
	if err != nil {
		return err
	}
	defer closeHistory()

	run, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(publish.Records(publish.BundleOf(run)), "", "  ")
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.ID, err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

// renderRuns prints runs newest first as a table.
func renderRuns(w io.Writer, runs []badger.Run) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("RUN", "TIME", "PROJECT", "VERSION", "OS", "RECORDS")
	for _, r := range runs {
		t.Row(r.ID, r.Time.Local().Format(time.DateTime), r.Project, r.Version, r.OS, strconv.Itoa(len(r.Records)))
	}
	fmt.Fprintln(w, t.Render())
}
