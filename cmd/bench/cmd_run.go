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
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianBench/services/bench/descriptor"
	"github.com/AleutianAI/AleutianBench/services/bench/engine"
	"github.com/AleutianAI/AleutianBench/services/bench/execution"
	"github.com/AleutianAI/AleutianBench/services/bench/harness"
)

// errBenchmarksFailed makes the process exit non-zero after a run with
// failed leaves.
var errBenchmarksFailed = errors.New("benchmarks failed")

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pick, _ := cmd.Flags().GetBool("pick")
	text, _ := cmd.Flags().GetBool("text")
	noHistory, _ := cmd.Flags().GetBool("no-history")

	var opts []engine.Option
	var textCallbacks *harness.TextCallbacks
	if text {
		textCallbacks = harness.NewTextCallbacks(cmd.OutOrStdout())
		opts = append(opts, engine.WithCallbacks(textCallbacks))
	}
	if !noHistory {
		store, closeHistory, err := openHistory()
		if err != nil {
			slog.Warn("run history unavailable", slog.String("error", err.Error()))
		} else {
			defer closeHistory()
			opts = append(opts, engine.WithHistory(store))
		}
	}

	eng, err := newEngine(opts...)
	if err != nil {
		return err
	}

	req := engineRequest(args)
	tree, err := eng.Discover(ctx, req)
	if err != nil {
		return err
	}

	if pick {
		if !isTerminal(os.Stdin) {
			return errors.New("--pick needs an interactive terminal")
		}
		selectors, err := pickBenchmarks(tree)
		if err != nil {
			return err
		}
		if len(selectors) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing selected.")
			return nil
		}
		req.Selectors = selectors
		if tree, err = eng.Discover(ctx, req); err != nil {
			return err
		}
	}

	listener := execution.NewConsoleListener(cmd.OutOrStdout())
	bundle, err := eng.ExecuteRun(ctx, tree, listener)
	if err != nil {
		return err
	}
	listener.PrintSummary()
	if textCallbacks != nil {
		if err := textCallbacks.Err(); err != nil {
			slog.Warn("benchmark text output failed", slog.String("error", err.Error()))
		}
	}
	if bundle != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "run %s\n", bundle.Metadata.RunID)
	}

	if _, failed, _ := listener.Summary(); failed > 0 {
		return fmt.Errorf("%w: %d", errBenchmarksFailed, failed)
	}
	return nil
}

// pickOption is one benchmark method offered by --pick.
type pickOption struct {
	Label    string
	Selector string
}

// pickOptions lists the method nodes of tree, in tree order, with a
// unique id selector each.
func pickOptions(tree *descriptor.Tree) []pickOption {
	var out []pickOption
	tree.Walk(func(n *descriptor.Node) bool {
		switch n.Kind {
		case descriptor.KindMethod, descriptor.KindParametrizedMethod:
			parent, _ := tree.ParentOf(n)
			out = append(out, pickOption{
				Label:    parent.DisplayName + "." + n.DisplayName,
				Selector: "uid:" + n.Key(),
			})
			return false
		}
		return true
	})
	return out
}

func pickBenchmarks(tree *descriptor.Tree) ([]string, error) {
	choices := pickOptions(tree)
	if len(choices) == 0 {
		return nil, nil
	}
	options := make([]huh.Option[string], 0, len(choices))
	for _, c := range choices {
		options = append(options, huh.NewOption(c.Label, c.Selector))
	}

	var selected []string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Benchmarks to run").
				Options(options...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, nil
		}
		return nil, fmt.Errorf("benchmark picker: %w", err)
	}
	return selected, nil
}
