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
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianBench/services/bench/descriptor"
	"github.com/AleutianAI/AleutianBench/services/bench/model"
	"github.com/AleutianAI/AleutianBench/services/bench/server"
)

func runDiscover(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	tree, report, err := eng.Resolve(cmd.Context(), engineRequest(args))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := json.MarshalIndent(server.TreeView(tree, tree.Root()), "", "  ")
		if err != nil {
			return fmt.Errorf("encode tree: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	renderTree(out, tree)
	fmt.Fprintf(out, "\n%d classes, %d benchmarks\n", report.Classes, report.Leaves)
	for _, w := range report.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", w)
	}
	for _, e := range report.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", e)
	}
	return nil
}

// renderTree prints one node per line, indented by depth. Disabled nodes
// carry their reason.
func renderTree(w io.Writer, tree *descriptor.Tree) {
	depth := map[int]int{}
	tree.Walk(func(n *descriptor.Node) bool {
		d := 0
		if n.Parent >= 0 {
			d = depth[n.Parent] + 1
		}
		depth[n.Index] = d

		line := strings.Repeat("  ", d) + n.DisplayName
		if reason, ok := disabledReason(n); ok {
			line += " (disabled: " + reason + ")"
		}
		fmt.Fprintln(w, line)
		return true
	})
}

func disabledReason(n *descriptor.Node) (string, bool) {
	switch n.Kind {
	case descriptor.KindClass:
		if n.Class != nil && n.Class.Tags.Has(model.TagDisabled) {
			reason, _ := n.Class.Attribute(model.AttrDisabledReason)
			return reason, true
		}
	case descriptor.KindMethod, descriptor.KindParametrizedMethod:
		if n.Method != nil && n.Method.Tags.Has(model.TagDisabled) {
			reason, _ := n.Method.Attribute(model.AttrDisabledReason)
			return reason, true
		}
	}
	return "", false
}
