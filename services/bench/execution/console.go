// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package execution

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/AleutianBench/services/bench/descriptor"
)

// Console palette.
var (
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#2C4A54")
)

var consoleStyles = struct {
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
}{
	Success: lipgloss.NewStyle().Foreground(colorSuccess),
	Warning: lipgloss.NewStyle().Foreground(colorWarning),
	Error:   lipgloss.NewStyle().Foreground(colorError),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
	Bold:    lipgloss.NewStyle().Bold(true),
}

// ConsoleListener prints an indented event log and keeps a summary.
//
// Colors are used only when the writer is a terminal.
//
// Thread Safety: Safe for concurrent use.
type ConsoleListener struct {
	mu     sync.Mutex
	w      io.Writer
	styled bool

	succeeded int
	failed    int
	skipped   int
}

// NewConsoleListener returns a listener writing to w.
func NewConsoleListener(w io.Writer) *ConsoleListener {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &ConsoleListener{w: w, styled: styled}
}

func (c *ConsoleListener) render(style lipgloss.Style, s string) string {
	if !c.styled {
		return s
	}
	return style.Render(s)
}

func indent(n *descriptor.Node) string {
	depth := len(n.ID) - 1
	if depth < 0 {
		depth = 0
	}
	return strings.Repeat("  ", depth)
}

func (c *ConsoleListener) ExecutionStarted(n *descriptor.Node) {
	if n.Kind.IsLeaf() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s%s\n", indent(n), c.render(consoleStyles.Bold, n.DisplayName))
}

func (c *ConsoleListener) ExecutionSkipped(n *descriptor.Node, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipped++
	fmt.Fprintf(c.w, "%s%s %s %s\n", indent(n),
		c.render(consoleStyles.Warning, "○"), n.DisplayName,
		c.render(consoleStyles.Muted, "("+reason+")"))
}

func (c *ConsoleListener) ExecutionFinished(n *descriptor.Node, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !n.Kind.IsLeaf() {
		if result.Status != StatusSuccessful && n.IsRoot() {
			fmt.Fprintf(c.w, "%s %s\n", c.render(consoleStyles.Error, "✗"), result)
		}
		return
	}

	if result.Status == StatusSuccessful {
		c.succeeded++
		fmt.Fprintf(c.w, "%s%s %s\n", indent(n), c.render(consoleStyles.Success, "✓"), n.DisplayName)
		return
	}
	c.failed++
	fmt.Fprintf(c.w, "%s%s %s: %s\n", indent(n), c.render(consoleStyles.Error, "✗"), n.DisplayName, result.Err)
	var be *BenchmarkError
	if errors.As(result.Err, &be) && len(be.Output) > 0 {
		for _, line := range be.Output {
			fmt.Fprintf(c.w, "%s    %s\n", indent(n), c.render(consoleStyles.Muted, line))
		}
	}
}

// Summary returns the leaf counts seen so far.
func (c *ConsoleListener) Summary() (succeeded, failed, skipped int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.succeeded, c.failed, c.skipped
}

// PrintSummary writes a one-line summary.
func (c *ConsoleListener) PrintSummary() {
	ok, failed, skipped := c.Summary()
	c.mu.Lock()
	defer c.mu.Unlock()
	line := fmt.Sprintf("%d succeeded, %d failed, %d skipped", ok, failed, skipped)
	style := consoleStyles.Success
	if failed > 0 {
		style = consoleStyles.Error
	}
	fmt.Fprintln(c.w, c.render(style, line))
}
