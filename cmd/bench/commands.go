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
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianBench/services/bench/config"
	"github.com/AleutianAI/AleutianBench/services/bench/engine"
	"github.com/AleutianAI/AleutianBench/services/bench/storage/badger"

	// Sample suites register with the default registry.
	_ "github.com/AleutianAI/AleutianBench/services/bench/samples"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "0.4.0"

var (
	configPath    string
	noConfig      bool
	propertyFlags []string
	logLevel      string
	historyDir    string

	includeFlags []string
	excludeFlags []string
	sourceDir    string

	rootCmd = &cobra.Command{
		Use:           "bench",
		Short:         "Discover and run Go microbenchmark suites",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(logLevel, os.Stderr)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	discoverCmd = &cobra.Command{
		Use:   "discover [selector...]",
		Short: "Print the benchmark tree for the given selectors",
		RunE:  runDiscover, // Defined in cmd_discover.go
	}

	runCmd = &cobra.Command{
		Use:   "run [selector...]",
		Short: "Run the selected benchmarks",
		RunE:  runRun, // Defined in cmd_run.go
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the benchmark HTTP API",
		RunE:  runServe, // Defined in cmd_serve.go
	}

	watchCmd = &cobra.Command{
		Use:   "watch <dir> [selector...]",
		Short: "Re-scan Go sources under dir whenever they change",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runWatch, // Defined in cmd_watch.go
	}

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		RunE:  runHistory, // Defined in cmd_history.go
	}

	historyShowCmd = &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the records of one run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow, // Defined in cmd_history.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
		},
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Properties file (default ~/.aleutian/bench.yaml)")
	pf.BoolVar(&noConfig, "no-config", false, "Ignore the properties file")
	pf.StringArrayVarP(&propertyFlags, "property", "D", nil, "Property override as key=value (repeatable)")
	pf.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&historyDir, "history-dir", "", "Run history directory (default ~/.aleutian/bench-history)")

	for _, cmd := range []*cobra.Command{discoverCmd, runCmd, watchCmd} {
		cmd.Flags().StringArrayVar(&includeFlags, "include", nil, "Class name pattern to include (repeatable)")
		cmd.Flags().StringArrayVar(&excludeFlags, "exclude", nil, "Class name pattern to exclude (repeatable)")
	}
	discoverCmd.Flags().StringVar(&sourceDir, "source", "", "Discover from Go sources under this directory")
	discoverCmd.Flags().Bool("json", false, "Print the tree as JSON")

	runCmd.Flags().Bool("pick", false, "Choose benchmarks interactively")
	runCmd.Flags().Bool("text", false, "Also print results in Go benchmark format")
	runCmd.Flags().Bool("no-history", false, "Do not record the run")

	serveCmd.Flags().String("addr", ":8088", "Listen address")
	serveCmd.Flags().Float64("execute-rate", 1, "Executions admitted per second")

	watchCmd.Flags().Duration("debounce", defaultDebounce, "Quiet period before re-scanning")

	historyCmd.Flags().Int("limit", 20, "Maximum runs to list")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(versionCmd)
}

func versionString() string {
	return fmt.Sprintf("bench %s (%s:%s, engine %s)", Version, engine.GroupID, engine.ArtifactID, engine.ID)
}

// newLogger builds the process logger. Output is JSON when w is not a
// terminal.
func newLogger(level string, w *os.File) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if isTerminal(w) {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func writerIsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isTerminal(f)
}

// parseProperties turns repeated key=value flags into a map. Later flags
// win.
func parseProperties(flags []string) (map[string]string, error) {
	out := make(map[string]string, len(flags))
	for _, f := range flags {
		key, value, ok := strings.Cut(f, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q: want key=value", f)
		}
		out[key] = value
	}
	return out, nil
}

// loadProperties resolves flags, the environment and the properties file
// into config.Global.
func loadProperties() (config.Properties, error) {
	flags, err := parseProperties(propertyFlags)
	if err != nil {
		return config.Properties{}, err
	}
	path := configPath
	if noConfig {
		path = ""
	} else if path == "" {
		if path, err = config.DefaultPath(); err != nil {
			return config.Properties{}, err
		}
	}
	if err := config.Load(path, flags); err != nil {
		return config.Properties{}, fmt.Errorf("load properties: %w", err)
	}
	return config.Global, nil
}

func historyPath() (string, error) {
	if historyDir != "" {
		return historyDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".aleutian", "bench-history"), nil
}

// openHistory opens the run history. The returned close function is never
// nil.
func openHistory() (*badger.RunStore, func(), error) {
	path, err := historyPath()
	if err != nil {
		return nil, func() {}, err
	}
	db, err := badger.Open(badger.DefaultConfig(path))
	if err != nil {
		return nil, func() {}, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			slog.Warn("close run history", slog.String("error", err.Error()))
		}
	}
	return badger.NewRunStore(db), closeDB, nil
}

// newEngine builds an engine over the default registry with the resolved
// properties.
func newEngine(opts ...engine.Option) (*engine.Engine, error) {
	props, err := loadProperties()
	if err != nil {
		return nil, err
	}
	base := []engine.Option{
		engine.WithLogger(slog.Default()),
		engine.WithProperties(props),
	}
	return engine.New(append(base, opts...)...), nil
}

func engineRequest(args []string) engine.Request {
	return engine.Request{
		Selectors: args,
		Include:   includeFlags,
		Exclude:   excludeFlags,
		SourceDir: sourceDir,
	}
}
