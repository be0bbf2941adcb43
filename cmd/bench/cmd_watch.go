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
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const defaultDebounce = 300 * time.Millisecond

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir, selectors := args[0], args[1:]
	debounce, _ := cmd.Flags().GetDuration("debounce")

	eng, err := newEngine()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchTree(watcher, dir); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	scan := func() {
		req := engineRequest(selectors)
		req.SourceDir = dir
		tree, report, err := eng.Resolve(ctx, req)
		if err != nil {
			slog.Warn("source scan failed", slog.String("dir", dir), slog.String("error", err.Error()))
			return
		}
		if writerIsTerminal(out) {
			fmt.Fprint(out, "\033[H\033[2J")
		}
		fmt.Fprintf(out, "%s  %s\n\n", time.Now().Format(time.TimeOnly), dir)
		renderTree(out, tree)
		fmt.Fprintf(out, "\n%d classes, %d benchmarks\n", report.Classes, report.Leaves)
	}

	scan()
	return watchSources(ctx, watcher, debounce, scan)
}

// watchSources calls onChange once per burst of Go source changes, after
// debounce has passed without another change. Directories created under a
// watched directory are watched too. It returns when ctx is done or the
// watcher is closed.
func watchSources(ctx context.Context, watcher *fsnotify.Watcher, debounce time.Duration, onChange func()) error {
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if err := addWatchTree(watcher, event.Name); err != nil {
					slog.Debug("not watching new path", slog.String("path", event.Name), slog.String("error", err.Error()))
				}
			}
			if relevantEvent(event) {
				timer.Reset(debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("File watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			onChange()
		}
	}
}

// relevantEvent reports whether event changes a Go source file.
func relevantEvent(event fsnotify.Event) bool {
	if !strings.HasSuffix(event.Name, ".go") {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}

// addWatchTree watches root and every directory beneath it that a source
// scan would visit. A root that is a file is ignored.
func addWatchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func skipDir(name string) bool {
	return name == "vendor" || name == "testdata" ||
		strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}
