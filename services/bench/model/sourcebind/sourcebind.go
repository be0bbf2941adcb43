// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sourcebind discovers benchmark suites by parsing Go source instead
// of loading registered types.
//
// The scanner walks a directory inside a Go module, parses every .go file
// with tree-sitter and builds a model.Catalog with the same shape the
// reflection binding produces: struct types with exported Benchmark methods
// become classes, fields tagged `param:"..."` become parameters and named
// types with typed constants become enumerations.
//
// Source catalogs can be discovered and filtered but not executed: classes
// carry no setup hooks and there is no instance to invoke.
//
// Two comment directives are recognized directly above a type or method:
//
//	//bench:disabled <reason>
//	//bench:goos linux,darwin
package sourcebind

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianBench/services/bench/model"
)

const (
	// DefaultMaxFileSize skips generated blobs larger than 1 MiB.
	DefaultMaxFileSize = 1 << 20

	// DefaultConcurrency bounds parallel file parses.
	DefaultConcurrency = 8
)

// Scanner builds catalogs from source trees.
//
// Thread Safety: Safe for concurrent use. Each Scan call is independent.
type Scanner struct {
	logger       *slog.Logger
	maxFileSize  int64
	concurrency  int
	includeTests bool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the scanner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxFileSize skips files larger than n bytes.
func WithMaxFileSize(n int64) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.maxFileSize = n
		}
	}
}

// WithConcurrency bounds the number of files parsed in parallel.
func WithConcurrency(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithTests controls whether _test.go files are scanned. Default true.
func WithTests(include bool) Option {
	return func(s *Scanner) {
		s.includeTests = include
	}
}

// NewScanner returns a scanner with defaults applied.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		logger:       slog.Default(),
		maxFileSize:  DefaultMaxFileSize,
		concurrency:  DefaultConcurrency,
		includeTests: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan parses the Go packages under dir.
//
// Description:
//
//	Locates the enclosing go.mod to derive import paths, walks dir
//	(skipping vendor, testdata and directories starting with "." or "_"),
//	parses files in parallel and builds one class per suite type. Classes
//	are ordered by qualified name and rooted at the absolute form of dir.
//	Files with syntax errors are still scanned and logged at warn level.
//
// Inputs:
//
//	ctx - Cancels the walk and all parses.
//	dir - A directory inside a Go module.
//
// Outputs:
//
//	*model.Catalog - The discovered classes.
//	error - ErrNoModule, a filesystem error, or a parse error.
//
// Example:
//
//	catalog, err := sourcebind.NewScanner().Scan(ctx, "./bench")
//	if err != nil {
//	    return err
//	}
//	tree, err := discovery.Discover(ctx, catalog, req)
func (s *Scanner) Scan(ctx context.Context, dir string) (*model.Catalog, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	modDir, modPath, err := findModule(root)
	if err != nil {
		return nil, err
	}

	files, err := s.collect(ctx, root)
	if err != nil {
		return nil, err
	}

	parsed := make([]*fileDecls, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, file := range files {
		g.Go(func() error {
			content, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			if int64(len(content)) > s.maxFileSize {
				s.logger.Warn("skipping large source file",
					slog.String("file", file),
					slog.Int("size", len(content)))
				return nil
			}
			fd, err := parseFile(gctx, content, file)
			if err != nil {
				return err
			}
			if fd.broken {
				s.logger.Warn("source file has syntax errors", slog.String("file", file))
			}
			parsed[i] = fd
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var classes []*model.Class
	for _, pkg := range groupPackages(parsed, modDir, modPath) {
		classes = append(classes, newPackageBuilder(pkg, root).classes()...)
	}
	slices.SortFunc(classes, func(a, b *model.Class) int {
		return strings.Compare(a.QualifiedName(), b.QualifiedName())
	})

	s.logger.Info("source scan complete",
		slog.String("root", root),
		slog.String("module", modPath),
		slog.Int("files", len(files)),
		slog.Int("classes", len(classes)))
	return model.NewCatalog(classes...), nil
}

func (s *Scanner) collect(ctx context.Context, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != root && skipDir(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, ".go") {
			return nil
		}
		if !s.includeTests && strings.HasSuffix(name, "_test.go") {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

func skipDir(name string) bool {
	return name == "vendor" || name == "testdata" ||
		strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

// findModule walks up from dir to the nearest go.mod and returns its
// directory and module path.
func findModule(dir string) (string, string, error) {
	for d := dir; ; {
		data, err := os.ReadFile(filepath.Join(d, "go.mod"))
		if err == nil {
			modPath := modfile.ModulePath(data)
			if modPath == "" {
				return "", "", fmt.Errorf("%w: %s has no module directive", ErrNoModule, d)
			}
			return d, modPath, nil
		}
		parent := filepath.Dir(d)
		if parent == d {
			return "", "", fmt.Errorf("%w: above %s", ErrNoModule, dir)
		}
		d = parent
	}
}

// groupPackages buckets files by directory and package clause. External
// test packages get a "_test" import path suffix.
func groupPackages(files []*fileDecls, modDir, modPath string) []*sourcePackage {
	byPath := make(map[string]*sourcePackage)
	var order []string
	for _, fd := range files {
		if fd == nil || fd.pkg == "" {
			continue
		}
		rel, err := filepath.Rel(modDir, filepath.Dir(fd.path))
		if err != nil {
			continue
		}
		importPath := modPath
		if rel != "." {
			importPath = path.Join(modPath, filepath.ToSlash(rel))
		}
		if strings.HasSuffix(fd.pkg, "_test") {
			importPath += "_test"
		}
		pkg, ok := byPath[importPath]
		if !ok {
			pkg = &sourcePackage{importPath: importPath}
			byPath[importPath] = pkg
			order = append(order, importPath)
		}
		pkg.files = append(pkg.files, fd)
	}

	out := make([]*sourcePackage, 0, len(order))
	for _, p := range order {
		out = append(out, byPath[p])
	}
	return out
}
