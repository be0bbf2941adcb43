// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianBench/services/bench/descriptor"
	"github.com/AleutianAI/AleutianBench/services/bench/model"
	"github.com/AleutianAI/AleutianBench/services/bench/telemetry"
)

// DefaultEngineID is the engine id used when none is configured.
const DefaultEngineID = "microbenchmark-engine"

// Request is one discovery request.
type Request struct {
	Selectors   []Selector
	ClassFilter ClassNameFilter
}

// Report summarizes a discovery run. Discovery problems never abort the run;
// they end up here and in the log.
type Report struct {
	// Warnings holds partial unique-id resolutions.
	Warnings []string

	// Errors holds selectors that could not be resolved. Each is a
	// *ResolutionError.
	Errors []error

	// Classes and Leaves count the final, pruned tree.
	Classes int
	Leaves  int

	// Pruned counts nodes removed by filtering and pruning.
	Pruned int
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the builder's logger.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithEngineID sets the engine id used for the tree root.
func WithEngineID(id string) BuilderOption {
	return func(b *Builder) {
		if id != "" {
			b.engineID = id
		}
	}
}

// Builder resolves selectors against a Program into a pruned tree.
//
// Description:
//
//	Builder orchestrates the class, method and fixture resolvers across
//	heterogeneous selectors. Every node is registered through the tree's id
//	index, so selecting the same element twice (directly, through its
//	package, or through a unique id) yields one node.
//
// Thread Safety:
//
//	A Builder may be shared; each Resolve call builds its own tree and
//	resolvers and runs single-threaded.
type Builder struct {
	program  model.Program
	engineID string
	logger   *slog.Logger
}

// NewBuilder returns a Builder over program.
func NewBuilder(program model.Program, opts ...BuilderOption) *Builder {
	b := &Builder{
		program:  program,
		engineID: DefaultEngineID,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Resolve builds the tree for req.
//
// Description:
//
//	Processes selectors in order. Class-bearing selectors (root, package,
//	class) scan classes, keep benchmark classes, and resolve each class
//	together with its benchmark methods and fixtures. Method selectors
//	resolve the owning class and the one method. Unique-id selectors walk
//	their segments from the root, reusing registered nodes. Afterwards the
//	class filter removes rejected classes, leafless containers are pruned
//	bottom-up and the tree is compacted.
//
// Inputs:
//
//	ctx - Cancels the remaining selectors when done.
//	req - Selectors and class filter.
//
// Outputs:
//
//	*descriptor.Tree - The pruned, compacted tree. Never nil.
//	Report - Warnings and per-selector errors.
//
// Example:
//
//	tree, report := discovery.NewBuilder(registry).Resolve(ctx, discovery.Request{
//	    Selectors: []discovery.Selector{discovery.PackageSelector{Package: "example.com/bench"}},
//	})
func (b *Builder) Resolve(ctx context.Context, req Request) (*descriptor.Tree, Report) {
	ctx, span := startResolveSpan(ctx, len(req.Selectors))
	defer span.End()
	start := time.Now()

	run := &resolution{
		builder:   b,
		tree:      descriptor.NewTree(b.engineID),
		resolvers: nil,
	}
	run.resolvers = resolvers(run.tree, b.program)

	for _, sel := range req.Selectors {
		if err := ctx.Err(); err != nil {
			run.fail(sel, fmt.Errorf("discovery canceled: %w", err))
			break
		}
		run.resolveSelector(sel)
	}

	filtered := req.ClassFilter.Apply(run.tree)
	pruned := run.tree.Prune()
	run.tree.Compact()

	run.report.Pruned = filtered + pruned
	run.report.Classes = len(run.tree.Classes())
	run.report.Leaves = run.tree.CountLeaves(run.tree.Root(), nil)

	span.SetAttributes(
		telemetry.AttrClasses.Int(run.report.Classes),
		telemetry.AttrLeaves.Int(run.report.Leaves),
		telemetry.AttrErrors.Int(len(run.report.Errors)),
	)
	recordResolveMetrics(ctx, time.Since(start), run.report)

	b.logger.Debug("discovery finished",
		slog.Int("selectors", len(req.Selectors)),
		slog.Int("classes", run.report.Classes),
		slog.Int("leaves", run.report.Leaves),
		slog.Int("pruned", run.report.Pruned),
		slog.Int("errors", len(run.report.Errors)))

	return run.tree, run.report
}

// resolution is the state of one Resolve call.
type resolution struct {
	builder   *Builder
	tree      *descriptor.Tree
	resolvers []ElementResolver
	report    Report
}

func (r *resolution) fail(sel Selector, err error) {
	rerr := &ResolutionError{Selector: sel, Err: err}
	r.report.Errors = append(r.report.Errors, rerr)
	r.builder.logger.Warn("selector could not be resolved",
		slog.String("selector", sel.String()),
		slog.String("error", err.Error()))
}

func (r *resolution) resolveSelector(sel Selector) {
	switch s := sel.(type) {
	case ClasspathRootSelector:
		r.resolveClasses(r.builder.program.Classes(model.Scope{Root: s.Root}))
	case PackageSelector:
		r.resolveClasses(r.builder.program.Classes(model.Scope{Package: s.Package}))
	case ClassSelector:
		c, ok := r.builder.program.LookupClass(s.ClassName)
		if !ok || !IsBenchmarkClass(c) {
			r.fail(sel, fmt.Errorf("%w: %s", ErrClassNotFound, s.ClassName))
			return
		}
		r.resolveClasses([]*model.Class{c})
	case MethodSelector:
		r.resolveMethod(s)
	case UniqueIDSelector:
		r.resolveUniqueID(s)
	default:
		r.fail(sel, fmt.Errorf("%w: unsupported selector type %T", ErrInvalidSelector, sel))
	}
}

func (r *resolution) resolveClasses(classes []*model.Class) {
	for _, c := range classes {
		if !IsBenchmarkClass(c) {
			continue
		}
		for _, n := range r.resolveElement(c, r.tree.Root()) {
			r.resolveChildren(n)
		}
	}
}

func (r *resolution) resolveMethod(s MethodSelector) {
	c, ok := r.builder.program.LookupClass(s.ClassName)
	if !ok || !IsBenchmarkClass(c) {
		r.fail(s, fmt.Errorf("%w: %s", ErrClassNotFound, s.ClassName))
		return
	}

	classNodes := r.resolveElement(c, r.tree.Root())
	resolved := 0
	for _, m := range c.MethodsNamed(s.MethodName) {
		if s.ParamTypes != nil && !sameParamTypes(m, s.ParamTypes) {
			continue
		}
		for _, cn := range classNodes {
			for _, n := range r.resolveElement(m, cn) {
				r.resolveChildren(n)
				resolved++
			}
		}
	}
	if resolved == 0 {
		r.fail(s, fmt.Errorf("%w: %s#%s", ErrMethodNotFound, s.ClassName, s.MethodName))
	}
}

func sameParamTypes(m *model.Method, types []string) bool {
	if len(m.Params) != len(types) {
		return false
	}
	for i, p := range m.Params {
		if p.Name != types[i] {
			return false
		}
	}
	return true
}

// resolveUniqueID walks the id's segments from the root, one at a time.
func (r *resolution) resolveUniqueID(s UniqueIDSelector) {
	id := s.ID
	if len(id) == 0 || id[0].Type != descriptor.SegmentEngine || id[0].Value != r.tree.EngineID() {
		r.fail(s, fmt.Errorf("%w: %s", ErrForeignEngine, id))
		return
	}

	current := r.tree.Root()
	for i, seg := range id[1:] {
		next, ok := r.tree.Lookup(current.ID.Append(seg))
		if !ok {
			next, ok = r.resolveSegment(seg, current)
		}
		if !ok {
			unresolved := make([]string, 0, len(id)-1-i)
			for _, rest := range id[1+i:] {
				unresolved = append(unresolved, rest.String())
			}
			warning := fmt.Sprintf("Unique ID '%s' could only be partially resolved. "+
				"All resolved segments will be executed; however, the following segments could not be resolved: %s",
				id, strings.Join(unresolved, "/"))
			r.report.Warnings = append(r.report.Warnings, warning)
			r.builder.logger.Warn(warning)
			return
		}
		current = next
	}

	r.resolveChildren(current)
}

func (r *resolution) resolveSegment(seg descriptor.Segment, parent *descriptor.Node) (*descriptor.Node, bool) {
	for _, res := range r.resolvers {
		if n, ok := res.ResolveUniqueID(seg, parent); ok {
			return n, true
		}
	}
	return nil, false
}

func (r *resolution) resolveElement(element any, parent *descriptor.Node) []*descriptor.Node {
	var out []*descriptor.Node
	for _, res := range r.resolvers {
		out = append(out, res.ResolveElement(element, parent)...)
	}
	return out
}

// resolveChildren resolves everything below n: a class's benchmark methods
// and a parametrized method's fixtures.
func (r *resolution) resolveChildren(n *descriptor.Node) {
	var elements []any
	switch n.Kind {
	case descriptor.KindClass:
		for _, m := range n.Class.Methods {
			elements = append(elements, m)
		}
	case descriptor.KindParametrizedMethod:
		elements = append(elements, n.Method)
	default:
		return
	}

	for _, el := range elements {
		for _, child := range r.resolveElement(el, n) {
			r.resolveChildren(child)
		}
	}
}
