// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine is the host-facing facade of the benchmark runner.
//
// An Engine owns a runtime registry of suites and the run configuration. It
// discovers trees from the registry (or, for inspection, from Go source),
// executes them through the in-process harness and hands the results to the
// report, history and publish layers.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianBench/services/bench/condition"
	"github.com/AleutianAI/AleutianBench/services/bench/config"
	"github.com/AleutianAI/AleutianBench/services/bench/descriptor"
	"github.com/AleutianAI/AleutianBench/services/bench/discovery"
	"github.com/AleutianAI/AleutianBench/services/bench/execution"
	"github.com/AleutianAI/AleutianBench/services/bench/harness"
	"github.com/AleutianAI/AleutianBench/services/bench/model"
	"github.com/AleutianAI/AleutianBench/services/bench/model/reflectbind"
	"github.com/AleutianAI/AleutianBench/services/bench/model/sourcebind"
	"github.com/AleutianAI/AleutianBench/services/bench/publish"
	"github.com/AleutianAI/AleutianBench/services/bench/storage/badger"
	"github.com/AleutianAI/AleutianBench/services/bench/telemetry"
)

const (
	// ID is the engine id and the value of the root unique-id segment.
	ID = discovery.DefaultEngineID

	// GroupID and ArtifactID identify the engine in reports and version
	// output.
	GroupID    = "ai.aleutian.bench"
	ArtifactID = "aleutian-bench-engine"

	tracerName = "aleutian.bench.engine"
)

// HarnessFactory builds the harness for one execution.
type HarnessFactory func(benchmarks []harness.Benchmark, logger *slog.Logger) harness.Harness

// InProcessHarness is the default HarnessFactory.
func InProcessHarness(benchmarks []harness.Benchmark, logger *slog.Logger) harness.Harness {
	return harness.NewInProcess(benchmarks, harness.WithLogger(logger))
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. It is passed on to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRegistry replaces the runtime registry. Defaults to reflectbind.Default.
func WithRegistry(r *reflectbind.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithProperties sets the run configuration.
func WithProperties(p config.Properties) Option {
	return func(e *Engine) {
		e.properties = p
	}
}

// WithPublisher replaces the results publisher.
func WithPublisher(p *publish.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.publisher = p
		}
	}
}

// WithHistory stores every successful run in store.
func WithHistory(store *badger.RunStore) Option {
	return func(e *Engine) {
		e.history = store
	}
}

// WithHarness replaces the harness factory.
func WithHarness(f HarnessFactory) Option {
	return func(e *Engine) {
		if f != nil {
			e.newHarness = f
		}
	}
}

// WithCallbacks forwards raw harness callbacks to cb, e.g. a
// harness.TextCallbacks for benchmark text output.
func WithCallbacks(cb harness.Callbacks) Option {
	return func(e *Engine) {
		e.callbacks = cb
	}
}

// WithClock overrides the clock used for run metadata.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine discovers and executes benchmark trees.
//
// Description:
//
//	Discovery resolves selectors against the runtime registry, or against
//	a source catalog when Request.SourceDir is set. Execution always runs
//	against the registry: each Execute call builds a fresh bridge and
//	harness, so an Engine can run many trees.
//
// Thread Safety:
//
//	Safe for concurrent use. Configure returns a copy; the receiver is
//	never mutated after New.
type Engine struct {
	registry   *reflectbind.Registry
	properties config.Properties
	publisher  *publish.Publisher
	history    *badger.RunStore
	newHarness HarnessFactory
	callbacks  harness.Callbacks
	now        func() time.Time
	logger     *slog.Logger
}

// New returns an engine with defaults applied.
func New(opts ...Option) *Engine {
	e := &Engine{
		registry:   reflectbind.Default,
		properties: config.Empty(),
		newHarness: InProcessHarness,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.publisher == nil {
		e.publisher = publish.NewPublisher(publish.WithLogger(e.logger))
	}
	return e
}

// ID returns the engine id.
func (e *Engine) ID() string {
	return ID
}

// Registry returns the runtime registry.
func (e *Engine) Registry() *reflectbind.Registry {
	return e.registry
}

// Properties returns the run configuration.
func (e *Engine) Properties() config.Properties {
	return e.properties
}

// Configure returns a copy of e whose properties are overrides layered on
// top of e's.
func (e *Engine) Configure(overrides map[string]string) *Engine {
	clone := *e
	clone.properties = config.Merge(config.New(overrides), e.properties)
	return &clone
}

// Request is one discovery request.
type Request struct {
	// Selectors in selector syntax, e.g. "package:example.com/bench" or
	// "method:pkg.Suite#BenchmarkX". Empty selects every registered class.
	Selectors []string

	// Include and Exclude are class-name regular expressions.
	Include []string
	Exclude []string

	// SourceDir discovers from Go source under this directory instead of
	// the runtime registry. The resulting tree cannot be executed.
	SourceDir string
}

// Discover resolves req into a tree.
//
// Description:
//
//	Parses every selector, builds the class-name filter and resolves the
//	selectors against the chosen program. Per-selector resolution problems
//	are logged and do not fail the call; see Resolve for the full report.
//
// Outputs:
//
//	*descriptor.Tree - The pruned tree.
//	error - ErrInvalidRequest for malformed selectors or filters, or a
//	        source scan error.
func (e *Engine) Discover(ctx context.Context, req Request) (*descriptor.Tree, error) {
	tree, _, err := e.Resolve(ctx, req)
	return tree, err
}

// Resolve is Discover with the discovery report.
func (e *Engine) Resolve(ctx context.Context, req Request) (*descriptor.Tree, discovery.Report, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "engine.Discover")
	defer span.End()
	span.SetAttributes(
		telemetry.AttrSelectors.Int(len(req.Selectors)),
		telemetry.AttrSource.Bool(req.SourceDir != ""),
	)

	dreq, err := e.request(req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, discovery.Report{}, err
	}

	var program model.Program = e.registry
	if req.SourceDir != "" {
		catalog, err := sourcebind.NewScanner(sourcebind.WithLogger(e.logger)).Scan(ctx, req.SourceDir)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, discovery.Report{}, fmt.Errorf("scan %s: %w", req.SourceDir, err)
		}
		program = catalog
		if len(dreq.Selectors) == 0 {
			dreq.Selectors = rootSelectors(catalog)
		}
	} else if len(dreq.Selectors) == 0 {
		dreq.Selectors = rootSelectors(e.registry)
	}

	tree, report := discovery.NewBuilder(program,
		discovery.WithLogger(e.logger),
		discovery.WithEngineID(ID),
	).Resolve(ctx, dreq)

	for _, rerr := range report.Errors {
		e.logger.Warn("selector not resolved", slog.String("error", rerr.Error()))
	}
	span.SetAttributes(
		telemetry.AttrClasses.Int(report.Classes),
		telemetry.AttrLeaves.Int(report.Leaves),
	)
	telemetry.SetSpanOK(span)
	return tree, report, nil
}

func (e *Engine) request(req Request) (discovery.Request, error) {
	var out discovery.Request
	for _, raw := range req.Selectors {
		sel, err := discovery.ParseSelector(raw)
		if err != nil {
			return out, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		out.Selectors = append(out.Selectors, sel)
	}
	filter, err := discovery.NewClassNameFilter(req.Include, req.Exclude)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	out.ClassFilter = filter
	return out, nil
}

// rootSelectors selects every classpath root of program.
func rootSelectors(program model.Program) []discovery.Selector {
	seen := make(map[string]bool)
	var out []discovery.Selector
	for _, c := range program.Classes(model.Scope{}) {
		if !seen[c.Root] {
			seen[c.Root] = true
			out = append(out, discovery.ClasspathRootSelector{Root: c.Root})
		}
	}
	return out
}

// Execute runs tree and reports every event to listener.
//
// Description:
//
//	Parses the configuration, checks that every class of the tree has a
//	runtime binding, and runs a fresh bridge over the in-process harness.
//	Registry-wide conditions are the built-in ones plus "disable.*"
//	configuration properties; class-local conditions come from the
//	registry. Results of a successful run are written as report files,
//	stored in history and published before the root finishes.
//
// Inputs:
//
//	ctx - Cancels the run.
//	tree - A tree from Discover.
//	listener - Receives the execution events.
//
// Outputs:
//
//	error - ErrInvalidConfiguration, ErrNotExecutable, or the bridge error.
//
// Example:
//
//	tree, err := eng.Discover(ctx, engine.Request{Selectors: []string{"package:example.com/bench"}})
//	if err != nil {
//	    return err
//	}
//	return eng.Execute(ctx, tree, execution.NewConsoleListener(os.Stdout))
func (e *Engine) Execute(ctx context.Context, tree *descriptor.Tree, listener execution.Listener) error {
	_, err := e.ExecuteRun(ctx, tree, listener)
	return err
}

// ExecuteRun is Execute returning the published bundle. The bundle is nil
// when the run was skipped or failed.
func (e *Engine) ExecuteRun(ctx context.Context, tree *descriptor.Tree, listener execution.Listener) (*publish.Bundle, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "engine.Execute")
	defer span.End()

	settings, err := config.Parse(e.properties)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		telemetry.RecordError(span, err)
		failRoot(tree, listener, err)
		return nil, err
	}

	for _, cn := range tree.Classes() {
		if _, ok := e.registry.LookupClass(cn.Class.QualifiedName()); !ok {
			err := fmt.Errorf("%w: %s", ErrNotExecutable, cn.Class.QualifiedName())
			telemetry.RecordError(span, err)
			failRoot(tree, listener, err)
			return nil, err
		}
	}

	var bundle *publish.Bundle
	conditions := condition.DefaultRegistry(&condition.EnvironmentCondition{Values: e.properties})
	opts := []execution.Option{
		execution.WithLogger(e.logger),
		execution.WithConditions(conditions),
		execution.WithClassConditions(e.registry.Extensions),
		execution.WithResultsHandler(e.handleResults(settings, &bundle)),
	}
	if e.callbacks != nil {
		opts = append(opts, execution.WithCallbacks(e.callbacks))
	}

	h := e.newHarness(e.registry.Benchmarks(), e.logger)
	if err := execution.NewBridge(h, settings, opts...).Execute(ctx, tree, listener); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetSpanOK(span)
	return bundle, nil
}

// failRoot reports a run that could not start as one failed root.
func failRoot(tree *descriptor.Tree, listener execution.Listener, err error) {
	root := tree.Root()
	listener.ExecutionStarted(root)
	listener.ExecutionFinished(root, execution.Failed(err))
}

// handleResults writes reports, stores history and publishes. None of
// these fail the run; problems are logged.
func (e *Engine) handleResults(settings config.Benchmark, out **publish.Bundle) execution.ResultsHandler {
	return func(ctx context.Context, results []harness.Result) {
		bundle := &publish.Bundle{
			Metadata: publish.NewMetadata(ctx, settings, e.now()),
			Records:  results,
		}

		if settings.ReportDir != "" {
			files, err := publish.WriteReports(settings.ReportDir, *bundle)
			if err != nil {
				e.logger.Warn("failed to write report files",
					slog.String("dir", settings.ReportDir),
					slog.String("error", err.Error()))
			} else {
				e.logger.Info("wrote report files", slog.Int("files", len(files)))
			}
		}

		if e.history != nil {
			if err := e.history.Save(ctx, publish.RunOf(*bundle)); err != nil {
				e.logger.Warn("failed to store run history",
					slog.String("run_id", bundle.Metadata.RunID),
					slog.String("error", err.Error()))
			}
		}

		if err := e.publisher.Publish(ctx, settings.PublishTo, *bundle); err != nil {
			e.logger.Warn("some results writers failed", slog.String("error", err.Error()))
		}

		*out = bundle
	}
}
