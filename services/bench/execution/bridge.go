// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package execution bridges a benchmark harness's flat callback stream
// onto a discovered benchmark tree.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/AleutianBench/services/bench/condition"
	"github.com/AleutianAI/AleutianBench/services/bench/config"
	"github.com/AleutianAI/AleutianBench/services/bench/descriptor"
	"github.com/AleutianAI/AleutianBench/services/bench/harness"
	"github.com/AleutianAI/AleutianBench/services/bench/model"
)

// State is the bridge's run state.
type State int32

const (
	StateIdle State = iota
	StateSelecting
	StateRunning
	StateFinished
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelecting:
		return "selecting"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Skip reasons emitted on the root.
const (
	ReasonNoBenchmarks = "No benchmarks"
	ReasonDisabled     = "Benchmarks disabled by configuration property 'jmh.mbr.enabled'"
)

// ResultsHandler receives the harness results of a successful run.
type ResultsHandler func(ctx context.Context, results []harness.Result)

// Option configures a Bridge.
type Option func(*Bridge)

// WithConditions replaces the registry-wide condition chain. Defaults to
// condition.DefaultRegistry(nil).
func WithConditions(r *condition.Registry) Option {
	return func(b *Bridge) {
		if r != nil {
			b.conditions = r
		}
	}
}

// WithClassConditions supplies class-local conditions, evaluated before the
// registry-wide ones.
func WithClassConditions(fn func(*model.Class) []condition.Extension) Option {
	return func(b *Bridge) {
		b.classConditions = fn
	}
}

// WithResultsHandler sets the handler called with the results of a
// successful run, before the root finishes.
func WithResultsHandler(fn ResultsHandler) Option {
	return func(b *Bridge) {
		b.onResults = fn
	}
}

// WithCallbacks forwards every harness callback to cb as well.
func WithCallbacks(cb harness.Callbacks) Option {
	return func(b *Bridge) {
		if cb != nil {
			b.delegate = cb
		}
	}
}

// WithLogger sets the bridge logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Bridge runs one discovered tree through a harness.
//
// Description:
//
//	Execute moves through Selecting, where conditions decide which classes
//	and methods run and inclusion patterns are derived, then Running, where
//	the harness callbacks are translated into started and finished events
//	on tree nodes. A run with nothing to execute ends Skipped instead.
//
// Thread Safety:
//
//	A Bridge executes once. State may be read from any goroutine.
type Bridge struct {
	harness         harness.Harness
	settings        config.Benchmark
	conditions      *condition.Registry
	classConditions func(*model.Class) []condition.Extension
	evaluator       *condition.Evaluator
	onResults       ResultsHandler
	delegate        harness.Callbacks
	logger          *slog.Logger

	state atomic.Int32
	used  atomic.Bool
}

// NewBridge returns a bridge that drives h with settings.
func NewBridge(h harness.Harness, settings config.Benchmark, opts ...Option) *Bridge {
	b := &Bridge{
		harness:    h,
		settings:   settings,
		conditions: condition.DefaultRegistry(nil),
		delegate:   harness.NopCallbacks{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.evaluator = condition.NewEvaluator(condition.WithLogger(b.logger))
	return b
}

// State returns the current run state.
func (b *Bridge) State() State {
	return State(b.state.Load())
}

func (b *Bridge) setState(s State) {
	b.state.Store(int32(s))
}

// selection is one enabled class and its enabled method-level nodes.
type selection struct {
	class   *descriptor.Node
	methods []*descriptor.Node
}

// Execute runs tree and reports to listener.
//
// Description:
//
//	Evaluates each class, then each of its methods, against the condition
//	chain. Disabled nodes are skipped with their reason; a failing
//	condition fails the node. Enabled methods contribute one anchored
//	pattern each. The user name filter, when set, narrows the selection to
//	matching classes. Suite setup hooks run next; an assumption failure
//	skips the suite. With no patterns left the root is skipped with "No
//	benchmarks". Otherwise the root starts and the harness runs; each
//	benchmark start and end is mapped to its node and completion
//	propagates to containers once all their selected leaves finished.
//
// Inputs:
//
//	ctx - Forwarded to the harness. The bridge cancels it itself only on
//	      an identity error.
//	tree - A compacted tree from discovery.
//	listener - Receives every event.
//
// Outputs:
//
//	error - nil when the root finished successfully or was skipped. The
//	        harness error when the run failed, ErrIdentityUnresolved when
//	        the harness reported an unknown benchmark.
//
// Example:
//
//	bridge := execution.NewBridge(harness.NewInProcess(reg.Benchmarks()), settings)
//	err := bridge.Execute(ctx, tree, execution.NewConsoleListener(os.Stdout))
func (b *Bridge) Execute(ctx context.Context, tree *descriptor.Tree, listener Listener) error {
	if !b.used.CompareAndSwap(false, true) {
		return ErrBridgeReused
	}
	start := time.Now()
	ctx, span := startExecuteSpan(ctx, tree.CountLeaves(tree.Root(), nil))
	defer span.End()

	b.setState(StateSelecting)
	root := tree.Root()
	patterns := 0
	defer func() {
		recordRun(ctx, time.Since(start).Seconds(), b.State(), patterns)
	}()

	if !b.settings.Enabled {
		listener.ExecutionSkipped(root, ReasonDisabled)
		b.setState(StateSkipped)
		return nil
	}

	prog := newProgress(tree)
	selections := b.selectNodes(tree, listener, prog)
	selections, err := b.filter(selections)
	if err != nil {
		b.logger.Warn("ignoring invalid benchmark filter", slog.String("error", err.Error()))
	}
	selections = b.setupSuites(selections, listener, prog)

	opts, selected := b.plan(tree, selections, prog)
	patterns = len(opts.Includes)
	if patterns == 0 {
		b.logger.Info("no benchmarks selected")
		listener.ExecutionSkipped(root, ReasonNoBenchmarks)
		b.setState(StateSkipped)
		return nil
	}

	b.setState(StateRunning)
	prog.markStarted(root)
	listener.ExecutionStarted(root)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s := &sink{
		delegate: b.delegate,
		tree:     tree,
		listener: listener,
		cache:    newIdentityCache(tree, selected),
		progress: prog,
		ctx:      ctx,
		cancel:   cancel,
		logger:   b.logger,
	}

	b.logger.Info("starting harness",
		slog.Int("patterns", patterns),
		slog.String("mode", string(opts.Mode)))
	results, runErr := b.harness.Run(runCtx, opts, s)
	b.setState(StateFinished)

	if fatal := s.fatalErr(); fatal != nil {
		b.teardownSuites(selections)
		b.closeOpen(prog, listener, Failed(fatal))
		listener.ExecutionFinished(root, Failed(fatal))
		span.RecordError(fatal)
		return fatal
	}

	if runErr != nil {
		b.logger.Error("harness run failed", slog.String("error", runErr.Error()))
		b.teardownSuites(selections)
		if s.sawBenchmarks() || prog.anyStarted() {
			b.closeOpen(prog, listener, Failed(runErr))
		}
		listener.ExecutionFinished(root, Failed(runErr))
		span.RecordError(runErr)
		return fmt.Errorf("harness run failed: %w", runErr)
	}

	b.closeOpen(prog, listener, Aborted(ErrNotCompleted))
	if b.onResults != nil {
		b.onResults(ctx, results)
	}
	b.teardownSuites(selections)
	listener.ExecutionFinished(root, Successful())
	return nil
}

// selectNodes evaluates conditions and returns the enabled classes with
// their enabled methods.
func (b *Bridge) selectNodes(tree *descriptor.Tree, listener Listener, prog *progress) []selection {
	var out []selection
	for _, cn := range tree.Classes() {
		chain := b.chain(cn.Class)
		cctx := condition.ClassContext(cn)

		res, err := b.evaluator.Evaluate(chain, cctx)
		if err != nil {
			b.failNode(cn, listener, prog, err)
			continue
		}
		if res.Disabled {
			listener.ExecutionSkipped(cn, res.Reason)
			continue
		}

		sel := selection{class: cn}
		for _, mn := range tree.Children(cn) {
			res, err := b.evaluator.Evaluate(chain, cctx.MethodContext(mn))
			if err != nil {
				b.failNode(mn, listener, prog, err)
				continue
			}
			if res.Disabled {
				listener.ExecutionSkipped(mn, res.Reason)
				continue
			}
			sel.methods = append(sel.methods, mn)
		}
		if len(sel.methods) > 0 {
			out = append(out, sel)
		}
	}
	return out
}

func (b *Bridge) chain(c *model.Class) []condition.Extension {
	if b.classConditions == nil {
		return b.conditions.Chain()
	}
	return condition.NewChildRegistry(b.conditions, b.classConditions(c)...).Chain()
}

func (b *Bridge) failNode(n *descriptor.Node, listener Listener, prog *progress, err error) {
	b.logger.Warn("condition evaluation failed",
		slog.String("node", n.Key()),
		slog.String("error", err.Error()))
	prog.markStarted(n)
	listener.ExecutionStarted(n)
	prog.markFinished(n)
	listener.ExecutionFinished(n, Failed(err))
}

// filter applies the user name filter: comma-separated "Class" or
// "Class#method" entries, where Class is a qualified or simple name.
func (b *Bridge) filter(in []selection) ([]selection, error) {
	raw := strings.TrimSpace(b.settings.Filter)
	if raw == "" {
		return in, nil
	}

	type want struct {
		all     bool
		methods map[string]bool
	}
	wants := make(map[string]*want)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		class, method, narrowed := strings.Cut(entry, "#")
		if class == "" || (narrowed && method == "") {
			return in, fmt.Errorf("invalid filter entry %q", entry)
		}
		w, ok := wants[class]
		if !ok {
			w = &want{methods: make(map[string]bool)}
			wants[class] = w
		}
		if narrowed {
			w.methods[method] = true
		} else {
			w.all = true
		}
	}

	var out []selection
	for _, sel := range in {
		c := sel.class.Class
		w := wants[c.QualifiedName()]
		if w == nil {
			w = wants[c.SimpleName()]
		}
		if w == nil {
			continue
		}
		if w.all {
			out = append(out, sel)
			continue
		}
		narrowed := selection{class: sel.class}
		for _, mn := range sel.methods {
			if w.methods[mn.Method.Name] {
				narrowed.methods = append(narrowed.methods, mn)
			}
		}
		if len(narrowed.methods) > 0 {
			out = append(out, narrowed)
		}
	}
	return out, nil
}

// setupSuites runs suite setup hooks and drops suites whose setup failed.
func (b *Bridge) setupSuites(in []selection, listener Listener, prog *progress) []selection {
	out := in[:0]
	for _, sel := range in {
		c := sel.class.Class
		if c.Setup == nil {
			out = append(out, sel)
			continue
		}
		err := c.Setup()
		switch {
		case err == nil:
			out = append(out, sel)
		case errors.Is(err, model.ErrAssumption):
			listener.ExecutionSkipped(sel.class, "Assumptions failed: "+err.Error())
		default:
			b.failNode(sel.class, listener, prog, fmt.Errorf("suite setup: %w", err))
		}
	}
	return out
}

func (b *Bridge) teardownSuites(sels []selection) {
	for _, sel := range sels {
		c := sel.class.Class
		if c.Teardown == nil {
			continue
		}
		if err := c.Teardown(); err != nil {
			b.logger.Warn("suite teardown failed",
				slog.String("class", c.QualifiedName()),
				slog.String("error", err.Error()))
		}
	}
}

// plan derives the harness options and marks the selected method nodes.
func (b *Bridge) plan(tree *descriptor.Tree, sels []selection, prog *progress) (harness.Options, []*descriptor.Node) {
	var (
		includes []string
		selected []*descriptor.Node
		fixtures map[string][]string
	)
	for _, sel := range sels {
		for _, mn := range sel.methods {
			includes = append(includes, Pattern(sel.class.Class.QualifiedName(), mn.Method.Name))
			selected = append(selected, mn)
			prog.selectMethod(mn)

			if mn.Kind != descriptor.KindParametrizedMethod {
				continue
			}
			if fixtures == nil {
				fixtures = make(map[string][]string)
			}
			for _, f := range tree.Children(mn) {
				id := mn.Method.Identity()
				fixtures[id] = append(fixtures[id], f.Params.DisplayName())
			}
		}
	}

	opts := b.settings.HarnessOptions(includes)
	opts.Fixtures = fixtures
	return opts, selected
}

// Pattern returns the anchored inclusion pattern for one method.
func Pattern(qualifiedClass, method string) string {
	return regexp.QuoteMeta(qualifiedClass) + `\.` + regexp.QuoteMeta(method) + "$"
}

func (b *Bridge) closeOpen(prog *progress, listener Listener, result Result) {
	for _, n := range prog.open() {
		if prog.markFinished(n) {
			listener.ExecutionFinished(n, result)
		}
	}
}
