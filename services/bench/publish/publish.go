// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Writer saves a bundle to one destination.
type Writer interface {
	// Write saves b. Progress lines go to out.
	Write(ctx context.Context, out io.Writer, b Bundle) error
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(ctx context.Context, out io.Writer, b Bundle) error

// Write implements Writer.
func (f WriterFunc) Write(ctx context.Context, out io.Writer, b Bundle) error {
	return f(ctx, out, b)
}

// Factory creates writers for the URIs it recognizes.
type Factory interface {
	// ForURI returns the writer for uri. ok is false when the factory does
	// not handle uri; err is set when it does but uri is malformed.
	ForURI(uri string) (w Writer, ok bool, err error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(uri string) (Writer, bool, error)

// ForURI implements Factory.
func (f FactoryFunc) ForURI(uri string) (Writer, bool, error) {
	return f(uri)
}

// PrefixFactory handles URIs starting with prefix. newWriter receives the
// rest of the URI.
func PrefixFactory(prefix string, newWriter func(rest string) (Writer, error)) Factory {
	return FactoryFunc(func(uri string) (Writer, bool, error) {
		rest, ok := strings.CutPrefix(uri, prefix)
		if !ok {
			return nil, false, nil
		}
		w, err := newWriter(rest)
		return w, true, err
	})
}

// Publisher resolves publish URIs and runs their writers.
//
// Thread Safety: Register must not race with Publish. Publish is safe for
// concurrent use.
type Publisher struct {
	factories   []Factory
	logger      *slog.Logger
	out         io.Writer
	concurrency int
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithOutput sets where writers print progress and the sysout report.
// Defaults to io.Discard.
func WithOutput(out io.Writer) Option {
	return func(p *Publisher) {
		if out != nil {
			p.out = out
		}
	}
}

// WithConcurrency bounds how many writers run at once. Defaults to 4.
func WithConcurrency(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithFactories replaces the built-in factories.
func WithFactories(factories ...Factory) Option {
	return func(p *Publisher) {
		p.factories = append([]Factory(nil), factories...)
	}
}

// NewPublisher returns a publisher with the built-in factories: csv:,
// sysout, json:, benchfmt:, influxdb://, gs:// and badger:.
func NewPublisher(opts ...Option) *Publisher {
	p := &Publisher{
		factories:   Builtin(),
		logger:      slog.Default(),
		out:         io.Discard,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Builtin returns the built-in factories in resolution order.
func Builtin() []Factory {
	return []Factory{
		CSVFactory(),
		SysoutFactory(),
		JSONFactory(),
		BenchfmtFactory(),
		InfluxFactory(),
		GCSFactory(),
		BadgerFactory(),
	}
}

// Register adds f ahead of the existing factories.
func (p *Publisher) Register(f Factory) {
	p.factories = append([]Factory{f}, p.factories...)
}

// Resolve returns the writer of the first factory that handles uri.
func (p *Publisher) Resolve(uri string) (Writer, error) {
	for _, f := range p.factories {
		w, ok, err := f.ForURI(uri)
		if !ok {
			continue
		}
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownWriter, uri)
}

// Publish writes b to every destination in uris.
//
// Description:
//
//	uris is a comma separated list. Blank entries and URIs no factory
//	handles are skipped. Writers run concurrently, bounded by the
//	configured concurrency. A failing writer is logged as
//	"Cannot save benchmark results to '<uri>'" and does not stop the
//	others.
//
// Inputs:
//
//	ctx - Passed to every writer.
//	uris - The publish list. "" is a no-op.
//	b - The results.
//
// Outputs:
//
//	error - nil, or every *WriteError joined. Callers log it; a publish
//	        failure never fails the benchmark run.
func (p *Publisher) Publish(ctx context.Context, uris string, b Bundle) error {
	type target struct {
		uri    string
		writer Writer
	}

	var (
		mu      sync.Mutex
		errs    []error
		targets []target
	)
	fail := func(uri, scheme string, err error) {
		werr := &WriteError{URI: uri, Err: err}
		p.logger.Warn(werr.Error(), slog.String("uri", uri))
		recordPublish(ctx, scheme, "error")
		mu.Lock()
		errs = append(errs, werr)
		mu.Unlock()
	}

	for _, raw := range strings.Split(uris, ",") {
		uri := strings.TrimSpace(raw)
		if uri == "" {
			continue
		}
		w, err := p.Resolve(uri)
		if errors.Is(err, ErrUnknownWriter) {
			p.logger.Debug("no results writer", slog.String("uri", uri))
			continue
		}
		if err != nil {
			fail(uri, Scheme(uri), err)
			continue
		}
		targets = append(targets, target{uri: uri, writer: w})
	}
	if len(targets) == 0 {
		return errors.Join(errs...)
	}

	ctx, span := startPublishSpan(ctx, len(targets), len(b.Records))
	defer span.End()

	out := &lockedWriter{w: p.out}
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for _, t := range targets {
		g.Go(func() error {
			start := time.Now()
			scheme := Scheme(t.uri)
			if err := t.writer.Write(ctx, out, b); err != nil {
				fail(t.uri, scheme, err)
				return nil
			}
			recordPublish(ctx, scheme, "ok")
			p.logger.Info("results published",
				slog.String("uri", t.uri),
				slog.Int("records", len(b.Records)),
				slog.Duration("duration", time.Since(start)),
			)
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Scheme returns the part of uri before the first ':' or uri itself.
func Scheme(uri string) string {
	if i := strings.IndexByte(uri, ':'); i > 0 {
		return uri[:i]
	}
	return uri
}

// lockedWriter serializes writes from concurrent writers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
