// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reflectbind binds Go suite types to the program model at runtime.
//
// A suite is a named struct type with exported methods of the form
//
//	func (s *Suite) BenchmarkX(b *testing.B, holders ...)
//
// Registering a suite computes model tags once (benchmark marker,
// parameter fields, enum types, promoted methods) and produces
// harness.Benchmark invokers for the in-process harness.
package reflectbind

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/AleutianAI/AleutianBench/services/bench/condition"
	"github.com/AleutianAI/AleutianBench/services/bench/discovery"
	"github.com/AleutianAI/AleutianBench/services/bench/harness"
	"github.com/AleutianAI/AleutianBench/services/bench/model"
)

// SuiteSetup is implemented by suites with a suite-level setup hook. An
// error wrapping model.ErrAssumption skips the suite.
type SuiteSetup interface {
	SetupSuite() error
}

// SuiteTeardown is implemented by suites with a suite-level teardown hook.
type SuiteTeardown interface {
	TeardownSuite() error
}

// HolderSetup is implemented by parameter holders that need to prepare
// state after their parameters were assigned.
type HolderSetup interface {
	Setup() error
}

var testingBType = reflect.TypeFor[*testing.B]()

type suite struct {
	class      *model.Class
	typ        reflect.Type
	proto      reflect.Value
	extensions []condition.Extension
}

// Registry holds registered suites. It implements model.Program.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	catalog *model.Catalog
	suites  map[string]*suite
	types   *typeMapper
	logger  *slog.Logger
}

// New returns an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		catalog: model.NewCatalog(),
		suites:  make(map[string]*suite),
		types:   newTypeMapper(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Default is the process-wide registry used by Register.
var Default = New()

// Register adds s to the Default registry.
func Register(s any, opts ...SuiteOption) error {
	return Default.Register(s, opts...)
}

// MustRegister is Register that panics on error. It is meant for init
// functions.
func MustRegister(s any, opts ...SuiteOption) {
	if err := Default.Register(s, opts...); err != nil {
		panic(err)
	}
}

// Register adds a suite.
//
// Description:
//
//	s must be a named struct or a pointer to one. The value becomes the
//	suite prototype: every benchmark execution runs on a shallow copy of
//	it, so fields set before registration act as fixed configuration.
//	Methods of the pointer method set, including methods promoted from
//	embedded structs, are classified; a method is a benchmark when its
//	name starts with "Benchmark", its first parameter is *testing.B and it
//	returns nothing.
//
// Outputs:
//
//	error - ErrNotSuite or ErrDuplicateSuite.
//
// Example:
//
//	reflectbind.MustRegister(&CodecSuite{}, reflectbind.OnlyOn("linux"))
func (r *Registry) Register(s any, opts ...SuiteOption) error {
	proto := reflect.ValueOf(s)
	if !proto.IsValid() {
		return fmt.Errorf("%w: nil", ErrNotSuite)
	}
	if proto.Kind() != reflect.Pointer {
		ptr := reflect.New(proto.Type())
		ptr.Elem().Set(proto)
		proto = ptr
	}
	if proto.IsNil() {
		return fmt.Errorf("%w: nil %s", ErrNotSuite, proto.Type())
	}
	typ := proto.Type().Elem()
	if typ.Kind() != reflect.Struct || typ.Name() == "" {
		return fmt.Errorf("%w: %s", ErrNotSuite, proto.Type())
	}

	cfg := suiteConfig{root: DefaultRoot}
	for _, opt := range opts {
		opt(&cfg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	mt := r.types.typeOf(typ)
	if _, exists := r.suites[mt.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSuite, mt.Name)
	}

	class := &model.Class{
		Type:       mt,
		Package:    typ.PkgPath(),
		Root:       cfg.root,
		Attributes: map[string]string{},
	}
	if cfg.disabled != nil {
		class.Tags |= model.TagDisabled
		class.Attributes[model.AttrDisabledReason] = *cfg.disabled
	}
	if len(cfg.goos) > 0 {
		class.Attributes[model.AttrGOOS] = strings.Join(cfg.goos, ",")
	}
	class.Methods = r.methods(class, typ, cfg)

	if hook, ok := proto.Interface().(SuiteSetup); ok {
		class.Setup = hook.SetupSuite
	}
	if hook, ok := proto.Interface().(SuiteTeardown); ok {
		class.Teardown = hook.TeardownSuite
	}

	r.suites[mt.Name] = &suite{class: class, typ: typ, proto: proto, extensions: cfg.conditions}
	r.catalog.Add(class)

	r.logger.Debug("suite registered",
		slog.String("class", mt.Name),
		slog.Int("methods", len(class.Methods)),
		slog.String("root", cfg.root))
	return nil
}

func (r *Registry) methods(class *model.Class, typ reflect.Type, cfg suiteConfig) []*model.Method {
	ptr := reflect.PointerTo(typ)
	out := make([]*model.Method, 0, ptr.NumMethod())
	for i := 0; i < ptr.NumMethod(); i++ {
		rm := ptr.Method(i)
		m := &model.Method{
			Name:       rm.Name,
			Declaring:  class,
			Attributes: map[string]string{},
		}
		// In(0) is the receiver.
		for j := 1; j < rm.Type.NumIn(); j++ {
			m.Params = append(m.Params, r.types.typeOf(rm.Type.In(j)))
		}
		if isBenchmark(rm) {
			m.Tags |= model.TagBenchmark
		}
		if from, ok := promotedFrom(typ, rm); ok {
			m.Tags |= model.TagPromoted
			m.Attributes[model.AttrDeclaredIn] = from
		}
		if reason, ok := cfg.disabledMethods[rm.Name]; ok {
			m.Tags |= model.TagDisabled
			m.Attributes[model.AttrDisabledReason] = reason
		}
		out = append(out, m)
	}
	return out
}

func isBenchmark(m reflect.Method) bool {
	t := m.Type
	return strings.HasPrefix(m.Name, "Benchmark") &&
		t.NumIn() >= 2 && t.In(1) == testingBType &&
		t.NumOut() == 0
}

// Classes implements model.Program.
func (r *Registry) Classes(scope model.Scope) []*model.Class {
	return r.catalog.Classes(scope)
}

// LookupClass implements model.Program.
func (r *Registry) LookupClass(qualifiedName string) (*model.Class, bool) {
	return r.catalog.LookupClass(qualifiedName)
}

// Extensions returns the class-local conditions of a registered class.
func (r *Registry) Extensions(c *model.Class) []condition.Extension {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.suites[c.QualifiedName()]; ok {
		return slices.Clone(s.extensions)
	}
	return nil
}

// Benchmarks returns an in-process benchmark for every benchmark method of
// every registered suite, in registration order.
func (r *Registry) Benchmarks() []harness.Benchmark {
	var out []harness.Benchmark
	for _, class := range r.catalog.Classes(model.Scope{}) {
		for _, m := range class.Methods {
			if !discovery.IsBenchmarkMethod(m) {
				continue
			}
			args := discovery.Arguments(m)
			hargs := make([]harness.Argument, len(args))
			for i, a := range args {
				hargs[i] = harness.Argument{Name: a.Name, Values: a.Values}
			}
			out = append(out, harness.Benchmark{
				Name:      m.Identity(),
				Arguments: hargs,
				Prepare:   r.preparer(class.QualifiedName(), m.Name),
			})
		}
	}
	return out
}

func (r *Registry) preparer(className, method string) func([]harness.Param) (func(*testing.B), error) {
	return func(params []harness.Param) (func(*testing.B), error) {
		return r.Prepare(className, method, params)
	}
}
