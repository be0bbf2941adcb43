// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package condition

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianBench/services/bench/descriptor"
	"github.com/AleutianAI/AleutianBench/services/bench/model"
	mt "github.com/AleutianAI/AleutianBench/services/bench/model/modeltest"
)

const pkg = "example.com/bench"

func quietEvaluator() *Evaluator {
	return NewEvaluator(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func classCtx(c *model.Class) *Context {
	return ClassContext(&descriptor.Node{Kind: descriptor.KindClass, Class: c})
}

func methodCtx(c *model.Class, m *model.Method) *Context {
	return classCtx(c).MethodContext(&descriptor.Node{Kind: descriptor.KindMethod, Method: m})
}

// counting records whether it was invoked.
type counting struct {
	name   string
	result Result
	err    error
	calls  int
}

func (c *counting) Name() string { return c.name }

func (c *counting) Evaluate(*Context) (Result, error) {
	c.calls++
	return c.result, c.err
}

// TestEvaluate_Enabled verifies the default result when nothing disables.
func TestEvaluate_Enabled(t *testing.T) {
	cls := mt.Class(mt.Struct(pkg, "Suite"), mt.Bench("BenchmarkA"))

	result, err := quietEvaluator().Evaluate(DefaultRegistry(nil).Chain(), classCtx(cls))
	require.NoError(t, err)
	assert.False(t, result.Disabled)
	assert.Equal(t, "No 'disabled' conditions encountered", result.Reason)
}

// TestEvaluate_DisabledClass verifies the disabled tag and its reason.
func TestEvaluate_DisabledClass(t *testing.T) {
	tests := []struct {
		name   string
		reason string
		want   string
	}{
		{"with reason", "flaky on CI", "flaky on CI"},
		{"without reason", " ", "class Suite is disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := mt.Disable(mt.Class(mt.Struct(pkg, "Suite"), mt.Bench("BenchmarkA")), tt.reason)

			result, err := quietEvaluator().Evaluate(DefaultRegistry(nil).Chain(), classCtx(cls))
			require.NoError(t, err)
			assert.True(t, result.Disabled)
			assert.Equal(t, tt.want, result.Reason)
		})
	}
}

// TestEvaluate_DisabledMethod verifies that a method context looks at the
// method tags only.
func TestEvaluate_DisabledMethod(t *testing.T) {
	cls := mt.Class(mt.Struct(pkg, "Suite"),
		mt.Bench("BenchmarkA").Disabled("broken"),
		mt.Bench("BenchmarkB"))

	e := quietEvaluator()
	chain := DefaultRegistry(nil).Chain()

	a, err := e.Evaluate(chain, methodCtx(cls, cls.Methods[0]))
	require.NoError(t, err)
	assert.Equal(t, Disabled("broken"), a)

	b, err := e.Evaluate(chain, methodCtx(cls, cls.Methods[1]))
	require.NoError(t, err)
	assert.False(t, b.Disabled)
}

// TestEvaluate_ShortCircuit verifies that extensions after the first
// disabling one are not invoked and that local extensions come first.
func TestEvaluate_ShortCircuit(t *testing.T) {
	parentExt := &counting{name: "parent", result: Disabled("parent")}
	localExt := &counting{name: "local", result: Disabled("always disabled")}

	registry := NewChildRegistry(NewRegistry(parentExt), localExt)
	cls := mt.Class(mt.Struct(pkg, "Suite"), mt.Bench("BenchmarkA"))

	result, err := quietEvaluator().Evaluate(registry.Chain(), classCtx(cls))
	require.NoError(t, err)
	assert.Equal(t, "always disabled", result.Reason)
	assert.Equal(t, 1, localExt.calls)
	assert.Equal(t, 0, parentExt.calls)
}

// TestEvaluate_Error verifies the evaluation error message and cause.
func TestEvaluate_Error(t *testing.T) {
	cause := errors.New("boom")
	failing := &counting{name: "failing", err: cause}
	after := &counting{name: "after", result: Disabled("late")}
	cls := mt.Class(mt.Struct(pkg, "Suite"), mt.Bench("BenchmarkA"))

	_, err := quietEvaluator().Evaluate([]Extension{failing, after}, classCtx(cls))

	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "Failed to evaluate condition [failing]: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 0, after.calls)

	blank := &EvaluationError{Extension: "x", Err: errors.New("")}
	assert.Equal(t, "Failed to evaluate condition [x]", blank.Error())
}

// TestOSCondition verifies operating system restrictions.
func TestOSCondition(t *testing.T) {
	tests := []struct {
		name     string
		goos     string
		attr     *string
		disabled bool
		wantErr  bool
	}{
		{"no restriction", "linux", nil, false, false},
		{"allowed", "linux", ptr("darwin, linux"), false, false},
		{"not allowed", "windows", ptr("darwin,linux"), true, false},
		{"empty list", "linux", ptr(" , "), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := mt.Class(mt.Struct(pkg, "Suite"), mt.Bench("BenchmarkA"))
			if tt.attr != nil {
				cls.Attributes[model.AttrGOOS] = *tt.attr
			}

			result, err := OSCondition{GOOS: tt.goos}.Evaluate(classCtx(cls))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCondition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.disabled, result.Disabled)
		})
	}
}

// TestEnvironmentCondition verifies configuration-driven disabling.
func TestEnvironmentCondition(t *testing.T) {
	cls := mt.Class(mt.Struct(pkg, "Suite"), mt.Bench("BenchmarkA"), mt.Bench("BenchmarkB"))
	env := &EnvironmentCondition{Values: MapLookup{
		"disable.Suite#BenchmarkA":             "true",
		"disable." + pkg + ".Suite#BenchmarkB": "nope",
	}}

	r, err := env.Evaluate(classCtx(cls))
	require.NoError(t, err)
	assert.False(t, r.Disabled)

	r, err = env.Evaluate(methodCtx(cls, cls.Methods[0]))
	require.NoError(t, err)
	assert.Equal(t, Disabled("Disabled by configuration property 'disable.Suite#BenchmarkA'"), r)

	_, err = env.Evaluate(methodCtx(cls, cls.Methods[1]))
	assert.ErrorIs(t, err, ErrInvalidCondition)

	whole := &EnvironmentCondition{Values: MapLookup{"disable." + pkg + ".Suite": "1"}}
	r, err = whole.Evaluate(classCtx(cls))
	require.NoError(t, err)
	assert.True(t, r.Disabled)
}

func ptr(s string) *string { return &s }
