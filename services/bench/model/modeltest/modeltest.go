// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package modeltest builds model elements by hand for tests.
package modeltest

import (
	"github.com/AleutianAI/AleutianBench/services/bench/model"
)

// Predeclared types.
var (
	Int    = &model.Type{Name: "int", Simple: "int"}
	String = &model.Type{Name: "string", Simple: "string"}
	Bool   = &model.Type{Name: "bool", Simple: "bool"}

	// TestingB is *testing.B.
	TestingB = Ptr(&model.Type{Name: "testing.B", Simple: "B", Tags: model.TagStruct})
)

// Struct returns a struct type in pkg. Every field is both a visible field
// and a declared field unless it is unexported.
func Struct(pkg, name string, fields ...*model.Field) *model.Type {
	t := &model.Type{Name: pkg + "." + name, Simple: name, Tags: model.TagStruct}
	for _, f := range fields {
		if exported(f.Name) {
			t.Fields = append(t.Fields, f)
		}
		t.DeclaredFields = append(t.DeclaredFields, f)
	}
	return t
}

// Enum returns an enumeration type with the given constants.
func Enum(pkg, name string, constants ...string) *model.Type {
	return &model.Type{Name: pkg + "." + name, Simple: name, Tags: model.TagEnum, Enum: constants}
}

// Ptr returns a pointer to t.
func Ptr(t *model.Type) *model.Type {
	return &model.Type{Name: "*" + t.Name, Simple: "*" + t.Simple, Elem: t}
}

// Param returns a parameter field. Passing no values declares none.
func Param(name string, t *model.Type, values ...string) *model.Field {
	return &model.Field{Name: name, Type: t, Tags: model.TagParam, Values: values}
}

// Plain returns a non-parameter field.
func Plain(name string, t *model.Type) *model.Field {
	return &model.Field{Name: name, Type: t}
}

// MethodSpec describes a method to attach to a class.
type MethodSpec struct {
	Name           string
	Params         []*model.Type
	Benchmark      bool
	DisabledReason string
}

// Bench describes a benchmark method. *testing.B is prepended to params.
func Bench(name string, params ...*model.Type) MethodSpec {
	return MethodSpec{Name: name, Params: append([]*model.Type{TestingB}, params...), Benchmark: true}
}

// Helper describes a non-benchmark method.
func Helper(name string, params ...*model.Type) MethodSpec {
	return MethodSpec{Name: name, Params: params}
}

// Disabled marks the method disabled with reason.
func (s MethodSpec) Disabled(reason string) MethodSpec {
	s.DisabledReason = reason
	return s
}

// Class builds a class for the struct type t.
func Class(t *model.Type, methods ...MethodSpec) *model.Class {
	c := &model.Class{
		Type:       t,
		Package:    packageOf(t.Name),
		Attributes: map[string]string{},
	}
	for _, spec := range methods {
		m := &model.Method{
			Name:       spec.Name,
			Declaring:  c,
			Params:     spec.Params,
			Attributes: map[string]string{},
		}
		if spec.Benchmark {
			m.Tags |= model.TagBenchmark
		}
		if spec.DisabledReason != "" {
			m.Tags |= model.TagDisabled
			m.Attributes[model.AttrDisabledReason] = spec.DisabledReason
		}
		c.Methods = append(c.Methods, m)
	}
	return c
}

// Disable marks c disabled with reason and returns it.
func Disable(c *model.Class, reason string) *model.Class {
	c.Tags |= model.TagDisabled
	c.Attributes[model.AttrDisabledReason] = reason
	return c
}

func packageOf(qualified string) string {
	for i := len(qualified) - 1; i >= 0; i-- {
		if qualified[i] == '.' {
			return qualified[:i]
		}
		if qualified[i] == '/' {
			break
		}
	}
	return ""
}

func exported(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}
