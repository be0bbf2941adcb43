// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model describes benchmark-bearing program elements without
// reflection.
//
// A binding (runtime reflection in reflectbind, tree-sitter source scanning
// in sourcebind) maps native program elements onto these types once and
// attaches classification Tags. Everything downstream of the binding
// (discovery, conditions, execution) only looks at Tags and plain fields.
//
// Mapping of terms:
//
//	class        -> a Go struct type used as a benchmark suite
//	method       -> a method in the suite's pointer method set
//	holder type  -> a struct type with at least one `param:"..."` field
//	enumeration  -> a named type with a known, ordered list of constants
package model

import (
	"errors"
	"strings"
)

// Tag is a classification bit computed by a binding at discovery time.
type Tag uint32

const (
	// TagBenchmark marks a method as a benchmark (the benchmark marker).
	TagBenchmark Tag = 1 << iota

	// TagDisabled marks a class or method as disabled. The reason is stored
	// under AttrDisabledReason.
	TagDisabled

	// TagParam marks a struct field as a benchmark parameter.
	TagParam

	// TagEnum marks a type whose constants are known (Type.Enum).
	TagEnum

	// TagPromoted marks a method promoted from an embedded struct.
	TagPromoted

	// TagStruct marks a struct type.
	TagStruct
)

// Has reports whether all bits of f are set in t.
func (t Tag) Has(f Tag) bool {
	return t&f == f
}

// Well-known attribute keys.
const (
	// AttrDisabledReason holds the reason for TagDisabled.
	AttrDisabledReason = "disabled.reason"

	// AttrGOOS holds a comma-separated list of operating systems the element
	// is restricted to.
	AttrGOOS = "goos"

	// AttrDeclaredIn names the embedded type a promoted method comes from.
	AttrDeclaredIn = "declared.in"

	// AttrSourceFile is set by the source binding.
	AttrSourceFile = "source.file"
)

// ErrAssumption is wrapped by suite setup hooks to signal that the suite's
// preconditions do not hold. The suite is skipped rather than failed.
var ErrAssumption = errors.New("assumption failed")

// Type is a program type as seen by discovery.
type Type struct {
	// Name is the qualified name: "importpath.Name", "*importpath.Name" for
	// pointers, or the plain name for predeclared types.
	Name string

	// Simple is the unqualified name ("Name", "*Name").
	Simple string

	// Tags classifies the type (TagStruct, TagEnum).
	Tags Tag

	// Elem is set for pointer types.
	Elem *Type

	// Enum lists the constant names in declaration order when TagEnum is set.
	Enum []string

	// Fields are the exported fields, including promoted ones.
	Fields []*Field

	// DeclaredFields are the fields declared directly on the type, exported
	// or not.
	DeclaredFields []*Field
}

// Deref returns the pointed-to type for pointers and t otherwise.
func (t *Type) Deref() *Type {
	if t != nil && t.Elem != nil {
		return t.Elem
	}
	return t
}

// IsEnum reports whether the type's constants are known.
func (t *Type) IsEnum() bool {
	return t != nil && t.Tags.Has(TagEnum)
}

// Field is a struct field.
type Field struct {
	Name string
	Type *Type
	Tags Tag

	// Values are the explicit parameter values declared on the field, split
	// but otherwise verbatim. A field declared as `param:""` has a single
	// blank value.
	Values []string
}

// IsParam reports whether the field is a benchmark parameter.
func (f *Field) IsParam() bool {
	return f != nil && f.Tags.Has(TagParam)
}

// Class is a benchmark suite candidate.
type Class struct {
	// Type is the suite's struct type. Its fields make the suite itself a
	// parameter holder when any of them is a parameter.
	Type *Type

	// Package is the import path of the declaring package.
	Package string

	// Root is the classpath root the class was found under: the registry
	// name for the runtime binding, the scanned directory for the source
	// binding.
	Root string

	// Methods is the pointer method set, including promoted methods.
	Methods []*Method

	Tags       Tag
	Attributes map[string]string

	// Setup and Teardown are suite lifecycle hooks. Either may be nil. The
	// source binding never sets them.
	Setup    func() error
	Teardown func() error
}

// QualifiedName returns "importpath.TypeName".
func (c *Class) QualifiedName() string {
	return c.Type.Name
}

// SimpleName returns the unqualified type name.
func (c *Class) SimpleName() string {
	return c.Type.Simple
}

// Attribute returns the attribute value for key.
func (c *Class) Attribute(key string) (string, bool) {
	v, ok := c.Attributes[key]
	return v, ok
}

// Method returns the first method with the given descriptor.
func (c *Class) Method(descriptor string) (*Method, bool) {
	for _, m := range c.Methods {
		if m.Descriptor() == descriptor {
			return m, true
		}
	}
	return nil, false
}

// MethodsNamed returns every method with the given name.
func (c *Class) MethodsNamed(name string) []*Method {
	var out []*Method
	for _, m := range c.Methods {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// Method is a method of a Class.
type Method struct {
	Name string

	// Declaring is the class whose method set contains the method.
	Declaring *Class

	// Params are the declared parameter types, receiver excluded.
	Params []*Type

	Tags       Tag
	Attributes map[string]string
}

// Descriptor returns "Name(ParamType, ParamType)" using qualified type names.
// It is the value of a method's unique id segment.
func (m *Method) Descriptor() string {
	names := make([]string, len(m.Params))
	for i, p := range m.Params {
		names[i] = p.Name
	}
	return m.Name + "(" + strings.Join(names, ", ") + ")"
}

// Identity returns the flat "class.method" name a harness reports.
func (m *Method) Identity() string {
	return m.Declaring.QualifiedName() + "." + m.Name
}

// Attribute returns the attribute value for key.
func (m *Method) Attribute(key string) (string, bool) {
	v, ok := m.Attributes[key]
	return v, ok
}

// Scope narrows a class scan.
type Scope struct {
	// Root restricts the scan to one classpath root. Empty means all roots.
	Root string

	// Package restricts the scan to one import path. Empty means all
	// packages.
	Package string
}

// Matches reports whether c falls inside the scope.
func (s Scope) Matches(c *Class) bool {
	if s.Root != "" && c.Root != s.Root {
		return false
	}
	if s.Package != "" && c.Package != s.Package {
		return false
	}
	return true
}

// Program is the view of reachable classes that discovery scans.
type Program interface {
	// Classes returns the classes inside scope in a stable order.
	Classes(scope Scope) []*Class

	// LookupClass finds a class by qualified name.
	LookupClass(qualifiedName string) (*Class, bool)
}

// SimpleNameOf returns the part of a qualified name after the last '.' that
// follows the last '/'.
func SimpleNameOf(qualified string) string {
	name := strings.TrimPrefix(qualified, "*")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	if strings.HasPrefix(qualified, "*") {
		return "*" + name
	}
	return name
}
