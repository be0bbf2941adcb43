// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sourcebind

import (
	"reflect"
	"slices"
	"strings"

	"github.com/AleutianAI/AleutianBench/services/bench/model"
)

// sourcePackage is every file of one Go package, keyed by import path.
type sourcePackage struct {
	importPath string
	files      []*fileDecls
}

type localType struct {
	decl *typeDecl
	file *fileDecls
}

type localMethod struct {
	decl *methodDecl
	file *fileDecls
}

// packageBuilder turns the declarations of one package into model types and
// classes. Types are built once and cached by name, so self-referencing
// structs terminate.
type packageBuilder struct {
	pkg     *sourcePackage
	root    string
	types   map[string]localType
	methods map[string][]localMethod
	consts  map[string][]constDecl
	cache   map[string]*model.Type
}

func newPackageBuilder(pkg *sourcePackage, root string) *packageBuilder {
	b := &packageBuilder{
		pkg:     pkg,
		root:    root,
		types:   make(map[string]localType),
		methods: make(map[string][]localMethod),
		consts:  make(map[string][]constDecl),
		cache:   make(map[string]*model.Type),
	}
	for _, f := range pkg.files {
		for i := range f.types {
			b.types[f.types[i].name] = localType{decl: &f.types[i], file: f}
		}
		for i := range f.methods {
			m := &f.methods[i]
			b.methods[m.recv] = append(b.methods[m.recv], localMethod{decl: m, file: f})
		}
		for _, c := range f.consts {
			if c.typ != "" {
				b.consts[c.typ] = append(b.consts[c.typ], c)
			}
		}
	}
	return b
}

// classes returns one class per exported struct type with at least one
// benchmark method, declared or promoted.
func (b *packageBuilder) classes() []*model.Class {
	var out []*model.Class
	for name, lt := range b.types {
		if !lt.decl.isStruct || !isExported(name) {
			continue
		}
		class := b.class(name, lt)
		hasBenchmark := slices.ContainsFunc(class.Methods, func(m *model.Method) bool {
			return m.Tags.Has(model.TagBenchmark)
		})
		if hasBenchmark {
			out = append(out, class)
		}
	}
	return out
}

func (b *packageBuilder) class(name string, lt localType) *model.Class {
	c := &model.Class{
		Type:    b.local(name),
		Package: b.pkg.importPath,
		Root:    b.root,
		Attributes: map[string]string{
			model.AttrSourceFile: lt.file.path,
		},
	}
	applyDirectives(&c.Tags, c.Attributes, lt.decl.directives)

	seen := make(map[string]bool)
	b.collectMethods(c, name, "", seen, map[string]bool{name: true})
	slices.SortFunc(c.Methods, func(x, y *model.Method) int {
		return strings.Compare(x.Name, y.Name)
	})
	return c
}

// collectMethods adds the exported methods of type name to c, then the
// methods promoted from its embedded local structs. Shallower declarations
// win. from names the embedded type at the top of the promotion chain.
func (b *packageBuilder) collectMethods(c *model.Class, name, from string, seen, visiting map[string]bool) {
	for _, lm := range b.methods[name] {
		md := lm.decl
		if !isExported(md.name) || seen[md.name] {
			continue
		}
		seen[md.name] = true

		m := &model.Method{
			Name:      md.name,
			Declaring: c,
			Attributes: map[string]string{
				model.AttrSourceFile: lm.file.path,
			},
		}
		for _, p := range md.params {
			m.Params = append(m.Params, b.resolve(p, lm.file))
		}
		if isBenchmark(md, m.Params) {
			m.Tags |= model.TagBenchmark
		}
		if from != "" {
			m.Tags |= model.TagPromoted
			m.Attributes[model.AttrDeclaredIn] = from
		}
		applyDirectives(&m.Tags, m.Attributes, md.directives)
		c.Methods = append(c.Methods, m)
	}

	lt, ok := b.types[name]
	if !ok {
		return
	}
	for _, fd := range lt.decl.fields {
		if !fd.embedded {
			continue
		}
		embedded := strings.TrimPrefix(fd.typeExpr, "*")
		if _, local := b.types[embedded]; !local || visiting[embedded] {
			continue
		}
		visiting[embedded] = true
		next := from
		if next == "" {
			next = b.qualify(embedded)
		}
		b.collectMethods(c, embedded, next, seen, visiting)
		delete(visiting, embedded)
	}
}

func isBenchmark(md *methodDecl, params []*model.Type) bool {
	return strings.HasPrefix(md.name, "Benchmark") &&
		md.results == 0 &&
		len(params) > 0 &&
		params[0].Name == "*testing.B"
}

func applyDirectives(tags *model.Tag, attrs map[string]string, d directives) {
	if d.disabled != nil {
		*tags |= model.TagDisabled
		attrs[model.AttrDisabledReason] = *d.disabled
	}
	if d.goos != "" {
		attrs[model.AttrGOOS] = d.goos
	}
}

// resolve maps a type expression written in file to a model type.
func (b *packageBuilder) resolve(expr string, file *fileDecls) *model.Type {
	expr = strings.TrimSpace(expr)
	if rest, ok := strings.CutPrefix(expr, "*"); ok {
		elem := b.resolve(rest, file)
		return &model.Type{Name: "*" + elem.Name, Simple: "*" + elem.Simple, Elem: elem}
	}

	if qualifier, name, ok := strings.Cut(expr, "."); ok && !strings.ContainsAny(expr, "[]() ") {
		if importPath, imported := file.imports[qualifier]; imported {
			t := &model.Type{Name: importPath + "." + name, Simple: name}
			if importPath == "testing" && name == "B" {
				t.Tags |= model.TagStruct
			}
			return t
		}
	}

	if _, local := b.types[expr]; local {
		return b.local(expr)
	}
	return &model.Type{Name: expr, Simple: expr}
}

func (b *packageBuilder) qualify(name string) string {
	return b.pkg.importPath + "." + name
}

// local builds the model type for a type declared in this package.
func (b *packageBuilder) local(name string) *model.Type {
	if t, ok := b.cache[name]; ok {
		return t
	}
	lt := b.types[name]
	t := &model.Type{Name: b.qualify(name), Simple: name}
	b.cache[name] = t

	if lt.decl.isStruct {
		t.Tags |= model.TagStruct
		b.fields(t, lt)
		return t
	}
	if values, ok := b.enumValues(name); ok {
		t.Tags |= model.TagEnum
		t.Enum = values
	}
	return t
}

// enumValues lists the constants of a named non-struct type. An EnumValues
// method returning a []string literal takes precedence over typed constants.
// String constants contribute their value, other constants their name.
func (b *packageBuilder) enumValues(name string) ([]string, bool) {
	for _, lm := range b.methods[name] {
		if lm.decl.name == "EnumValues" && len(lm.decl.strings) > 0 {
			return slices.Clone(lm.decl.strings), true
		}
	}
	consts := b.consts[name]
	if len(consts) == 0 {
		return nil, false
	}
	values := make([]string, 0, len(consts))
	for _, c := range consts {
		if c.name == "_" {
			continue
		}
		v := c.name
		if c.quoted {
			v = c.literal
		}
		if !slices.Contains(values, v) {
			values = append(values, v)
		}
	}
	return values, len(values) > 0
}

// fields fills Fields (exported, including promoted) and DeclaredFields
// (direct, non-embedded) of a struct type.
func (b *packageBuilder) fields(t *model.Type, lt localType) {
	seen := make(map[string]bool)
	var embedded []string
	for _, fd := range lt.decl.fields {
		if fd.embedded {
			embedded = append(embedded, strings.TrimPrefix(fd.typeExpr, "*"))
			continue
		}
		for _, name := range fd.names {
			f := b.field(name, fd, lt.file)
			t.DeclaredFields = append(t.DeclaredFields, f)
			if isExported(name) {
				t.Fields = append(t.Fields, f)
				seen[name] = true
			}
		}
	}

	for _, name := range embedded {
		if _, local := b.types[name]; !local {
			continue
		}
		inner := b.local(name)
		for _, f := range inner.Fields {
			if !seen[f.Name] {
				seen[f.Name] = true
				t.Fields = append(t.Fields, f)
			}
		}
	}
}

func (b *packageBuilder) field(name string, fd fieldDecl, file *fileDecls) *model.Field {
	f := &model.Field{Name: name, Type: b.resolve(fd.typeExpr, file)}
	if raw, ok := reflect.StructTag(fd.tag).Lookup("param"); ok {
		f.Tags |= model.TagParam
		f.Values = splitValues(raw)
	}
	return f
}

// splitValues splits a param tag. An empty tag yields one blank value.
func splitValues(raw string) []string {
	parts := strings.Split(raw, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func isExported(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}
