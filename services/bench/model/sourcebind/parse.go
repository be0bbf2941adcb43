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
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// fileDecls is what one source file contributes to its package.
type fileDecls struct {
	path    string
	pkg     string
	imports map[string]string
	types   []typeDecl
	methods []methodDecl
	consts  []constDecl
	broken  bool
}

type typeDecl struct {
	name       string
	isStruct   bool
	underlying string
	fields     []fieldDecl
	directives directives
	line       int
}

type fieldDecl struct {
	names    []string
	typeExpr string
	tag      string
	embedded bool
}

type methodDecl struct {
	recv       string
	name       string
	params     []string
	results    int
	directives directives

	// strings holds the string literals of a []string composite literal in
	// the body, used for EnumValues methods.
	strings []string
}

type constDecl struct {
	name    string
	typ     string
	literal string
	quoted  bool
}

// directives are "//bench:" comment lines directly above a declaration.
type directives struct {
	disabled *string
	goos     string
}

// parseFile extracts package-level declarations from one Go file.
//
// Description:
//
//	Parses content with tree-sitter and walks the top-level declarations.
//	A file with syntax errors is still walked; broken is set so callers can
//	report it.
//
// Inputs:
//
//	ctx - Cancels the parse.
//	content - File content. Must be valid UTF-8.
//	path - Used in errors and source attributes.
//
// Outputs:
//
//	*fileDecls - The declarations found.
//	error - ErrInvalidContent, or a wrapped parse or cancellation error.
//
// Thread Safety: Safe for concurrent use; each call owns its parser.
func parseFile(ctx context.Context, content []byte, path string) (*fileDecls, error) {
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidContent, path)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	fd := &fileDecls{
		path:    path,
		imports: make(map[string]string),
		broken:  root.HasError(),
	}

	var comments []*sitter.Node
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() == "comment" {
			comments = append(comments, child)
			continue
		}
		dirs := directivesAbove(comments, child, content)
		comments = comments[:0]

		switch child.Type() {
		case "package_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				if c := child.Child(j); c.Type() == "package_identifier" {
					fd.pkg = c.Content(content)
				}
			}
		case "import_declaration":
			eachDescendant(child, "import_spec", func(spec *sitter.Node) {
				fd.addImport(spec, content)
			})
		case "type_declaration":
			for j := 0; j < int(child.ChildCount()); j++ {
				if spec := child.Child(j); spec.Type() == "type_spec" {
					if td, ok := parseTypeSpec(spec, content); ok {
						td.directives = dirs
						fd.types = append(fd.types, td)
					}
				}
			}
		case "method_declaration":
			if md, ok := parseMethod(child, content); ok {
				md.directives = dirs
				fd.methods = append(fd.methods, md)
			}
		case "const_declaration":
			fd.consts = append(fd.consts, parseConsts(child, content)...)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse %s canceled: %w", path, err)
	}
	return fd, nil
}

func (fd *fileDecls) addImport(spec *sitter.Node, content []byte) {
	pathNode := spec.ChildByFieldName("path")
	if pathNode == nil {
		return
	}
	importPath, err := strconv.Unquote(pathNode.Content(content))
	if err != nil {
		return
	}
	local := importPath[strings.LastIndex(importPath, "/")+1:]
	if name := spec.ChildByFieldName("name"); name != nil {
		local = name.Content(content)
	}
	fd.imports[local] = importPath
}

// directivesAbove reads "//bench:" lines from the comment block that ends
// on the line directly above node.
func directivesAbove(comments []*sitter.Node, node *sitter.Node, content []byte) directives {
	var d directives
	if len(comments) == 0 {
		return d
	}
	// Only the contiguous block touching node counts.
	start := len(comments)
	next := node.StartPoint().Row
	for start > 0 && comments[start-1].EndPoint().Row+1 == next {
		start--
		next = comments[start].StartPoint().Row
	}
	for _, c := range comments[start:] {
		text := strings.TrimPrefix(c.Content(content), "//")
		directive, ok := strings.CutPrefix(text, "bench:")
		if !ok {
			continue
		}
		key, value, _ := strings.Cut(directive, " ")
		value = strings.TrimSpace(value)
		switch key {
		case "disabled":
			reason := value
			d.disabled = &reason
		case "goos":
			d.goos = value
		}
	}
	return d
}

func parseTypeSpec(spec *sitter.Node, content []byte) (typeDecl, bool) {
	name := spec.ChildByFieldName("name")
	typ := spec.ChildByFieldName("type")
	if name == nil || typ == nil {
		return typeDecl{}, false
	}
	td := typeDecl{
		name: name.Content(content),
		line: int(spec.StartPoint().Row) + 1,
	}
	if typ.Type() != "struct_type" {
		td.underlying = typ.Content(content)
		return td, true
	}

	td.isStruct = true
	eachDescendant(typ, "field_declaration", func(field *sitter.Node) {
		td.fields = append(td.fields, parseField(field, content))
	})
	return td, true
}

func parseField(node *sitter.Node, content []byte) fieldDecl {
	var fd fieldDecl
	pointer := false
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "field_identifier":
			fd.names = append(fd.names, child.Content(content))
		case "*":
			pointer = true
		}
	}
	if typ := node.ChildByFieldName("type"); typ != nil {
		fd.typeExpr = typ.Content(content)
	}
	if tag := node.ChildByFieldName("tag"); tag != nil {
		if raw, err := strconv.Unquote(tag.Content(content)); err == nil {
			fd.tag = raw
		}
	}
	if len(fd.names) == 0 {
		fd.embedded = true
		if pointer && !strings.HasPrefix(fd.typeExpr, "*") {
			fd.typeExpr = "*" + fd.typeExpr
		}
	}
	return fd
}

func parseMethod(node *sitter.Node, content []byte) (methodDecl, bool) {
	name := node.ChildByFieldName("name")
	recv := node.ChildByFieldName("receiver")
	if name == nil || recv == nil {
		return methodDecl{}, false
	}
	md := methodDecl{name: name.Content(content)}

	recvTypes := paramTypes(recv, content)
	if len(recvTypes) != 1 {
		return methodDecl{}, false
	}
	md.recv = strings.TrimPrefix(recvTypes[0], "*")
	// Drop type parameters: "List[T]" -> "List".
	if i := strings.IndexByte(md.recv, '['); i >= 0 {
		md.recv = md.recv[:i]
	}

	if params := node.ChildByFieldName("parameters"); params != nil {
		md.params = paramTypes(params, content)
	}
	if result := node.ChildByFieldName("result"); result != nil {
		if result.Type() == "parameter_list" {
			md.results = len(paramTypes(result, content))
		} else {
			md.results = 1
		}
	}

	if md.name == "EnumValues" {
		if body := node.ChildByFieldName("body"); body != nil {
			md.strings = stringSliceLiteral(body, content)
		}
	}
	return md, true
}

// paramTypes returns one type expression per declared parameter, so
// "(a, b int)" yields ["int", "int"].
func paramTypes(list *sitter.Node, content []byte) []string {
	var out []string
	for i := 0; i < int(list.ChildCount()); i++ {
		decl := list.Child(i)
		if decl.Type() != "parameter_declaration" && decl.Type() != "variadic_parameter_declaration" {
			continue
		}
		typ := decl.ChildByFieldName("type")
		if typ == nil {
			continue
		}
		expr := typ.Content(content)
		if decl.Type() == "variadic_parameter_declaration" {
			expr = "..." + expr
		}
		names := 0
		for j := 0; j < int(decl.ChildCount()); j++ {
			if decl.Child(j).Type() == "identifier" {
				names++
			}
		}
		for n := max(names, 1); n > 0; n-- {
			out = append(out, expr)
		}
	}
	return out
}

// parseConsts applies Go's implicit repetition: a spec without type and
// value repeats the previous spec's type.
func parseConsts(decl *sitter.Node, content []byte) []constDecl {
	var out []constDecl
	lastType := ""
	eachDescendant(decl, "const_spec", func(spec *sitter.Node) {
		typ := spec.ChildByFieldName("type")
		value := spec.ChildByFieldName("value")
		switch {
		case typ != nil:
			lastType = typ.Content(content)
		case value != nil:
			lastType = ""
		}

		var literal string
		var quoted bool
		if value != nil && value.NamedChildCount() > 0 {
			first := value.NamedChild(0)
			if first.Type() == "interpreted_string_literal" || first.Type() == "raw_string_literal" {
				if s, err := strconv.Unquote(first.Content(content)); err == nil {
					literal, quoted = s, true
				}
			}
		}

		for i := 0; i < int(spec.ChildCount()); i++ {
			if c := spec.Child(i); c.Type() == "identifier" {
				out = append(out, constDecl{
					name:    c.Content(content),
					typ:     lastType,
					literal: literal,
					quoted:  quoted,
				})
			}
		}
	})
	return out
}

// stringSliceLiteral returns the elements of the first []string composite
// literal under node.
func stringSliceLiteral(node *sitter.Node, content []byte) []string {
	var out []string
	found := false
	eachDescendant(node, "composite_literal", func(lit *sitter.Node) {
		if found {
			return
		}
		typ := lit.ChildByFieldName("type")
		if typ == nil || typ.Content(content) != "[]string" {
			return
		}
		found = true
		eachDescendant(lit, "interpreted_string_literal", func(s *sitter.Node) {
			if v, err := strconv.Unquote(s.Content(content)); err == nil {
				out = append(out, v)
			}
		})
	})
	return out
}

// eachDescendant calls fn for every descendant of n with the given type, in
// document order. It does not descend into matches.
func eachDescendant(n *sitter.Node, typ string, fn func(*sitter.Node)) {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() == typ {
			fn(child)
			continue
		}
		eachDescendant(child, typ, fn)
	}
}
