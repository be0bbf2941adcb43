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
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianBench/services/bench/descriptor"
)

// Selector names what to discover. The concrete types below are the only
// implementations.
type Selector interface {
	fmt.Stringer
	selector()
}

// ClasspathRootSelector selects every benchmark class under a root. An empty
// Root selects every root.
type ClasspathRootSelector struct {
	Root string `json:"root"`
}

// PackageSelector selects every benchmark class in one import path.
type PackageSelector struct {
	Package string `json:"package"`
}

// ClassSelector selects one class by qualified name.
type ClassSelector struct {
	ClassName string `json:"class"`
}

// MethodSelector selects one method of a class. ParamTypes narrows
// overloads by qualified parameter type names; nil matches any.
type MethodSelector struct {
	ClassName  string   `json:"class"`
	MethodName string   `json:"method"`
	ParamTypes []string `json:"param_types,omitempty"`
}

// UniqueIDSelector selects the node named by a unique id.
type UniqueIDSelector struct {
	ID descriptor.UniqueID `json:"id"`
}

func (ClasspathRootSelector) selector() {}
func (PackageSelector) selector()       {}
func (ClassSelector) selector()         {}
func (MethodSelector) selector()        {}
func (UniqueIDSelector) selector()      {}

func (s ClasspathRootSelector) String() string { return "root:" + s.Root }
func (s PackageSelector) String() string       { return "package:" + s.Package }
func (s ClassSelector) String() string         { return "class:" + s.ClassName }
func (s UniqueIDSelector) String() string      { return "uid:" + s.ID.String() }

func (s MethodSelector) String() string {
	if s.ParamTypes == nil {
		return "method:" + s.ClassName + "#" + s.MethodName
	}
	return "method:" + s.ClassName + "#" + s.MethodName + "(" + strings.Join(s.ParamTypes, ", ") + ")"
}

// ParseSelector parses the textual form used by the CLI and HTTP API:
//
//	root:<dir>            package:<import path>     class:<qualified name>
//	method:<class>#<name> uid:<unique id>
//
// A bare argument without a prefix is treated as a class name, or as a
// method selector when it contains '#'.
func ParseSelector(s string) (Selector, error) {
	prefix, rest, ok := strings.Cut(s, ":")
	if !ok || strings.HasPrefix(s, "[") {
		prefix, rest = "", s
	}

	switch prefix {
	case "root":
		return ClasspathRootSelector{Root: rest}, nil
	case "package":
		if rest == "" {
			return nil, fmt.Errorf("%w: empty package in %q", ErrInvalidSelector, s)
		}
		return PackageSelector{Package: rest}, nil
	case "class":
		if rest == "" {
			return nil, fmt.Errorf("%w: empty class in %q", ErrInvalidSelector, s)
		}
		return ClassSelector{ClassName: rest}, nil
	case "method":
		return parseMethodSelector(rest, s)
	case "uid":
		id, err := descriptor.ParseUniqueID(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSelector, err)
		}
		return UniqueIDSelector{ID: id}, nil
	case "":
		if strings.HasPrefix(rest, "[") {
			id, err := descriptor.ParseUniqueID(rest)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidSelector, err)
			}
			return UniqueIDSelector{ID: id}, nil
		}
		if strings.Contains(rest, "#") {
			return parseMethodSelector(rest, s)
		}
		if rest == "" {
			return nil, fmt.Errorf("%w: empty selector", ErrInvalidSelector)
		}
		return ClassSelector{ClassName: rest}, nil
	default:
		// Qualified names may contain ':' only in pathological cases; treat
		// an unknown prefix as part of a class name.
		return ClassSelector{ClassName: s}, nil
	}
}

func parseMethodSelector(rest, original string) (Selector, error) {
	class, method, ok := strings.Cut(rest, "#")
	if !ok || class == "" || method == "" {
		return nil, fmt.Errorf("%w: want <class>#<method>, got %q", ErrInvalidSelector, original)
	}
	sel := MethodSelector{ClassName: class, MethodName: method}
	if open := strings.Index(method, "("); open >= 0 && strings.HasSuffix(method, ")") {
		sel.MethodName = method[:open]
		sel.ParamTypes = []string{}
		if inner := method[open+1 : len(method)-1]; strings.TrimSpace(inner) != "" {
			for _, p := range strings.Split(inner, ",") {
				sel.ParamTypes = append(sel.ParamTypes, strings.TrimSpace(p))
			}
		}
	}
	return sel, nil
}
