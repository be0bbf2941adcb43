// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package condition decides whether a benchmark class or method runs.
//
// Extensions are evaluated in chain order (class-local first, then inherited
// from the parent registry). The first one that disables a node wins.
package condition

import (
	"fmt"

	"github.com/AleutianAI/AleutianBench/services/bench/descriptor"
	"github.com/AleutianAI/AleutianBench/services/bench/model"
)

// Result is the outcome of one condition.
type Result struct {
	Disabled bool
	Reason   string
}

// Enabled returns an enabling result.
func Enabled(reason string) Result {
	return Result{Reason: reason}
}

// Disabled returns a disabling result.
func Disabled(reason string) Result {
	return Result{Disabled: true, Reason: reason}
}

// String renders the result for logs.
func (r Result) String() string {
	state := "enabled"
	if r.Disabled {
		state = "disabled"
	}
	if r.Reason == "" {
		return state
	}
	return fmt.Sprintf("%s (%s)", state, r.Reason)
}

// Context describes the node under evaluation.
//
// A method context's Parent is the context of its class. Class is set on
// both; Method only on method contexts.
type Context struct {
	Parent *Context
	Node   *descriptor.Node
	Class  *model.Class
	Method *model.Method
}

// ClassContext returns the evaluation context of a class node.
func ClassContext(n *descriptor.Node) *Context {
	return &Context{Node: n, Class: n.Class}
}

// MethodContext returns the context of a method node under parent.
func (c *Context) MethodContext(n *descriptor.Node) *Context {
	return &Context{Parent: c, Node: n, Class: c.Class, Method: n.Method}
}

// Element returns the display name of the evaluated element.
func (c *Context) Element() string {
	if c.Method != nil {
		return c.Class.SimpleName() + "." + c.Method.Name
	}
	if c.Class != nil {
		return c.Class.SimpleName()
	}
	return ""
}

// Extension is one execution condition.
type Extension interface {
	// Name identifies the extension in logs and evaluation errors.
	Name() string

	// Evaluate decides for ctx. Returning an error does not disable the
	// node; the evaluator reports it as an *EvaluationError.
	Evaluate(ctx *Context) (Result, error)
}

// Func adapts a function to an Extension.
type Func struct {
	ID string
	Fn func(ctx *Context) (Result, error)
}

// Name implements Extension.
func (f Func) Name() string { return f.ID }

// Evaluate implements Extension.
func (f Func) Evaluate(ctx *Context) (Result, error) { return f.Fn(ctx) }
