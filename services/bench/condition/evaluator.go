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
	"log/slog"
)

// enabledByDefault is returned when no extension disables the node.
var enabledByDefault = Enabled("No 'disabled' conditions encountered")

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithLogger sets the evaluator's logger.
func WithLogger(logger *slog.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Evaluator runs a chain of extensions against one node.
//
// Thread Safety: Stateless; safe for concurrent use.
type Evaluator struct {
	logger *slog.Logger
}

// NewEvaluator returns an Evaluator.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns the first disabling result of chain.
//
// Description:
//
//	Extensions run in chain order. The first Disabled result is returned
//	and later extensions are not invoked. If none disables the node the
//	result is Enabled("No 'disabled' conditions encountered").
//
// Inputs:
//
//	chain - Extensions in evaluation order, usually Registry.Chain().
//	ctx - The node under evaluation.
//
// Outputs:
//
//	Result - The deciding result.
//	error - *EvaluationError if an extension failed. Evaluation stops at
//	        the failing extension.
func (e *Evaluator) Evaluate(chain []Extension, ctx *Context) (Result, error) {
	for _, ext := range chain {
		result, err := ext.Evaluate(ctx)
		if err != nil {
			return Result{}, &EvaluationError{Extension: ext.Name(), Err: err}
		}
		e.logger.Debug("condition evaluated",
			slog.String("condition", ext.Name()),
			slog.String("element", ctx.Element()),
			slog.String("result", result.String()))
		if result.Disabled {
			return result, nil
		}
	}
	return enabledByDefault, nil
}
