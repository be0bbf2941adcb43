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
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianBench/services/bench/model"
)

// DisabledCondition disables elements tagged model.TagDisabled.
type DisabledCondition struct{}

// Name implements Extension.
func (DisabledCondition) Name() string { return "disabled" }

// Evaluate implements Extension. A method context looks at the method only;
// the class was decided by its own context.
func (DisabledCondition) Evaluate(ctx *Context) (Result, error) {
	if ctx.Method != nil {
		if ctx.Method.Tags.Has(model.TagDisabled) {
			return Disabled(reasonOr(ctx.Method.Attributes, "method "+ctx.Element()+" is disabled")), nil
		}
		return Enabled("method is not disabled"), nil
	}
	if ctx.Class != nil && ctx.Class.Tags.Has(model.TagDisabled) {
		return Disabled(reasonOr(ctx.Class.Attributes, "class "+ctx.Element()+" is disabled")), nil
	}
	return Enabled("class is not disabled"), nil
}

func reasonOr(attrs map[string]string, fallback string) string {
	if r := strings.TrimSpace(attrs[model.AttrDisabledReason]); r != "" {
		return r
	}
	return fallback
}

// OSCondition restricts elements carrying model.AttrGOOS to the listed
// operating systems.
type OSCondition struct {
	// GOOS overrides runtime.GOOS.
	GOOS string
}

// Name implements Extension.
func (OSCondition) Name() string { return "goos" }

// Evaluate implements Extension.
func (c OSCondition) Evaluate(ctx *Context) (Result, error) {
	attrs := ctx.Class.Attributes
	if ctx.Method != nil {
		attrs = ctx.Method.Attributes
	}
	raw, ok := attrs[model.AttrGOOS]
	if !ok {
		return Enabled("no operating system restriction"), nil
	}

	var allowed []string
	for _, goos := range strings.Split(raw, ",") {
		if goos = strings.TrimSpace(goos); goos != "" {
			allowed = append(allowed, goos)
		}
	}
	if len(allowed) == 0 {
		return Result{}, fmt.Errorf("%w: empty %s on %s", ErrInvalidCondition, model.AttrGOOS, ctx.Element())
	}

	current := c.GOOS
	if current == "" {
		current = runtime.GOOS
	}
	if slices.Contains(allowed, current) {
		return Enabled("enabled on " + current), nil
	}
	return Disabled(fmt.Sprintf("Disabled on operating system: %s (runs on %s)", current, strings.Join(allowed, ", "))), nil
}

// Lookup is a read-only key/value source, such as config.Properties.
type Lookup interface {
	Lookup(key string) (string, bool)
}

// EnvironmentCondition disables elements through configuration.
//
// The keys are "disable.<class>" and "disable.<class>#<method>", where
// <class> is the qualified or simple class name. A value that parses as
// true disables the element.
type EnvironmentCondition struct {
	Values Lookup
}

// Name implements Extension.
func (EnvironmentCondition) Name() string { return "environment" }

// Evaluate implements Extension.
func (c *EnvironmentCondition) Evaluate(ctx *Context) (Result, error) {
	if c.Values == nil || ctx.Class == nil {
		return Enabled("no configuration"), nil
	}

	names := []string{ctx.Class.QualifiedName(), ctx.Class.SimpleName()}
	for _, name := range names {
		key := "disable." + name
		if ctx.Method != nil {
			key += "#" + ctx.Method.Name
		}
		raw, ok := c.Values.Lookup(key)
		if !ok {
			continue
		}
		disabled, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return Result{}, fmt.Errorf("%w: %s=%q", ErrInvalidCondition, key, raw)
		}
		if disabled {
			return Disabled(fmt.Sprintf("Disabled by configuration property '%s'", key)), nil
		}
	}
	return Enabled("not disabled by configuration"), nil
}

// MapLookup is a Lookup over a plain map.
type MapLookup map[string]string

// Lookup implements Lookup.
func (m MapLookup) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}
