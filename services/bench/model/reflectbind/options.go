// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reflectbind

import (
	"log/slog"

	"github.com/AleutianAI/AleutianBench/services/bench/condition"
)

// DefaultRoot is the classpath root of suites registered without WithRoot.
const DefaultRoot = "default"

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// SuiteOption configures one registered suite.
type SuiteOption func(*suiteConfig)

type suiteConfig struct {
	root            string
	conditions      []condition.Extension
	disabled        *string
	disabledMethods map[string]string
	goos            []string
}

// WithRoot places the suite under a named classpath root.
func WithRoot(root string) SuiteOption {
	return func(c *suiteConfig) {
		c.root = root
	}
}

// WithConditions attaches class-local execution conditions. They are
// evaluated before the registry-wide ones.
func WithConditions(extensions ...condition.Extension) SuiteOption {
	return func(c *suiteConfig) {
		c.conditions = append(c.conditions, extensions...)
	}
}

// Disabled marks the whole suite disabled.
func Disabled(reason string) SuiteOption {
	return func(c *suiteConfig) {
		c.disabled = &reason
	}
}

// DisabledMethod marks one benchmark method disabled.
func DisabledMethod(name, reason string) SuiteOption {
	return func(c *suiteConfig) {
		if c.disabledMethods == nil {
			c.disabledMethods = make(map[string]string)
		}
		c.disabledMethods[name] = reason
	}
}

// OnlyOn restricts the suite to the listed GOOS values.
func OnlyOn(goos ...string) SuiteOption {
	return func(c *suiteConfig) {
		c.goos = append(c.goos, goos...)
	}
}
