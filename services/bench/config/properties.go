// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config reads benchmark configuration properties.
//
// Properties are flat string keys under the "jmh.mbr." prefix. Most tuning
// properties have a short alias ("wi" for "jmh.mbr.warmup.iterations").
// Sources are merged explicitly; nothing in the engine reads the process
// environment on its own.
package config

import (
	"maps"
	"slices"
	"strings"
)

// Prefix is the common property prefix.
const Prefix = "jmh.mbr."

// Property is a known configuration property.
type Property struct {
	// Names are the primary name followed by aliases.
	Names []string

	// Default is the value used when the property is unset. Empty means
	// "no default".
	Default string
}

// Name returns the primary name.
func (p Property) Name() string {
	return p.Names[0]
}

// Known properties.
var (
	Enabled   = Property{Names: []string{Prefix + "enabled"}, Default: "true"}
	Project   = Property{Names: []string{Prefix + "project"}}
	Version   = Property{Names: []string{Prefix + "project.version"}}
	PublishTo = Property{Names: []string{Prefix + "report.publishTo"}}
	ReportDir = Property{Names: []string{Prefix + "report.dir"}}

	WarmupIterations = Property{Names: []string{Prefix + "warmup.iterations", "wi"}, Default: "-1"}
	WarmupBatchSize  = Property{Names: []string{Prefix + "warmup.batchSize", "wbs"}, Default: "-1"}
	WarmupTime       = Property{Names: []string{Prefix + "warmup.time", "w"}, Default: "0"}
	WarmupMode       = Property{Names: []string{Prefix + "warmup.mode", "wm"}}

	MeasurementIterations = Property{Names: []string{Prefix + "measurement.iterations", "i"}, Default: "-1"}
	MeasurementBatchSize  = Property{Names: []string{Prefix + "measurement.batchSize", "bs"}, Default: "-1"}
	MeasurementTime       = Property{Names: []string{Prefix + "measurement.time", "r"}, Default: "0"}

	Mode    = Property{Names: []string{Prefix + "mode", "bm"}}
	Timeout = Property{Names: []string{Prefix + "timeout", "to"}, Default: "0"}
	Forks   = Property{Names: []string{Prefix + "forks", "f"}, Default: "-1"}

	// Filter narrows a run to matching classes ("Class" or "Class#method").
	Filter = Property{Names: []string{Prefix + "benchmark", "benchmark"}}
)

// All returns every known property in a stable order.
func All() []Property {
	return []Property{
		Enabled, Project, Version, PublishTo, ReportDir,
		WarmupIterations, WarmupBatchSize, WarmupTime, WarmupMode,
		MeasurementIterations, MeasurementBatchSize, MeasurementTime,
		Mode, Timeout, Forks, Filter,
	}
}

// Properties is an immutable, flat key/value view.
//
// Thread Safety: Immutable; safe for concurrent use.
type Properties struct {
	values map[string]string
}

// New returns properties holding a copy of values. Alias keys of known
// properties are folded into the primary name unless the primary name
// already has a value.
func New(values map[string]string) Properties {
	return Properties{values: canonical(maps.Clone(values))}
}

func canonical(values map[string]string) map[string]string {
	for _, prop := range All() {
		for _, alias := range prop.Names[1:] {
			v, ok := values[alias]
			if !ok {
				continue
			}
			delete(values, alias)
			if strings.TrimSpace(values[prop.Name()]) == "" && strings.TrimSpace(v) != "" {
				values[prop.Name()] = v
			}
		}
	}
	return values
}

// Empty returns properties with no values.
func Empty() Properties {
	return Properties{}
}

// Lookup returns a non-blank value for key. A key without the prefix is
// also tried with it, so "disable.X" finds "jmh.mbr.disable.X".
func (p Properties) Lookup(key string) (string, bool) {
	if v, ok := p.values[key]; ok && strings.TrimSpace(v) != "" {
		return v, true
	}
	if !strings.HasPrefix(key, Prefix) {
		if v, ok := p.values[Prefix+key]; ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}

// Get returns the value of prop under its first set name.
func (p Properties) Get(prop Property) (string, bool) {
	for _, name := range prop.Names {
		if v, ok := p.Lookup(name); ok {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// GetOrDefault returns the value of prop or its default.
func (p Properties) GetOrDefault(prop Property) string {
	if v, ok := p.Get(prop); ok {
		return v
	}
	return prop.Default
}

// IsSet reports whether prop has a value.
func (p Properties) IsSet(prop Property) bool {
	_, ok := p.Get(prop)
	return ok
}

// AsMap returns every set known property under its primary name.
func (p Properties) AsMap() map[string]string {
	out := make(map[string]string)
	for _, prop := range All() {
		if v, ok := p.Get(prop); ok {
			out[prop.Name()] = v
		}
	}
	return out
}

// Keys returns every raw key, sorted.
func (p Properties) Keys() []string {
	return slices.Sorted(maps.Keys(p.values))
}

// Len returns the number of raw keys.
func (p Properties) Len() int {
	return len(p.values)
}

// With returns a copy with key set to value.
func (p Properties) With(key, value string) Properties {
	return Merge(New(map[string]string{key: value}), p)
}

// Merge combines sources. Earlier sources win.
func Merge(sources ...Properties) Properties {
	out := make(map[string]string)
	for i := len(sources) - 1; i >= 0; i-- {
		maps.Copy(out, sources[i].values)
	}
	return Properties{values: out}
}
