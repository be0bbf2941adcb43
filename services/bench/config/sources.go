// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromEnv reads properties from environment entries ("KEY=value").
//
// Keys are kept verbatim so "jmh.mbr.forks" and short aliases such as "wi"
// work as-is. Upper-snake forms of known properties are mapped to their
// primary name: JMH_MBR_WARMUP_ITERATIONS becomes
// jmh.mbr.warmup.iterations.
func FromEnv(environ []string) Properties {
	snake := make(map[string]string)
	for _, prop := range All() {
		snake[envName(prop.Name())] = prop.Name()
	}

	values := make(map[string]string)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		if name, known := snake[key]; known {
			values[name] = value
			continue
		}
		values[key] = value
	}
	return Properties{values: canonical(values)}
}

// envName returns the upper-snake environment form of a property name.
func envName(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
}

// FromYAML parses YAML and flattens nested maps with ".".
//
// Example:
//
//	jmh:
//	  mbr:
//	    warmup:
//	      iterations: 2
//	    project.version: 1.4.0
//
// yields jmh.mbr.warmup.iterations=2 and jmh.mbr.project.version=1.4.0.
func FromYAML(data []byte) (Properties, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Properties{}, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	values := make(map[string]string)
	flatten("", raw, values)
	return Properties{values: canonical(values)}, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case nil:
			out[key] = ""
		case []any:
			parts := make([]string, len(val))
			for i, item := range val {
				parts[i] = fmt.Sprint(item)
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// LoadFile reads and flattens a YAML properties file.
func LoadFile(path string) (Properties, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Properties{}, fmt.Errorf("failed to read the config file %s: %w", path, err)
	}
	p, err := FromYAML(data)
	if err != nil {
		return Properties{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
