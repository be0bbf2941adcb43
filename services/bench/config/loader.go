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
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	// Global holds the properties loaded by Load.
	Global Properties
	once   sync.Once
)

// Load reads the properties file at path into Global once, merged under
// flags and the process environment (flags win). A missing file is created
// with the defaults.
func Load(path string, flags map[string]string) error {
	var err error
	once.Do(func() {
		Global, err = Resolve(path, flags, os.Environ())
	})
	return err
}

// Resolve merges flags, environ and the file at path, in that priority.
// An empty path skips the file.
func Resolve(path string, flags map[string]string, environ []string) (Properties, error) {
	file := Empty()
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			slog.Info("creating default benchmark config", slog.String("path", path))
			if err := createDefault(path); err != nil {
				return Properties{}, err
			}
		}
		var err error
		file, err = LoadFile(path)
		if err != nil {
			return Properties{}, err
		}
	}
	return Merge(New(flags), FromEnv(environ), file), nil
}

// DefaultPath returns ~/.aleutian/bench.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".aleutian", "bench.yaml"), nil
}

// defaultFile is written on first use. Only properties with a meaningful
// default appear.
type defaultFile struct {
	JMH struct {
		MBR struct {
			Enabled bool   `yaml:"enabled"`
			Mode    string `yaml:"mode"`
			Report  struct {
				Dir string `yaml:"dir"`
			} `yaml:"report"`
		} `yaml:"mbr"`
	} `yaml:"jmh"`
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory %w", err)
	}
	var cfg defaultFile
	cfg.JMH.MBR.Enabled = true
	cfg.JMH.MBR.Mode = "avgt"
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
