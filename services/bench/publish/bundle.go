// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package publish writes benchmark results to the destinations named by the
// publish URI list.
//
// A Bundle carries run metadata plus the harness results. Each comma
// separated URI is resolved against the registered factories; unmatched
// URIs are ignored and writer failures are logged without failing the run.
package publish

import (
	"context"
	"maps"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/host"
	"golang.org/x/sys/cpu"

	"github.com/AleutianAI/AleutianBench/services/bench/config"
	"github.com/AleutianAI/AleutianBench/services/bench/harness"
)

// Metadata describes one run.
type Metadata struct {
	RunID   string    `json:"run_id"`
	Project string    `json:"project,omitempty"`
	Version string    `json:"version,omitempty"`
	Time    time.Time `json:"time"`
	OS      string    `json:"os"`

	// Additional holds the set tuning properties plus platform details.
	Additional map[string]string `json:"additional,omitempty"`
}

// Bundle is everything a writer receives.
type Bundle struct {
	Metadata Metadata         `json:"metadata"`
	Records  []harness.Result `json:"records"`
}

// NewMetadata collects run metadata.
//
// Description:
//
//	Project and version come from settings, Additional from the set tuning
//	properties (settings.Metadata) plus "go.version", "goos", "goarch" and
//	"cpu.features". OS is the host platform as reported by gopsutil, or
//	runtime.GOOS when the host cannot be inspected.
//
// Inputs:
//
//	ctx - Bounds the host lookup.
//	settings - The run settings.
//	now - The run start time.
//
// Outputs:
//
//	Metadata - Never fails; missing details are omitted.
func NewMetadata(ctx context.Context, settings config.Benchmark, now time.Time) Metadata {
	additional := settings.Metadata()
	additional["go.version"] = runtime.Version()
	additional["goos"] = runtime.GOOS
	additional["goarch"] = runtime.GOARCH
	if features := cpuFeatures(); features != "" {
		additional["cpu.features"] = features
	}

	return Metadata{
		RunID:      uuid.NewString(),
		Project:    settings.Project,
		Version:    settings.Version,
		Time:       now,
		OS:         hostOS(ctx),
		Additional: additional,
	}
}

// hostOS renders "platform version (arch)".
func hostOS(ctx context.Context) string {
	info, err := host.InfoWithContext(ctx)
	if err != nil || info == nil || info.Platform == "" {
		return runtime.GOOS
	}
	platform := info.Platform
	if info.PlatformVersion != "" {
		platform += " " + info.PlatformVersion
	}
	if info.KernelArch != "" {
		platform += " (" + info.KernelArch + ")"
	}
	return platform
}

func cpuFeatures() string {
	var names []string
	add := func(ok bool, name string) {
		if ok {
			names = append(names, name)
		}
	}
	switch runtime.GOARCH {
	case "amd64", "386":
		add(cpu.X86.HasSSE42, "sse4.2")
		add(cpu.X86.HasAVX, "avx")
		add(cpu.X86.HasAVX2, "avx2")
		add(cpu.X86.HasAVX512F, "avx512f")
		add(cpu.X86.HasAES, "aes")
		add(cpu.X86.HasBMI2, "bmi2")
	case "arm64":
		add(cpu.ARM64.HasASIMD, "asimd")
		add(cpu.ARM64.HasAES, "aes")
		add(cpu.ARM64.HasSHA2, "sha2")
		add(cpu.ARM64.HasCRC32, "crc32")
		add(cpu.ARM64.HasATOMICS, "atomics")
	}
	return strings.Join(names, ",")
}

// env returns the record environment: "os" plus Additional.
func (m Metadata) env() map[string]string {
	out := make(map[string]string, len(m.Additional)+1)
	maps.Copy(out, m.Additional)
	out["os"] = m.OS
	return out
}
