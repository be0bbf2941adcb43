// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package samples holds benchmark suites that ship with the bench CLI.
//
// They exercise every discovery shape: a plain method, a suite-level
// parameter, a holder parameter, enum expansion, a disabled method, an
// OS-restricted suite and a suite whose setup can skip it.
package samples

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"strings"
	"testing"

	gojson "github.com/goccy/go-json"

	"github.com/AleutianAI/AleutianBench/services/bench/model"
	"github.com/AleutianAI/AleutianBench/services/bench/model/reflectbind"
)

func init() {
	if err := Register(reflectbind.Default); err != nil {
		panic(err)
	}
}

// Register adds every sample suite to r.
func Register(r *reflectbind.Registry) error {
	reflectbind.RegisterEnum(r, CodecJSON, CodecGob)

	suites := []struct {
		suite any
		opts  []reflectbind.SuiteOption
	}{
		{suite: &StringsSuite{}},
		{suite: &EncodingSuite{}, opts: []reflectbind.SuiteOption{
			reflectbind.DisabledMethod("BenchmarkDecodeLarge", "allocates too much for CI"),
		}},
		{suite: &PageCacheSuite{}, opts: []reflectbind.SuiteOption{reflectbind.OnlyOn("linux")}},
		{suite: &FixtureSuite{}},
	}
	for _, s := range suites {
		if err := r.Register(s.suite, s.opts...); err != nil {
			return fmt.Errorf("register sample: %w", err)
		}
	}
	return nil
}

// StringsSuite compares string building strategies.
type StringsSuite struct {
	Parts int `param:"4,64"`
}

func (s *StringsSuite) BenchmarkConcat(b *testing.B) {
	for i := 0; i < b.N; i++ {
		var out string
		for j := 0; j < s.Parts; j++ {
			out += "x"
		}
		_ = out
	}
}

func (s *StringsSuite) BenchmarkBuilder(b *testing.B) {
	for i := 0; i < b.N; i++ {
		var sb strings.Builder
		for j := 0; j < s.Parts; j++ {
			sb.WriteByte('x')
		}
		_ = sb.String()
	}
}

// Codec selects an encoding.
type Codec int

const (
	CodecJSON Codec = iota
	CodecGob
)

func (c Codec) String() string {
	switch c {
	case CodecJSON:
		return "json"
	case CodecGob:
		return "gob"
	default:
		return fmt.Sprintf("Codec(%d)", int(c))
	}
}

// Payload is a parameter holder for the encoding suite.
type Payload struct {
	Items int `param:"10,1000"`

	record []Record
}

// Record is the encoded element.
type Record struct {
	ID    int
	Name  string
	Score float64
}

// Setup builds the payload after Items was assigned.
func (p *Payload) Setup() error {
	p.record = make([]Record, p.Items)
	for i := range p.record {
		p.record[i] = Record{ID: i, Name: fmt.Sprintf("record-%d", i), Score: float64(i) / 3}
	}
	return nil
}

// EncodingSuite measures encoders across codecs and payload sizes.
type EncodingSuite struct {
	Codec Codec `param:""`
}

func (s *EncodingSuite) encode(records []Record) ([]byte, error) {
	switch s.Codec {
	case CodecGob:
		var buf bytes.Buffer
		err := gob.NewEncoder(&buf).Encode(records)
		return buf.Bytes(), err
	default:
		return gojson.Marshal(records)
	}
}

func (s *EncodingSuite) BenchmarkEncode(b *testing.B, p *Payload) {
	for i := 0; i < b.N; i++ {
		if _, err := s.encode(p.record); err != nil {
			b.Fatal(err)
		}
	}
}

func (s *EncodingSuite) BenchmarkDecodeLarge(b *testing.B, p *Payload) {
	data, err := s.encode(p.record)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var out []Record
		switch s.Codec {
		case CodecGob:
			err = gob.NewDecoder(bytes.NewReader(data)).Decode(&out)
		default:
			err = gojson.Unmarshal(data, &out)
		}
		if err != nil {
			b.Fatal(err)
		}
	}
}

// PageCacheSuite reads a procfs file and only runs on Linux.
type PageCacheSuite struct{}

func (s *PageCacheSuite) BenchmarkReadMeminfo(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := os.ReadFile("/proc/meminfo"); err != nil {
			b.Fatal(err)
		}
	}
}

// FixtureEnv names the environment variable that must point at a readable
// file for FixtureSuite to run.
const FixtureEnv = "BENCH_FIXTURE_FILE"

// FixtureSuite hashes an external fixture file. It is skipped when the
// file is not configured.
type FixtureSuite struct {
	data []byte
}

// SetupSuite loads the fixture named by FixtureEnv.
func (s *FixtureSuite) SetupSuite() error {
	path := os.Getenv(FixtureEnv)
	if path == "" {
		return fmt.Errorf("%w: %s is not set", model.ErrAssumption, FixtureEnv)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	s.data = data
	return nil
}

// TeardownSuite releases the fixture.
func (s *FixtureSuite) TeardownSuite() error {
	s.data = nil
	return nil
}

func (s *FixtureSuite) BenchmarkChecksum(b *testing.B) {
	for i := 0; i < b.N; i++ {
		var sum byte
		for _, c := range s.data {
			sum ^= c
		}
		_ = sum
	}
}
