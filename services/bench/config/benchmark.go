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
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianBench/services/bench/harness"
)

// benchValidate is the validator for Benchmark, with the custom mode rules
// registered in init.
var benchValidate *validator.Validate

func init() {
	benchValidate = validator.New()
	_ = benchValidate.RegisterValidation("benchmode", validateMode)
	_ = benchValidate.RegisterValidation("warmupmode", validateWarmupMode)
}

func validateMode(fl validator.FieldLevel) bool {
	_, err := harness.ParseMode(fl.Field().String())
	return err == nil
}

func validateWarmupMode(fl validator.FieldLevel) bool {
	_, err := harness.ParseWarmupMode(fl.Field().String())
	return err == nil
}

// Benchmark is the typed view of the benchmark properties.
//
// Integer settings use -1 for "unset" and durations use 0; unset values
// fall back to harness defaults and are omitted from published metadata.
type Benchmark struct {
	Enabled bool

	Project   string
	Version   string
	PublishTo string
	ReportDir string

	WarmupIterations int           `validate:"gte=-1"`
	WarmupBatchSize  int           `validate:"gte=-1"`
	WarmupTime       time.Duration `validate:"gte=0"`
	WarmupMode       string        `validate:"omitempty,warmupmode"`

	MeasurementIterations int           `validate:"gte=-1"`
	MeasurementBatchSize  int           `validate:"gte=-1"`
	MeasurementTime       time.Duration `validate:"gte=0"`

	Mode    string        `validate:"omitempty,benchmode"`
	Timeout time.Duration `validate:"gte=0"`
	Forks   int           `validate:"gte=-1"`

	// Filter is the user name filter.
	Filter string
}

// Parse builds the typed view of p.
//
// Description:
//
//	Every property is looked up under its primary name and its aliases.
//	Integers must parse as base-10 numbers; durations are integer seconds
//	or Go duration strings ("500ms"). The result is validated.
//
// Outputs:
//
//	Benchmark - The typed settings.
//	error - *PropertyError for unparsable values, or a validation error
//	        wrapping ErrInvalidProperty.
func Parse(p Properties) (Benchmark, error) {
	var errs []error
	intOf := func(prop Property) int {
		v, err := parseInt(p.GetOrDefault(prop))
		if err != nil {
			errs = append(errs, &PropertyError{Name: prop.Name(), Value: p.GetOrDefault(prop), Err: err})
		}
		return v
	}
	durationOf := func(prop Property) time.Duration {
		v, err := ParseDuration(p.GetOrDefault(prop))
		if err != nil {
			errs = append(errs, &PropertyError{Name: prop.Name(), Value: p.GetOrDefault(prop), Err: err})
		}
		return v
	}

	enabled, err := strconv.ParseBool(p.GetOrDefault(Enabled))
	if err != nil {
		errs = append(errs, &PropertyError{Name: Enabled.Name(), Value: p.GetOrDefault(Enabled), Err: err})
		enabled = true
	}

	b := Benchmark{
		Enabled:               enabled,
		Project:               p.GetOrDefault(Project),
		Version:               p.GetOrDefault(Version),
		PublishTo:             p.GetOrDefault(PublishTo),
		ReportDir:             p.GetOrDefault(ReportDir),
		WarmupIterations:      intOf(WarmupIterations),
		WarmupBatchSize:       intOf(WarmupBatchSize),
		WarmupTime:            durationOf(WarmupTime),
		WarmupMode:            p.GetOrDefault(WarmupMode),
		MeasurementIterations: intOf(MeasurementIterations),
		MeasurementBatchSize:  intOf(MeasurementBatchSize),
		MeasurementTime:       durationOf(MeasurementTime),
		Mode:                  p.GetOrDefault(Mode),
		Timeout:               durationOf(Timeout),
		Forks:                 intOf(Forks),
		Filter:                p.GetOrDefault(Filter),
	}
	if len(errs) > 0 {
		return b, errors.Join(errs...)
	}
	return b, b.Validate()
}

// Validate checks value ranges and mode names.
func (b Benchmark) Validate() error {
	if err := benchValidate.Struct(b); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProperty, err)
	}
	return nil
}

// HarnessOptions converts the settings to harness options for the given
// include patterns. Unset values stay zero so the harness applies its
// defaults.
func (b Benchmark) HarnessOptions(includes []string) harness.Options {
	opts := harness.Options{
		Includes:              includes,
		WarmupIterations:      warmupIterations(b.WarmupIterations),
		WarmupTime:            b.WarmupTime,
		WarmupBatchSize:       max(b.WarmupBatchSize, 0),
		MeasurementIterations: max(b.MeasurementIterations, 0),
		MeasurementTime:       b.MeasurementTime,
		MeasurementBatchSize:  max(b.MeasurementBatchSize, 0),
		Forks:                 max(b.Forks, 0),
		Timeout:               b.Timeout,
	}
	if m, err := harness.ParseMode(b.Mode); err == nil {
		opts.Mode = m
	}
	if m, err := harness.ParseWarmupMode(b.WarmupMode); err == nil {
		opts.WarmupMode = m
	}
	return opts
}

// warmupIterations maps the property to harness options: unset (-1) takes
// the harness default and an explicit 0 disables warmup.
func warmupIterations(n int) int {
	switch {
	case n < 0:
		return 0
	case n == 0:
		return harness.NoWarmup
	default:
		return n
	}
}

// Metadata returns the set tuning values keyed by primary property name,
// for published results. Unset values are omitted.
func (b Benchmark) Metadata() map[string]string {
	out := make(map[string]string)
	putInt := func(prop Property, v int) {
		if v >= 0 {
			out[prop.Name()] = strconv.Itoa(v)
		}
	}
	putDuration := func(prop Property, v time.Duration) {
		if v > 0 {
			out[prop.Name()] = v.String()
		}
	}
	putString := func(prop Property, v string) {
		if v != "" {
			out[prop.Name()] = v
		}
	}

	putInt(WarmupIterations, b.WarmupIterations)
	putInt(WarmupBatchSize, b.WarmupBatchSize)
	putDuration(WarmupTime, b.WarmupTime)
	putString(WarmupMode, b.WarmupMode)
	putInt(MeasurementIterations, b.MeasurementIterations)
	putInt(MeasurementBatchSize, b.MeasurementBatchSize)
	putDuration(MeasurementTime, b.MeasurementTime)
	putString(Mode, b.Mode)
	putDuration(Timeout, b.Timeout)
	putInt(Forks, b.Forks)
	return out
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

// ParseDuration accepts integer seconds ("30") or a Go duration ("1m30s").
// Blank is zero.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("not seconds or a duration: %q", s)
	}
	return d, nil
}
