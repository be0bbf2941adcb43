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
	"encoding"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"testing"
	"time"
	"unsafe"

	"github.com/AleutianAI/AleutianBench/services/bench/harness"
)

var durationType = reflect.TypeFor[time.Duration]()

// Prepare builds the body of one benchmark execution.
//
// Description:
//
//	Copies the suite prototype, assigns every parameter the suite declares,
//	then builds each method argument after *testing.B: pointer-to-struct
//	and struct holders are allocated, their parameters assigned and their
//	Setup hook called. Other argument types receive their zero value. The
//	returned function calls the method with the running *testing.B.
//
// Outputs:
//
//	func(*testing.B) - The benchmark body.
//	error - ErrUnknownSuite, ErrUnsupportedParam, or a holder Setup error.
func (r *Registry) Prepare(className, method string, params []harness.Param) (func(*testing.B), error) {
	r.mu.RLock()
	s, ok := r.suites[className]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSuite, className)
	}

	instance := reflect.New(s.typ)
	instance.Elem().Set(s.proto.Elem())

	fn := instance.MethodByName(method)
	if !fn.IsValid() {
		return nil, fmt.Errorf("%w: %s has no method %s", ErrUnknownSuite, className, method)
	}

	if err := r.assign(instance.Elem(), params); err != nil {
		return nil, err
	}
	if hook, ok := instance.Interface().(HolderSetup); ok {
		if err := hook.Setup(); err != nil {
			return nil, fmt.Errorf("setup %s: %w", className, err)
		}
	}

	ft := fn.Type()
	args := make([]reflect.Value, ft.NumIn())
	for i := 1; i < ft.NumIn(); i++ {
		arg, err := r.holder(ft.In(i), params)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}

	return func(b *testing.B) {
		in := slices.Clone(args)
		in[0] = reflect.ValueOf(b)
		fn.Call(in)
	}, nil
}

// holder builds one method argument.
func (r *Registry) holder(t reflect.Type, params []harness.Param) (reflect.Value, error) {
	var v, ptr reflect.Value
	switch {
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct:
		ptr = reflect.New(t.Elem())
		v = ptr
	case t.Kind() == reflect.Struct:
		ptr = reflect.New(t)
		v = ptr.Elem()
	default:
		return reflect.Zero(t), nil
	}

	if err := r.assign(ptr.Elem(), params); err != nil {
		return reflect.Value{}, err
	}
	if hook, ok := ptr.Interface().(HolderSetup); ok {
		if err := hook.Setup(); err != nil {
			return reflect.Value{}, fmt.Errorf("setup %s: %w", t, err)
		}
	}
	return v, nil
}

// assign sets every parameter that v's struct type declares.
func (r *Registry) assign(v reflect.Value, params []harness.Param) error {
	t := v.Type()
	for _, p := range params {
		sf, ok := t.FieldByName(p.Name)
		if !ok {
			continue
		}
		if _, tagged := sf.Tag.Lookup("param"); !tagged {
			continue
		}
		fv, err := v.FieldByIndexErr(sf.Index)
		if err != nil {
			return fmt.Errorf("%w: %s.%s: %v", ErrUnsupportedParam, t, p.Name, err)
		}
		if err := r.setValue(settable(fv), p.Value); err != nil {
			return fmt.Errorf("%w: %s.%s=%q: %v", ErrUnsupportedParam, t, p.Name, p.Value, err)
		}
	}
	return nil
}

// settable returns fv itself, or a writable alias for unexported fields.
func settable(fv reflect.Value) reflect.Value {
	if fv.CanSet() {
		return fv
	}
	return reflect.NewAt(fv.Type(), unsafe.Pointer(fv.UnsafeAddr())).Elem()
}

func (r *Registry) setValue(v reflect.Value, raw string) error {
	if u, ok := v.Addr().Interface().(encoding.TextUnmarshaler); ok {
		return u.UnmarshalText([]byte(raw))
	}

	r.mu.RLock()
	info, isEnum := r.types.enums[v.Type()]
	r.mu.RUnlock()
	if isEnum && info.values != nil {
		val, ok := info.values[raw]
		if !ok {
			return fmt.Errorf("unknown constant %q, want one of %v", raw, info.names)
		}
		v.Set(val)
		return nil
	}

	if v.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		v.SetInt(int64(d))
		return nil
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if isEnum {
			i := slices.Index(info.names, raw)
			if i < 0 {
				return fmt.Errorf("unknown constant %q, want one of %v", raw, info.names)
			}
			v.SetInt(int64(i))
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	default:
		return fmt.Errorf("kind %s", v.Kind())
	}
	return nil
}
