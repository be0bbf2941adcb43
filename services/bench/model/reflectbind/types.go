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
	"fmt"
	"reflect"
	"strings"

	"github.com/AleutianAI/AleutianBench/services/bench/model"
)

// EnumValuer is implemented by named types that list their own constants.
// For string kinds the constant names are the values; for integer kinds a
// constant's value is its index.
type EnumValuer interface {
	EnumValues() []string
}

type enumInfo struct {
	names []string

	// values is set for enums registered with RegisterEnum.
	values map[string]reflect.Value
}

// typeMapper maps reflect types to model types, once per type.
//
// Struct fields are only expanded for types that can act as suites or
// holders (suite types and method parameter types); field types are
// mapped shallowly.
type typeMapper struct {
	cache    map[reflect.Type]*model.Type
	expanded map[reflect.Type]bool
	enums    map[reflect.Type]*enumInfo
}

func newTypeMapper() *typeMapper {
	return &typeMapper{
		cache:    make(map[reflect.Type]*model.Type),
		expanded: make(map[reflect.Type]bool),
		enums:    make(map[reflect.Type]*enumInfo),
	}
}

// typeOf maps t and expands its fields.
func (m *typeMapper) typeOf(t reflect.Type) *model.Type {
	mt := m.shallow(t)
	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Kind() == reflect.Struct && !m.expanded[base] {
		m.expanded[base] = true
		m.fields(m.shallow(base), base)
	}
	return mt
}

// shallow maps t without expanding struct fields.
func (m *typeMapper) shallow(t reflect.Type) *model.Type {
	if mt, ok := m.cache[t]; ok {
		return mt
	}
	if t.Kind() == reflect.Pointer {
		elem := m.shallow(t.Elem())
		mt := &model.Type{Name: "*" + elem.Name, Simple: "*" + elem.Simple, Elem: elem}
		m.cache[t] = mt
		return mt
	}

	mt := &model.Type{Name: qualifiedName(t), Simple: simpleName(t)}
	if t.Kind() == reflect.Struct {
		mt.Tags |= model.TagStruct
	}
	if info, ok := m.enum(t); ok {
		mt.Tags |= model.TagEnum
		mt.Enum = info.names
	}
	m.cache[t] = mt
	return mt
}

func (m *typeMapper) fields(mt *model.Type, t reflect.Type) {
	for _, sf := range reflect.VisibleFields(t) {
		if sf.Anonymous || !sf.IsExported() {
			continue
		}
		mt.Fields = append(mt.Fields, m.field(sf))
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Anonymous {
			continue
		}
		mt.DeclaredFields = append(mt.DeclaredFields, m.field(sf))
	}
}

func (m *typeMapper) field(sf reflect.StructField) *model.Field {
	f := &model.Field{Name: sf.Name, Type: m.shallow(sf.Type)}
	if raw, ok := sf.Tag.Lookup("param"); ok {
		f.Tags |= model.TagParam
		f.Values = splitValues(raw)
	}
	return f
}

// splitValues splits a param tag. An empty tag yields one blank value.
func splitValues(raw string) []string {
	parts := strings.Split(raw, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// enum returns the enum constants of t, from RegisterEnum or EnumValuer.
func (m *typeMapper) enum(t reflect.Type) (*enumInfo, bool) {
	if info, ok := m.enums[t]; ok {
		return info, true
	}
	if t.Name() == "" || t.Kind() == reflect.Interface {
		return nil, false
	}
	var ev EnumValuer
	if v, ok := reflect.Zero(t).Interface().(EnumValuer); ok {
		ev = v
	} else if v, ok := reflect.New(t).Interface().(EnumValuer); ok {
		ev = v
	}
	if ev == nil {
		return nil, false
	}
	info := &enumInfo{names: ev.EnumValues()}
	m.enums[t] = info
	return info, true
}

// registerEnum records explicit constants for t and updates an already
// mapped model type in place.
func (m *typeMapper) registerEnum(t reflect.Type, values []reflect.Value) {
	info := &enumInfo{values: make(map[string]reflect.Value, len(values))}
	for _, v := range values {
		name := fmt.Sprint(v.Interface())
		if _, dup := info.values[name]; dup {
			continue
		}
		info.names = append(info.names, name)
		info.values[name] = v
	}
	m.enums[t] = info
	if mt, ok := m.cache[t]; ok {
		mt.Tags |= model.TagEnum
		mt.Enum = info.names
	}
}

func qualifiedName(t reflect.Type) string {
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

func simpleName(t reflect.Type) string {
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
