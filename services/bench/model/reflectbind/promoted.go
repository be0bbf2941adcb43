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
	"reflect"
	"runtime"
)

// promotedFrom reports whether method m of *typ is promoted from an
// embedded field, and names the embedded type it comes from.
//
// The compiler implements promoted methods with generated wrappers, which
// the runtime reports at file "<autogenerated>". A method declared on typ
// itself with a value receiver is also wrapped in the pointer method set,
// so the value method set is checked as well.
func promotedFrom(typ reflect.Type, m reflect.Method) (string, bool) {
	if !generated(m.Func) {
		return "", false
	}
	if vm, ok := typ.MethodByName(m.Name); ok && !generated(vm.Func) {
		return "", false
	}
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if !sf.Anonymous {
			continue
		}
		ft := sf.Type
		if ft.Kind() != reflect.Pointer {
			ft = reflect.PointerTo(ft)
		}
		if _, ok := ft.MethodByName(m.Name); ok {
			return qualifiedName(ft.Elem()), true
		}
	}
	return "", false
}

func generated(fn reflect.Value) bool {
	f := runtime.FuncForPC(fn.Pointer())
	if f == nil {
		return false
	}
	file, _ := f.FileLine(fn.Pointer())
	return file == "<autogenerated>"
}
