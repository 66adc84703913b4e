// Package record reads and writes struct fields by their `form` tag. It
// backs instance display values, file assignment on save and SQL column
// extraction, none of which can go through a map round trip without losing
// values such as time.Time or *multipart.FileHeader.
package record

import (
	"reflect"
	"sort"
	"strings"
)

// TagName is the struct tag consulted for field names.
const TagName = "form"

// Field is one exported struct field resolved to its form name.
type Field struct {
	Name  string
	Value reflect.Value
}

// Fields lists the exported fields of the struct behind v in declaration
// order. Fields tagged "-" are skipped; untagged fields use the Go name.
// A map[string]any yields its entries sorted by key. Other values yield nil.
func Fields(v any) []Field {
	if m, ok := v.(map[string]any); ok {
		return mapFields(m)
	}
	rv := indirect(reflect.ValueOf(v))
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil
	}
	typ := rv.Type()
	out := make([]Field, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := tagName(sf)
		if name == "-" {
			continue
		}
		out = append(out, Field{Name: name, Value: rv.Field(i)})
	}
	return out
}

// Lookup returns the value of the field named name. Maps are read by key;
// structs match the form tag first and then the Go field name, ignoring
// case.
func Lookup(v any, name string) (any, bool) {
	if v == nil || name == "" {
		return nil, false
	}
	if m, ok := v.(map[string]any); ok {
		value, found := m[name]
		return value, found
	}
	field, ok := find(reflect.ValueOf(v), name)
	if !ok {
		return nil, false
	}
	return field.Interface(), true
}

// Assign sets the named field on the struct pointed to by target when value
// is assignable to it, or the key of a map[string]any. It reports whether
// the field was written.
func Assign(target any, name string, value any) bool {
	if m, ok := target.(map[string]any); ok {
		if m == nil || name == "" {
			return false
		}
		m[name] = value
		return true
	}
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return false
	}
	field, ok := find(rv, name)
	if !ok || !field.CanSet() {
		return false
	}
	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return true
	}
	val := reflect.ValueOf(value)
	switch {
	case val.Type().AssignableTo(field.Type()):
		field.Set(val)
	case val.Kind() == reflect.Pointer && !val.IsNil() && val.Elem().Type().AssignableTo(field.Type()):
		field.Set(val.Elem())
	default:
		return false
	}
	return true
}

func find(rv reflect.Value, name string) (reflect.Value, bool) {
	rv = indirect(rv)
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	typ := rv.Type()
	fallback := -1
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := tagName(sf)
		if tag == "-" {
			continue
		}
		if tag == name {
			return rv.Field(i), true
		}
		if fallback < 0 && (strings.EqualFold(tag, name) || strings.EqualFold(sf.Name, name)) {
			fallback = i
		}
	}
	if fallback >= 0 {
		return rv.Field(fallback), true
	}
	return reflect.Value{}, false
}

func tagName(sf reflect.StructField) string {
	tag := sf.Tag.Get(TagName)
	if idx := strings.Index(tag, ","); idx >= 0 {
		tag = tag[:idx]
	}
	if tag == "" {
		return sf.Name
	}
	return tag
}

func indirect(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

func mapFields(m map[string]any) []Field {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]Field, 0, len(keys))
	for _, key := range keys {
		value := m[key]
		out = append(out, Field{Name: key, Value: reflect.ValueOf(&value).Elem()})
	}
	return out
}

// Clone returns a deep copy of v. Pointers, maps, slices, interfaces and
// exported struct fields are copied so writes through the copy never reach
// v; unexported fields are copied by value. Cyclic values are not
// supported.
func Clone(v any) any {
	if v == nil {
		return nil
	}
	return cloneValue(reflect.ValueOf(v)).Interface()
}

func cloneValue(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Elem().Type())
		out.Elem().Set(cloneValue(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(cloneValue(v.Elem()))
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneValue(v.Index(i)))
		}
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if field := out.Field(i); field.CanSet() {
				field.Set(cloneValue(v.Field(i)))
			}
		}
		return out
	default:
		return v
	}
}
