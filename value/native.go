package value

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// ConversionError reports Go data that has no Value representation.
type ConversionError struct {
	Path   string // location inside the input, "$" is the root
	Type   string // Go type found at Path
	Reason string
}

func (e *ConversionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("value: cannot convert %s at %s: %s", e.Type, e.Path, e.Reason)
	}
	return fmt.Sprintf("value: cannot convert %s at %s", e.Type, e.Path)
}

// FromNative converts plain Go data into a Value. Supported inputs are nil,
// Value, *Map, booleans, integers, finite floats, strings, json.Number and
// any slice, array, pointer or string keyed map built from those. Keys of Go
// maps are visited in sorted order since Go maps carry no order of their own.
// Self-referencing input and nesting deeper than MaxDepth are reported as
// conversion errors.
func FromNative(in any) (Value, error) {
	c := converter{seen: make(map[visit]struct{})}
	return c.fromNative(in, "$")
}

// converter tracks the slices, maps and pointers on the path being
// converted.
type converter struct {
	depth int
	seen  map[visit]struct{}
}

type visit struct {
	typ reflect.Type
	ptr uintptr
	len int
}

// enter marks rv as being converted. The returned func must be called once
// its children are done.
func (c *converter) enter(rv reflect.Value, path string) (func(), error) {
	if c.depth >= MaxDepth {
		return nil, &ConversionError{Path: path, Type: rv.Type().String(), Reason: "too deeply nested"}
	}
	key := visit{typ: rv.Type(), ptr: rv.Pointer()}
	if rv.Kind() == reflect.Slice {
		key.len = rv.Len()
	}
	if _, ok := c.seen[key]; ok {
		return nil, &ConversionError{Path: path, Type: rv.Type().String(), Reason: "cycle"}
	}
	c.seen[key] = struct{}{}
	c.depth++
	return func() {
		delete(c.seen, key)
		c.depth--
	}, nil
}

func (c *converter) fromNative(in any, path string) (Value, error) {
	switch t := in.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case *Value:
		if t == nil {
			return Null(), nil
		}
		return *t, nil
	case *Map:
		if t == nil {
			return Null(), nil
		}
		return Object(t), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case float32:
		return fromFloat(float64(t), path, "float32")
	case float64:
		return fromFloat(t, path, "float64")
	case json.Number:
		v, err := decodeNumber(t)
		if err != nil {
			return Value{}, &ConversionError{Path: path, Type: "json.Number", Reason: err.Error()}
		}
		return v, nil
	case []any:
		if len(t) == 0 {
			return List(), nil
		}
		leave, err := c.enter(reflect.ValueOf(t), path)
		if err != nil {
			return Value{}, err
		}
		defer leave()
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := c.fromNative(item, indexPath(path, i))
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return listOf(items), nil
	case map[string]any:
		if t == nil {
			return Object(NewMap()), nil
		}
		leave, err := c.enter(reflect.ValueOf(t), path)
		if err != nil {
			return Value{}, err
		}
		defer leave()
		keys := make([]string, 0, len(t))
		for key := range t {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		m := NewMap()
		for _, key := range keys {
			v, err := c.fromNative(t[key], keyPath(path, key))
			if err != nil {
				return Value{}, err
			}
			m.Set(key, v)
		}
		return objectOf(m), nil
	}
	return c.fromReflect(reflect.ValueOf(in), path)
}

func (c *converter) fromReflect(rv reflect.Value, path string) (Value, error) {
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return Null(), nil
		}
		leave, err := c.enter(rv, path)
		if err != nil {
			return Value{}, err
		}
		defer leave()
		return c.fromNative(rv.Elem().Interface(), path)
	case reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return c.fromNative(rv.Elem().Interface(), path)
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Value{}, &ConversionError{Path: path, Type: rv.Type().String(), Reason: "overflows int64"}
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return fromFloat(rv.Float(), path, rv.Type().String())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Null(), nil
		}
		if rv.Kind() == reflect.Slice && rv.Len() > 0 {
			leave, err := c.enter(rv, path)
			if err != nil {
				return Value{}, err
			}
			defer leave()
		}
		items := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			v, err := c.fromNative(rv.Index(i).Interface(), indexPath(path, i))
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return listOf(items), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, &ConversionError{Path: path, Type: rv.Type().String(), Reason: "map key is not a string"}
		}
		if rv.IsNil() {
			return Null(), nil
		}
		leave, err := c.enter(rv, path)
		if err != nil {
			return Value{}, err
		}
		defer leave()
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		m := NewMap()
		for _, key := range keys {
			elem := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
			v, err := c.fromNative(elem.Interface(), keyPath(path, key))
			if err != nil {
				return Value{}, err
			}
			m.Set(key, v)
		}
		return objectOf(m), nil
	case reflect.Invalid:
		return Null(), nil
	}
	return Value{}, &ConversionError{Path: path, Type: rv.Type().String()}
}

func fromFloat(f float64, path, typ string) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, &ConversionError{Path: path, Type: typ, Reason: "not a finite number"}
	}
	return Float(f), nil
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

func keyPath(path, key string) string {
	return path + "." + key
}
