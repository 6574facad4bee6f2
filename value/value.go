// Package value holds the generic configuration tree exchanged between the
// calling layer and the widget configuration store.
//
// A Value is one of null, bool, int64, float64, string, an ordered list of
// Values or an insertion-ordered string keyed Map. Values are immutable:
// List and Object copy their arguments, and Items and Map return copies, so
// the slice or Map a Value was built from may be reused afterwards.
package value

import "fmt"

// Kind identifies which alternative a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a node of a configuration tree. The zero Value is null.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	s     string
	items []Value
	m     *Map
}

func Null() Value { return Value{} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Int(i int64) Value { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func String(s string) Value { return Value{kind: KindString, s: s} }

// List returns a list Value holding a copy of items in the given order.
func List(items ...Value) Value {
	return listOf(append([]Value{}, items...))
}

// Object returns a map Value holding a copy of m. A nil m yields an empty
// map.
func Object(m *Map) Value {
	return objectOf(m.clone())
}

// listOf and objectOf take ownership of their argument.
func listOf(items []Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, items: items}
}

func objectOf(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) Bool() bool { return v.b }
func (v Value) Int() int64 { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) Str() string { return v.s }

// Items returns a copy of the elements of a list Value, or nil for other
// kinds.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return append([]Value{}, v.items...)
}

// Len reports the number of list elements or map entries.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.items)
	case KindMap:
		return v.m.Len()
	}
	return 0
}

// Map returns a copy of the entries of a map Value, or nil for other kinds.
// Changing the copy does not affect v.
func (v Value) Map() *Map {
	if v.kind != KindMap {
		return nil
	}
	return v.m.clone()
}

// Get looks up key in a map Value.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	return v.m.Get(key)
}

// Native converts v into plain Go data: nil, bool, int64, float64, string,
// []any or map[string]any. Map key order is lost.
func (v Value) Native() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Native()
		}
		return out
	case KindMap:
		out := make(map[string]any, v.m.Len())
		v.m.Range(func(key string, val Value) bool {
			out[key] = val.Native()
			return true
		})
		return out
	}
	return nil
}

// Equal reports whether v and other hold the same tree. Map key order is
// significant.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindList:
		if len(v.items) != len(other.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return v.m.Equal(other.m)
	}
	return false
}

// String renders v as JSON text.
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid %s: %v>", v.kind, err)
	}
	return string(b)
}
