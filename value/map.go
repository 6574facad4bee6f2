package value

// Map is a string keyed map that remembers insertion order.
type Map struct {
	keys   []string
	values map[string]Value
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{values: make(map[string]Value)}
}

// Set stores val under key. Replacing an existing key keeps its position.
func (m *Map) Set(key string, val Value) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = val
}

// clone returns a copy of m; the Values are shared since they are immutable.
func (m *Map) clone() *Map {
	if m == nil {
		return nil
	}
	out := &Map{
		keys:   append([]string(nil), m.keys...),
		values: make(map[string]Value, len(m.values)),
	}
	for key, val := range m.values {
		out.values[key] = val
	}
	return out
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	val, ok := m.values[key]
	return val, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Range calls fn for each entry in insertion order until fn returns false.
func (m *Map) Range(fn func(key string, val Value) bool) {
	if m == nil {
		return
	}
	for _, key := range m.keys {
		if !fn(key, m.values[key]) {
			return
		}
	}
}

// Equal reports whether both maps hold the same entries in the same order.
func (m *Map) Equal(other *Map) bool {
	if m.Len() != other.Len() {
		return false
	}
	for i, key := range m.keys {
		if other.keys[i] != key {
			return false
		}
		if !m.values[key].Equal(other.values[key]) {
			return false
		}
	}
	return true
}
