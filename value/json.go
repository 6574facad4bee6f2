package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ParseError reports JSON text that could not be turned into a Value.
type ParseError struct {
	Offset int64 // input offset at which decoding stopped
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("value: invalid JSON at offset %d: %v", e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MaxDepth is the deepest nesting of arrays and objects Parse accepts.
const MaxDepth = 10000

var errTooDeep = fmt.Errorf("exceeded max depth of %d", MaxDepth)

// Parse decodes JSON text into a Value. Object keys keep their document
// order. Integer literals that fit in an int64 become KindInt, every other
// number becomes KindFloat. On failure the returned Value is null and the
// error is a *ParseError.
func Parse(text []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()

	v, err := decodeValue(dec, 0)
	if err != nil {
		return Value{}, &ParseError{Offset: dec.InputOffset(), Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = errors.New("unexpected data after top-level value")
		}
		return Value{}, &ParseError{Offset: dec.InputOffset(), Err: err}
	}
	return v, nil
}

// ParseArray is Parse restricted to a top-level JSON array.
func ParseArray(text []byte) (Value, error) {
	v, err := Parse(text)
	if err != nil {
		return Value{}, err
	}
	if v.Kind() != KindList {
		return Value{}, &ParseError{Err: fmt.Errorf("expected array, found %s", v.Kind())}
	}
	return v, nil
}

func decodeValue(dec *json.Decoder, depth int) (Value, error) {
	tok, err := dec.Token()
	if err == io.EOF {
		return Value{}, io.ErrUnexpectedEOF
	}
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		if depth >= MaxDepth {
			return Value{}, errTooDeep
		}
		switch t {
		case '{':
			return decodeObject(dec, depth+1)
		case '[':
			return decodeArray(dec, depth+1)
		}
		return Value{}, fmt.Errorf("unexpected delimiter %q", t)
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return decodeNumber(t)
	case nil:
		return Null(), nil
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

func decodeObject(dec *json.Decoder, depth int) (Value, error) {
	m := NewMap()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("object key is %T, not string", tok)
		}
		val, err := decodeValue(dec, depth)
		if err != nil {
			return Value{}, err
		}
		m.Set(key, val)
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return objectOf(m), nil
}

func decodeArray(dec *json.Decoder, depth int) (Value, error) {
	items := make([]Value, 0)
	for dec.More() {
		val, err := decodeValue(dec, depth)
		if err != nil {
			return Value{}, err
		}
		items = append(items, val)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return listOf(items), nil
}

func decodeNumber(n json.Number) (Value, error) {
	if !strings.ContainsAny(n.String(), ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return Value{}, fmt.Errorf("number %s: %w", n, err)
	}
	return Float(f), nil
}

// MarshalJSON renders v as compact JSON. Map entries are written in
// insertion order. Integral floats keep a ".0" suffix so they read back as
// floats.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON replaces v with the tree decoded from data.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalJSON renders m as a JSON object in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return fmt.Errorf("value: unsupported float %v", v.f)
		}
		b, err := json.Marshal(v.f)
		if err != nil {
			return err
		}
		buf.Write(b)
		if !bytes.ContainsAny(b, ".eE") {
			buf.WriteString(".0")
		}
	case KindString:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		return v.m.encode(buf)
	default:
		return fmt.Errorf("value: unknown kind %s", v.kind)
	}
	return nil
}

func (m *Map) encode(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	var err error
	first := true
	m.Range(func(key string, val Value) bool {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		var k []byte
		if k, err = json.Marshal(key); err != nil {
			return false
		}
		buf.Write(k)
		buf.WriteByte(':')
		err = val.encode(buf)
		return err == nil
	})
	if err != nil {
		return err
	}
	buf.WriteByte('}')
	return nil
}
