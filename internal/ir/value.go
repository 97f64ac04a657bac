package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Value is a sealed interface over values produced by build-time
// evaluation. Only Null, String, Number, Bool, Array, Object, Function and
// StyleRef implement it.
type Value interface {
	irValue() // Sealed
}

// Null stands for both null and undefined.
type Null struct{}

func (Null) irValue() {}

// String is a string value.
type String string

func (String) irValue() {}

// Number is a JavaScript number.
type Number float64

func (Number) irValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}

// Array is an ordered list of values.
type Array []Value

func (Array) irValue() {}

// Pair is one property of an Object.
type Pair struct {
	Key   string
	Value Value
}

// Object keeps properties in insertion order. CSS declarations generated
// from an object follow that order.
type Object []Pair

func (Object) irValue() {}

// Function marks a callable value. Only its name survives evaluation.
type Function struct {
	Name string
}

func (Function) irValue() {}

// StyleRef is a value produced by another style template. It interpolates
// as a class selector.
type StyleRef struct {
	ClassName string
}

func (StyleRef) irValue() {}

// Get returns the value stored under key.
func (o Object) Get(key string) (Value, bool) {
	for _, p := range o {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// FormatNumber prints n the way JavaScript's String(n) does for the values
// that occur in stylesheets.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case n == math.Trunc(n) && math.Abs(n) < 1e21:
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// MarshalJSON keeps insertion order.
func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(p.Key)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", p.Key, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := MarshalValue(p.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", p.Key, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalValue marshals a Value to JSON. Functions encode as
// {"function": name} and style references as {"class_name": name}.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Number:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return json.Marshal(FormatNumber(f))
		}
		return json.Marshal(f)
	case Bool:
		return json.Marshal(bool(val))
	case Array:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := MarshalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case Object:
		return val.MarshalJSON()
	case Function:
		return json.Marshal(map[string]string{"function": val.Name})
	case StyleRef:
		return json.Marshal(map[string]string{"class_name": val.ClassName})
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}
