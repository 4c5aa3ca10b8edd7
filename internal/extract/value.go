package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Object is a decoded JSON object that keeps its keys in document order
type Object struct {
	keys   []string
	values map[string]interface{}
}

// NewObject creates an empty object
func NewObject() *Object {
	return &Object{values: make(map[string]interface{})}
}

// Set stores v under k; a repeated key keeps its first position
func (o *Object) Set(k string, v interface{}) {
	if _, ok := o.values[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.values[k] = v
}

// Get returns the value stored under k
func (o *Object) Get(k string) (interface{}, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[k]
	return v, ok
}

// Keys returns the keys in document order
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of keys
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// MarshalJSON encodes the object preserving key order
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		val, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		b.Write(val)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// UnmarshalJSON decodes a JSON object keeping its key order
func (o *Object) UnmarshalJSON(data []byte) error {
	v, err := DecodeOrdered(string(data))
	if err != nil {
		return err
	}
	obj, ok := v.(*Object)
	if !ok {
		return fmt.Errorf("expected JSON object, got %T", v)
	}
	*o = *obj
	return nil
}

// Values returns the values in key order
func (o *Object) Values() []interface{} {
	if o == nil {
		return nil
	}
	out := make([]interface{}, len(o.keys))
	for i, k := range o.keys {
		out[i] = o.values[k]
	}
	return out
}

// DecodeOrdered parses strict JSON into *Object, []interface{}, string,
// json.Number, bool or nil values
func DecodeOrdered(data string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		obj := NewObject()
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", kt)
			}
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			obj.Set(key, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		arr := []interface{}{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", delim)
	}
}

// Lookup walks v along path; string steps index objects, int steps index arrays
func Lookup(v interface{}, path ...interface{}) interface{} {
	cur := v
	for _, step := range path {
		switch s := step.(type) {
		case string:
			obj, ok := cur.(*Object)
			if !ok {
				return nil
			}
			cur, _ = obj.Get(s)
		case int:
			arr, ok := cur.([]interface{})
			if !ok || s < 0 || s >= len(arr) {
				return nil
			}
			cur = arr[s]
		default:
			return nil
		}
	}
	return cur
}

// LookupObject is Lookup narrowed to an object
func LookupObject(v interface{}, path ...interface{}) *Object {
	obj, _ := Lookup(v, path...).(*Object)
	return obj
}

// LookupString is Lookup narrowed to a string, numbers are formatted
func LookupString(v interface{}, path ...interface{}) string {
	return AsString(Lookup(v, path...))
}

// AsString returns strings as-is and numbers in their JSON form
func AsString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// AsInt64 accepts JSON numbers and decimal strings
func AsInt64(v interface{}) (int64, bool) {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return 0, false
	}
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	// float64(math.MaxInt64) rounds up to 2^63, which is already out of range
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// truthy mirrors JavaScript truthiness for decoded values
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}
