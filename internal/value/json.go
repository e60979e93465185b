package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Wire keys for markers embedded in JSON documents.
const (
	RefKey         = "__ref__"
	SecondsKey     = "_seconds"
	NanosecondsKey = "_nanoseconds"
)

// Decode parses a single JSON value into a Value.
//
// Objects of the form {"__ref__": "<collection>/<id>"} become Reference.
// Objects whose keys are "_seconds" (integer) and optionally "_nanoseconds"
// become Timestamp. Integers that fit in int64 become Int, other numbers Float.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return fromJSON(raw)
}

// DecodeObject parses a JSON object into an Object.
func DecodeObject(data []byte) (Object, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	switch obj := v.(type) {
	case Object:
		return obj, nil
	case Null:
		return Object{}, nil
	default:
		return nil, fmt.Errorf("expected JSON object, got %s", KindOf(v))
	}
}

func fromJSON(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		return fromNumber(val)
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			conv, err := fromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			conv, err := fromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = conv
		}
		return promoteMarker(obj)
	default:
		return nil, fmt.Errorf("unsupported JSON type: %T", v)
	}
}

func fromNumber(n json.Number) (Value, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %s: %w", s, err)
	}
	return Float(f), nil
}

// promoteMarker turns marker-shaped objects into Reference or Timestamp.
// Other objects are returned unchanged.
func promoteMarker(obj Object) (Value, error) {
	if raw, ok := obj[RefKey]; ok && len(obj) == 1 {
		path, ok := raw.(String)
		if !ok {
			return nil, fmt.Errorf("%s must be a string document path, got %s", RefKey, KindOf(raw))
		}
		return ParseReference(string(path))
	}

	secs, ok := obj[SecondsKey]
	if !ok {
		return obj, nil
	}
	for k := range obj {
		if k != SecondsKey && k != NanosecondsKey {
			return obj, nil
		}
	}
	s, ok := secs.(Int)
	if !ok {
		return obj, nil
	}
	ts := Timestamp{Seconds: int64(s)}
	if raw, ok := obj[NanosecondsKey]; ok {
		n, ok := raw.(Int)
		if !ok || n < 0 || n > 999_999_999 {
			return obj, nil
		}
		ts.Nanos = int32(n)
	}
	return ts, nil
}

// Marshal renders v as JSON. Object keys are sorted, HTML characters are not
// escaped, and markers are written back in their wire form, so
// Decode(Marshal(v)) reproduces v.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case String:
		return writeString(buf, string(val))
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("cannot encode %v as JSON", f)
		}
		b, err := json.Marshal(f)
		if err != nil {
			return err
		}
		buf.Write(b)
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeJSON(buf, val[k]); err != nil {
				return fmt.Errorf("object[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
	case Timestamp:
		fmt.Fprintf(buf, `{"%s":%d,"%s":%d}`, NanosecondsKey, val.Nanos, SecondsKey, val.Seconds)
	case Reference:
		buf.WriteString(`{"` + RefKey + `":`)
		if err := writeString(buf, val.Path()); err != nil {
			return err
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown value type: %T", v)
	}
	return nil
}

// writeString writes s as a JSON string without HTML escaping.
func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// json.Encoder adds a trailing newline
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}
