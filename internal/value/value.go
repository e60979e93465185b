package value

import (
	"fmt"
	"slices"
	"strings"
)

// Value is a sealed interface over document field values.
// Only the types in this package implement it.
type Value interface {
	docValue() // Sealed
}

// Null represents an explicit null or an absent field.
type Null struct{}

func (Null) docValue() {}

// String is a string value.
type String string

func (String) docValue() {}

// Int is an integral number that fits in int64.
type Int int64

func (Int) docValue() {}

// Float is any other number.
type Float float64

func (Float) docValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) docValue() {}

// Array is an ordered list of values.
type Array []Value

func (Array) docValue() {}

// Object is a map of string keys to values.
// Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) docValue() {}

// Timestamp marks a point in time as seconds (and nanoseconds) since the
// Unix epoch.
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

func (Timestamp) docValue() {}

// Reference points at another document by collection and id.
type Reference struct {
	Collection string
	ID         string
}

func (Reference) docValue() {}

// Token returns the stable "<collection>=<id>" form used inside JSON blobs.
func (r Reference) Token() string {
	return r.Collection + "=" + r.ID
}

// Path returns the "<collection>/<id>" document path.
func (r Reference) Path() string {
	return r.Collection + "/" + r.ID
}

// ParseReference parses a document path into a Reference.
// For nested paths ("a/x/b/y") the last two segments are used, which are the
// parent collection and the document id.
func ParseReference(path string) (Reference, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || len(parts)%2 != 0 {
		return Reference{}, fmt.Errorf("invalid document path %q: want <collection>/<id>", path)
	}
	col, id := parts[len(parts)-2], parts[len(parts)-1]
	if col == "" || id == "" {
		return Reference{}, fmt.Errorf("invalid document path %q: empty segment", path)
	}
	return Reference{Collection: col, ID: id}, nil
}

// SortedKeys returns the object's keys in byte order.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Get returns the value stored under key, or Null when the key is absent.
func (obj Object) Get(key string) Value {
	if v, ok := obj[key]; ok && v != nil {
		return v
	}
	return Null{}
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// KindOf returns a short, human-readable name for the value's type.
func KindOf(v Value) string {
	switch v.(type) {
	case nil, Null:
		return "null"
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Array:
		return "array"
	case Object:
		return "object"
	case Timestamp:
		return "timestamp"
	case Reference:
		return "reference"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// FromAny converts plain Go values (as produced by encoding/json or yaml.v3
// decoding into any) into a Value. Objects shaped like markers are converted
// the same way Decode converts them.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case uint64:
		if val > 1<<63-1 {
			return Float(val), nil
		}
		return Int(val), nil
	case float64:
		if val >= -(1<<53) && val <= 1<<53 && val == float64(int64(val)) {
			return Int(int64(val)), nil
		}
		return Float(val), nil
	case float32:
		return FromAny(float64(val))
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = conv
		}
		return promoteMarker(obj)
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
