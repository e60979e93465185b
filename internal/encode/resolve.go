package encode

import (
	"errors"

	"github.com/roach88/docmigrate/internal/value"
)

// MaxResolveDepth bounds how deeply Resolve descends into nested arrays and
// objects. Documents are expected to be acyclic.
const MaxResolveDepth = 512

// ErrDepthExceeded is returned when a value nests deeper than
// MaxResolveDepth.
var ErrDepthExceeded = errors.New("value nesting exceeds maximum depth")

// Resolve rewrites every Reference in v to the string "<collection>=<id>".
// Arrays and objects are copied with all elements and keys kept; every other
// value, timestamps included, is returned unchanged.
func Resolve(v value.Value) (value.Value, error) {
	return resolve(v, 0)
}

func resolve(v value.Value, depth int) (value.Value, error) {
	if depth > MaxResolveDepth {
		return nil, ErrDepthExceeded
	}

	switch val := v.(type) {
	case value.Reference:
		return value.String(val.Token()), nil
	case value.Array:
		out := make(value.Array, len(val))
		for i, elem := range val {
			r, err := resolve(elem, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case value.Object:
		out := make(value.Object, len(val))
		for k, elem := range val {
			r, err := resolve(elem, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	default:
		return v, nil
	}
}
