// Package encode turns document values into PostgreSQL literal expressions.
//
// Encoding is driven by an ordered rule list (see Rules). The first rule
// whose predicate matches a field definition renders the value; when no rule
// matches, Encode fails with *UnmappableFieldError. Rules never fail on a
// type-mismatched value: TEXT columns fall back to '' and every other scalar
// column falls back to null.
//
// References are rewritten by Resolve before any value is serialized into a
// JSON blob, so JSONB payloads carry "<collection>=<id>" tokens instead of
// reference markers.
package encode
