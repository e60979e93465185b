// Package value provides the tagged value type used for document fields.
//
// Every field read from a document store is decoded into a Value before any
// encoding happens. Value is a sealed interface:
//
//   - Null, String, Int, Float, Bool for scalars
//   - Array and Object for nested structures
//   - Timestamp for point-in-time markers (epoch seconds + nanos)
//   - Reference for foreign-document markers (collection + id)
//
// Consumers dispatch with a type switch; there is no duck-typed probing of
// map keys after decoding. Markers are recognized exactly once, in Decode.
package value
