// Package schema holds the per-collection field mapping that drives DDL and
// DML generation.
//
// A schema maps each collection name to an ordered list of field
// definitions:
//
//	{
//	  "users": [
//	    {"source": "name", "colType": "TEXT"},
//	    {"source": "bornAt", "colType": "TIMESTAMP"},
//	    {"source": "tags", "colType": ["ARRAY", "TEXT"]},
//	    {"source": "owner", "fieldType": ["REF", "users"], "settings": ["NOT NULL"]}
//	  ]
//	}
//
// Schemas may be written as JSON, YAML or CUE. Every format keeps the
// collection order as written, and column order always follows field order.
//
// # Validation
//
// New rejects schemas that would produce unsafe or ambiguous SQL:
//
//   - E201: collection name is not an unquoted identifier
//   - E202: field definition without source
//   - E203: duplicate source within a collection
//   - E204: destination column is not an unquoted identifier
//   - E205: column named "id" or equal to another after case folding
//   - E206: malformed array colType
//   - E207: collection declared twice
//
// A Catalog is immutable once built. Accessors return copies.
package schema
