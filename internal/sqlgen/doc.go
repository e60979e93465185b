// Package sqlgen builds the PostgreSQL statements of a collection migration.
//
// Table and column names come from a validated schema.Catalog and are
// emitted unquoted. Every document-derived value goes through the encode
// package, which owns literal escaping.
//
// Statements are single-line and deterministic: the same catalog and
// documents always produce byte-identical SQL.
package sqlgen
