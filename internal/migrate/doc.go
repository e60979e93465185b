// Package migrate drives a collection-by-collection migration from a
// document source into PostgreSQL.
//
// For each selected collection, strictly in order:
//
//  1. CREATE TABLE IF NOT EXISTS (idempotent)
//  2. fetch documents from the source
//  3. if there are documents: SET UNLOGGED, DISABLE TRIGGER ALL, one
//     multi-row INSERT, SET LOGGED, ENABLE TRIGGER ALL
//  4. mark the collection processed
//
// The first error stops the run. Nothing is rolled back; instead the
// returned *RunError partitions the selection into processed collections
// and remaining ones (the failed collection included). Re-running with
// only the remaining collections resumes the migration, provided the failed
// collection's table is dropped or empty first.
//
// Under dry run every statement is generated and may be previewed, but none
// is executed and no executor is needed.
package migrate
