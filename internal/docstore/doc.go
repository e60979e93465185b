// Package docstore provides a SQLite-backed document store that can stand in
// for the source document database.
//
// Documents are stored as canonical JSON (see value.Marshal), so reference
// and timestamp markers survive a round trip. Each collection keeps its
// import order:
//
//   - Put assigns the next seq of the collection to new documents
//   - Replacing a document keeps its seq
//   - Fetch orders by seq ASC, id ASC COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package docstore
