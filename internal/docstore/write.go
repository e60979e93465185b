package docstore

import (
	"context"
	"fmt"

	"github.com/roach88/docmigrate/internal/source"
	"github.com/roach88/docmigrate/internal/value"
)

// Put stores docs in collection inside a single transaction.
// New documents are appended after the collection's existing documents;
// a document with an existing id has its data replaced and keeps its seq.
func (s *Store) Put(ctx context.Context, collection string, docs []source.Document) error {
	if collection == "" {
		return fmt.Errorf("put documents: empty collection name")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (collection, id, seq, data)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM documents WHERE collection = ?), ?)
		ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("put documents into %q: document without id", collection)
		}
		data, err := value.Marshal(doc.Data)
		if err != nil {
			return fmt.Errorf("put document %s/%s: %w", collection, doc.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, collection, doc.ID, collection, string(data)); err != nil {
			return fmt.Errorf("put document %s/%s: %w", collection, doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Delete removes every document of collection and reports how many were
// removed.
func (s *Store) Delete(ctx context.Context, collection string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, collection)
	if err != nil {
		return 0, fmt.Errorf("delete collection %q: %w", collection, err)
	}
	return res.RowsAffected()
}
