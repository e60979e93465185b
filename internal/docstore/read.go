package docstore

import (
	"context"
	"fmt"

	"github.com/roach88/docmigrate/internal/source"
	"github.com/roach88/docmigrate/internal/value"
)

// Fetch returns the documents of collection in import order.
// A limit of zero or less returns every document.
func (s *Store) Fetch(ctx context.Context, collection string, limit int) ([]source.Document, error) {
	query := `
		SELECT id, data
		FROM documents
		WHERE collection = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`
	args := []any{collection}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []source.Document
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		obj, err := value.DecodeObject([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("decode document %s/%s: %w", collection, id, err)
		}
		docs = append(docs, source.Document{ID: id, Data: obj})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// CollectionCount is the number of documents stored for one collection.
type CollectionCount struct {
	Collection string `json:"collection"`
	Documents  int    `json:"documents"`
}

// Collections returns every collection with its document count, sorted by
// name.
func (s *Store) Collections(ctx context.Context) ([]CollectionCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, COUNT(*)
		FROM documents
		GROUP BY collection
		ORDER BY collection COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	var out []CollectionCount
	for rows.Next() {
		var c CollectionCount
		if err := rows.Scan(&c.Collection, &c.Documents); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return out, nil
}
