// Package source defines the document model and the stores documents are
// read from.
package source

import (
	"context"

	"github.com/roach88/docmigrate/internal/value"
)

// Document is one source document: an id plus its top-level fields.
type Document struct {
	ID   string
	Data value.Object
}

// Get returns the value of field, or value.Null{} when the document does not
// have it.
func (d Document) Get(field string) value.Value {
	return d.Data.Get(field)
}

// Source yields the documents of a collection.
type Source interface {
	// Fetch returns the documents of collection in a stable order. A limit
	// of zero or less means no limit. A collection with no documents is not
	// an error.
	Fetch(ctx context.Context, collection string, limit int) ([]Document, error)
	Close() error
}
