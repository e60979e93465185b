package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Catalog maps collection names to their ordered field definitions.
// A Catalog is built once and never mutated; accessors return copies.
type Catalog struct {
	names  []string
	fields map[string][]FieldDefinition
}

// New validates the collections and builds a Catalog.
// Collection order is preserved as given.
func New(collections []Collection) (*Catalog, error) {
	if errs := Validate(collections); len(errs) > 0 {
		return nil, errs
	}

	c := &Catalog{
		names:  make([]string, 0, len(collections)),
		fields: make(map[string][]FieldDefinition, len(collections)),
	}
	for _, col := range collections {
		c.names = append(c.names, col.Name)
		c.fields[col.Name] = cloneFields(col.Fields)
	}
	return c, nil
}

// SchemaFor returns the field definitions of a collection in schema order.
func (c *Catalog) SchemaFor(collection string) ([]FieldDefinition, error) {
	fields, ok := c.fields[collection]
	if !ok {
		return nil, &UnknownCollectionError{Collection: collection}
	}
	return cloneFields(fields), nil
}

// CollectionNames returns all collection names in load order.
func (c *Catalog) CollectionNames() []string {
	return slices.Clone(c.names)
}

// Has reports whether the collection is defined.
func (c *Catalog) Has(collection string) bool {
	_, ok := c.fields[collection]
	return ok
}

// Collections returns every collection with its fields, in load order.
func (c *Catalog) Collections() []Collection {
	out := make([]Collection, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, Collection{Name: name, Fields: cloneFields(c.fields[name])})
	}
	return out
}

// MarshalJSON renders the catalog as a JSON object keyed by collection, in
// load order.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range c.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		fields := c.fields[name]
		if fields == nil {
			fields = []FieldDefinition{}
		}
		val, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("collection %q: %w", name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func cloneFields(fields []FieldDefinition) []FieldDefinition {
	out := make([]FieldDefinition, len(fields))
	for i, f := range fields {
		out[i] = f
		out[i].Settings = slices.Clone(f.Settings)
		if f.ColType != nil {
			ct := *f.ColType
			out[i].ColType = &ct
		}
		if f.FieldType != nil {
			ft := *f.FieldType
			ft.raw = slices.Clone(f.FieldType.raw)
			out[i].FieldType = &ft
		}
	}
	return out
}

// UnknownCollectionError is returned when a collection has no schema entry.
type UnknownCollectionError struct {
	Collection string
}

func (e *UnknownCollectionError) Error() string {
	return fmt.Sprintf("cannot get schema for collection %q: not defined", e.Collection)
}

// IsUnknownCollection reports whether err is (or wraps) an
// UnknownCollectionError.
func IsUnknownCollection(err error) bool {
	var uc *UnknownCollectionError
	return errors.As(err, &uc)
}
