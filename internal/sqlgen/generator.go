package sqlgen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/docmigrate/internal/encode"
	"github.com/roach88/docmigrate/internal/schema"
	"github.com/roach88/docmigrate/internal/source"
)

// ErrNoRows is returned by InsertStatement.SQL when there are no documents.
// PostgreSQL rejects an INSERT with an empty VALUES list.
var ErrNoRows = errors.New("insert statement has no rows")

// Generator builds DDL and DML from a schema catalog.
type Generator struct {
	catalog *schema.Catalog
}

// NewGenerator creates a Generator over catalog.
func NewGenerator(catalog *schema.Catalog) *Generator {
	return &Generator{catalog: catalog}
}

// CreateTable returns the CREATE TABLE IF NOT EXISTS statement for
// collection. The id primary key always comes first, then one column per
// field definition in schema order.
func (g *Generator) CreateTable(collection string) (string, error) {
	fields, err := g.catalog.SchemaFor(collection)
	if err != nil {
		return "", err
	}

	specs := make([]string, 0, len(fields)+1)
	specs = append(specs, schema.ReservedColumn+" TEXT PRIMARY KEY")
	for _, def := range fields {
		specs = append(specs, ColumnSpec(def))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", collection, strings.Join(specs, ", ")), nil
}

// ColumnSpec renders one column definition: name, type, then settings.
// The type comes from colType when present, otherwise from a REF or
// (ARRAY, (REF)) fieldType. A definition with neither gets no type.
func ColumnSpec(def schema.FieldDefinition) string {
	parts := []string{def.Column()}

	switch {
	case def.ColType != nil:
		parts = append(parts, def.ColType.DDL())
	case def.FieldType != nil && def.FieldType.Shape() == schema.ShapeRef:
		parts = append(parts, string(schema.TypeText))
	case def.FieldType != nil && def.FieldType.Shape() == schema.ShapeRefArray:
		parts = append(parts, string(schema.TypeText)+"[]")
	}

	// always last
	parts = append(parts, def.Settings...)
	return strings.Join(parts, " ")
}

// InsertStatement is a multi-row INSERT kept in parts so that callers can
// preview the header and individual rows.
type InsertStatement struct {
	Table   string
	Columns []string
	Rows    [][]string
}

// Header returns "INSERT INTO <table> (<columns>) VALUES".
func (s *InsertStatement) Header() string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES", s.Table, strings.Join(s.Columns, ", "))
}

// Row returns the i-th value tuple, parenthesized.
func (s *InsertStatement) Row(i int) string {
	return "(" + strings.Join(s.Rows[i], ", ") + ")"
}

// SQL returns the complete statement.
func (s *InsertStatement) SQL() (string, error) {
	if len(s.Rows) == 0 {
		return "", ErrNoRows
	}
	rows := make([]string, len(s.Rows))
	for i := range s.Rows {
		rows[i] = s.Row(i)
	}
	return s.Header() + " " + strings.Join(rows, ", "), nil
}

// Insert builds the INSERT for docs. Documents keep their input order and
// every row has one value per column; fields a document lacks are encoded
// as absent values.
func (g *Generator) Insert(collection string, docs []source.Document) (*InsertStatement, error) {
	fields, err := g.catalog.SchemaFor(collection)
	if err != nil {
		return nil, err
	}

	stmt := &InsertStatement{
		Table:   collection,
		Columns: make([]string, 0, len(fields)+1),
		Rows:    make([][]string, 0, len(docs)),
	}
	stmt.Columns = append(stmt.Columns, schema.ReservedColumn)
	for _, def := range fields {
		stmt.Columns = append(stmt.Columns, def.Column())
	}

	for _, doc := range docs {
		row := make([]string, 0, len(stmt.Columns))
		row = append(row, encode.Literal(doc.ID))
		for _, def := range fields {
			lit, err := encode.Encode(def, doc.Get(def.Source))
			if err != nil {
				return nil, withDocument(err, collection, doc.ID)
			}
			row = append(row, lit)
		}
		stmt.Rows = append(stmt.Rows, row)
	}
	return stmt, nil
}

func withDocument(err error, collection, id string) error {
	var ue *encode.UnmappableFieldError
	if errors.As(err, &ue) {
		ue.Collection = collection
		ue.Document = id
		return ue
	}
	return fmt.Errorf("collection %q document %q: %w", collection, id, err)
}

// Bulk-load toggles run around the insert of each collection.

// SetUnlogged skips WAL writes for the table during the load.
func SetUnlogged(table string) string { return "ALTER TABLE " + table + " SET UNLOGGED" }

// DisableTriggers suspends every trigger on the table.
func DisableTriggers(table string) string { return "ALTER TABLE " + table + " DISABLE TRIGGER ALL" }

// SetLogged restores WAL logging.
func SetLogged(table string) string { return "ALTER TABLE " + table + " SET LOGGED" }

// EnableTriggers restores triggers.
func EnableTriggers(table string) string { return "ALTER TABLE " + table + " ENABLE TRIGGER ALL" }
