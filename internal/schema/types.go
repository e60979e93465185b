package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SQLType is a destination column type tag.
type SQLType string

const (
	TypeText      SQLType = "TEXT"
	TypeBool      SQLType = "BOOL"
	TypeTimestamp SQLType = "TIMESTAMP" // date + time (UTC)
	TypeJSONB     SQLType = "JSONB"     // blob of data
	TypeArray     SQLType = "ARRAY"
)

// ColType is the declared destination type of a column: either a scalar tag
// (JSON "TEXT") or an array tuple (JSON ["ARRAY", "TEXT"]).
type ColType struct {
	Tag  SQLType
	Elem SQLType // set only for the tuple form

	tuple bool
}

// Scalar returns a scalar column type.
func Scalar(tag SQLType) *ColType {
	return &ColType{Tag: tag}
}

// ArrayOf returns an (ARRAY, elem) column type.
func ArrayOf(elem SQLType) *ColType {
	return &ColType{Tag: TypeArray, Elem: elem, tuple: true}
}

// IsArray reports whether the column type is the (ARRAY, elem) tuple.
func (c ColType) IsArray() bool {
	return c.tuple && c.Tag == TypeArray
}

// IsTuple reports whether the column type was declared in tuple form.
func (c ColType) IsTuple() bool {
	return c.tuple
}

// DDL returns the type as it appears in a column definition.
func (c ColType) DDL() string {
	if c.IsArray() {
		return string(c.Elem) + "[]"
	}
	return string(c.Tag)
}

// String renders the declared form, e.g. "TEXT" or "(ARRAY, JSONB)".
func (c ColType) String() string {
	if c.tuple {
		return fmt.Sprintf("(%s, %s)", c.Tag, c.Elem)
	}
	return string(c.Tag)
}

// UnmarshalJSON accepts "TAG" or ["TAG", "ELEM"].
func (c *ColType) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		*c = ColType{Tag: SQLType(tag)}
		return nil
	}

	var tuple []string
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("colType must be a string or [\"ARRAY\", elem]: %w", err)
	}
	if len(tuple) != 2 {
		return fmt.Errorf("colType tuple must have 2 elements, got %d", len(tuple))
	}
	*c = ColType{Tag: SQLType(tuple[0]), Elem: SQLType(tuple[1]), tuple: true}
	return nil
}

// MarshalJSON writes the declared form back.
func (c ColType) MarshalJSON() ([]byte, error) {
	if c.tuple {
		return json.Marshal([]string{string(c.Tag), string(c.Elem)})
	}
	return json.Marshal(string(c.Tag))
}

// Source-field type tags understood by the encoder.
const (
	FieldTagRef   = "REF"
	FieldTagArray = "ARRAY"
)

// FieldShape is the typing-relevant shape of a FieldType.
type FieldShape int

const (
	// ShapeInert covers every fieldType that does not affect typing.
	ShapeInert FieldShape = iota
	// ShapeRef is a single foreign-document reference.
	ShapeRef
	// ShapeRefArray is an array of foreign-document references.
	ShapeRefArray
)

func (s FieldShape) String() string {
	switch s {
	case ShapeRef:
		return "REF"
	case ShapeRefArray:
		return "(ARRAY, (REF))"
	default:
		return "inert"
	}
}

// FieldType describes the semantic shape of the source field. Recognized
// forms are "REF", ["REF", ...] and ["ARRAY", ["REF", ...]]; anything else is
// kept verbatim and treated as inert.
type FieldType struct {
	raw   json.RawMessage
	shape FieldShape
}

// RefField returns a REF field type.
func RefField() *FieldType {
	return &FieldType{raw: json.RawMessage(`["REF"]`), shape: ShapeRef}
}

// RefArrayField returns an (ARRAY, (REF)) field type.
func RefArrayField() *FieldType {
	return &FieldType{raw: json.RawMessage(`["ARRAY",["REF"]]`), shape: ShapeRefArray}
}

// Shape returns the typing-relevant shape.
func (f FieldType) Shape() FieldShape {
	return f.shape
}

// String returns the declared JSON form.
func (f FieldType) String() string {
	return string(f.raw)
}

// UnmarshalJSON keeps the raw declaration and classifies it.
func (f *FieldType) UnmarshalJSON(data []byte) error {
	var decl any
	if err := json.Unmarshal(data, &decl); err != nil {
		return fmt.Errorf("fieldType: %w", err)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return fmt.Errorf("fieldType: %w", err)
	}
	*f = FieldType{raw: json.RawMessage(compact.Bytes()), shape: classifyFieldType(decl)}
	return nil
}

// MarshalJSON writes the declaration back unchanged.
func (f FieldType) MarshalJSON() ([]byte, error) {
	if len(f.raw) == 0 {
		return []byte("null"), nil
	}
	return f.raw, nil
}

func classifyFieldType(decl any) FieldShape {
	if isRefDecl(decl) {
		return ShapeRef
	}
	tuple, ok := decl.([]any)
	if !ok || len(tuple) < 2 {
		return ShapeInert
	}
	if tag, _ := tuple[0].(string); tag != FieldTagArray {
		return ShapeInert
	}
	// Element must be a REF tuple, not a bare "REF".
	if elem, ok := tuple[1].([]any); ok && isRefDecl(elem) {
		return ShapeRefArray
	}
	return ShapeInert
}

func isRefDecl(decl any) bool {
	switch d := decl.(type) {
	case string:
		return d == FieldTagRef
	case []any:
		if len(d) == 0 {
			return false
		}
		tag, _ := d[0].(string)
		return tag == FieldTagRef
	default:
		return false
	}
}

// FieldDefinition maps one source document field to one destination column.
type FieldDefinition struct {
	Source    string     `json:"source"`
	Dest      string     `json:"dest,omitempty"`
	ColType   *ColType   `json:"colType,omitempty"`
	FieldType *FieldType `json:"fieldType,omitempty"`
	Settings  []string   `json:"settings,omitempty"`
}

// Column returns the destination column name.
func (f FieldDefinition) Column() string {
	if f.Dest != "" {
		return f.Dest
	}
	return f.Source
}

// Collection is one named entry of a schema file.
type Collection struct {
	Name   string
	Fields []FieldDefinition
}
