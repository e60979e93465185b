package encode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/docmigrate/internal/schema"
	"github.com/roach88/docmigrate/internal/value"
)

// Rule is one entry of the ordered encoding policy.
type Rule struct {
	// Name identifies the rule in lint output and tests.
	Name string
	// Matches reports whether the rule handles the definition. It looks
	// only at the definition, never at the value.
	Matches func(def schema.FieldDefinition) bool
	// Render produces the SQL expression for v.
	Render func(v value.Value) (string, error)
}

var rules = []Rule{
	{Name: "array-text", Matches: arrayOf(schema.TypeText), Render: renderTextArray},
	{Name: "array-jsonb", Matches: arrayOf(schema.TypeJSONB), Render: renderJSONBArray},
	{Name: "text", Matches: scalar(schema.TypeText), Render: renderText},
	{Name: "timestamp", Matches: scalar(schema.TypeTimestamp), Render: renderTimestamp},
	{Name: "bool", Matches: scalar(schema.TypeBool), Render: renderBool},
	{Name: "jsonb", Matches: scalar(schema.TypeJSONB), Render: renderJSONB},
	{Name: "ref", Matches: fieldShape(schema.ShapeRef), Render: renderRef},
	{Name: "ref-array", Matches: fieldShape(schema.ShapeRefArray), Render: renderRefArray},
}

// Rules returns the encoding rules in priority order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// RuleFor returns the first rule matching def.
func RuleFor(def schema.FieldDefinition) (Rule, bool) {
	for _, r := range rules {
		if r.Matches(def) {
			return r, true
		}
	}
	return Rule{}, false
}

// Encodable reports whether any rule handles def.
func Encodable(def schema.FieldDefinition) bool {
	_, ok := RuleFor(def)
	return ok
}

// Encode renders v as a SQL expression for the column described by def.
func Encode(def schema.FieldDefinition, v value.Value) (string, error) {
	rule, ok := RuleFor(def)
	if !ok {
		return "", newUnmappable(def)
	}
	if v == nil {
		v = value.Null{}
	}
	out, err := rule.Render(v)
	if err != nil {
		return "", fmt.Errorf("encode field %q: %w", def.Source, err)
	}
	return out, nil
}

func arrayOf(elem schema.SQLType) func(schema.FieldDefinition) bool {
	return func(def schema.FieldDefinition) bool {
		return def.ColType != nil && def.ColType.IsArray() && def.ColType.Elem == elem
	}
}

func scalar(tag schema.SQLType) func(schema.FieldDefinition) bool {
	return func(def schema.FieldDefinition) bool {
		return def.ColType != nil && !def.ColType.IsTuple() && def.ColType.Tag == tag
	}
}

// fieldType only decides typing when colType is absent.
func fieldShape(shape schema.FieldShape) func(schema.FieldDefinition) bool {
	return func(def schema.FieldDefinition) bool {
		return def.ColType == nil && def.FieldType != nil && def.FieldType.Shape() == shape
	}
}

func renderTextArray(v value.Value) (string, error) {
	arr, _ := v.(value.Array)
	elems := make([]string, len(arr))
	for i, elem := range arr {
		if s, ok := elem.(value.String); ok {
			elems[i] = Literal(string(s))
		} else {
			elems[i] = emptyText
		}
	}
	return arrayOpen + strings.Join(elems, ", ") + textArray, nil
}

func renderJSONBArray(v value.Value) (string, error) {
	arr, _ := v.(value.Array)
	elems := make([]string, len(arr))
	for i, elem := range arr {
		lit, err := jsonLiteral(elem)
		if err != nil {
			return "", fmt.Errorf("element %d: %w", i, err)
		}
		elems[i] = lit
	}
	return arrayOpen + strings.Join(elems, ", ") + jsonbArray, nil
}

func renderText(v value.Value) (string, error) {
	if s, ok := v.(value.String); ok {
		return Literal(string(s)), nil
	}
	return emptyText, nil
}

func renderTimestamp(v value.Value) (string, error) {
	if ts, ok := v.(value.Timestamp); ok {
		return "to_timestamp(" + strconv.FormatInt(ts.Seconds, 10) + ")", nil
	}
	return sqlNull, nil
}

func renderBool(v value.Value) (string, error) {
	if b, ok := v.(value.Bool); ok {
		if b {
			return sqlTrue, nil
		}
		return sqlFalse, nil
	}
	return sqlNull, nil
}

// Reference and Timestamp are distinct kinds, so only plain objects and
// arrays reach the JSON path.
func renderJSONB(v value.Value) (string, error) {
	switch v.(type) {
	case value.Object, value.Array:
		return jsonLiteral(v)
	default:
		return sqlNull, nil
	}
}

func renderRef(v value.Value) (string, error) {
	if ref, ok := v.(value.Reference); ok {
		return Literal(ref.ID), nil
	}
	return sqlNull, nil
}

func renderRefArray(v value.Value) (string, error) {
	arr, _ := v.(value.Array)
	elems := make([]string, len(arr))
	for i, elem := range arr {
		if ref, ok := elem.(value.Reference); ok {
			elems[i] = Literal(ref.ID)
		} else {
			elems[i] = elemNull
		}
	}
	return arrayOpen + strings.Join(elems, ", ") + textArray, nil
}

func jsonLiteral(v value.Value) (string, error) {
	resolved, err := Resolve(v)
	if err != nil {
		return "", err
	}
	data, err := value.Marshal(resolved)
	if err != nil {
		return "", err
	}
	return Literal(string(data)), nil
}

// UnmappableFieldError reports a field definition that no encoding rule
// handles. Collection and Document are filled in by the insert builder.
type UnmappableFieldError struct {
	Collection string
	Document   string
	Field      string
	ColType    string
	FieldType  string
}

func newUnmappable(def schema.FieldDefinition) *UnmappableFieldError {
	e := &UnmappableFieldError{Field: def.Source}
	if def.ColType != nil {
		e.ColType = def.ColType.String()
	}
	if def.FieldType != nil {
		e.FieldType = def.FieldType.String()
	}
	return e
}

func (e *UnmappableFieldError) Error() string {
	var b strings.Builder
	b.WriteString("cannot map field for insert statement:")
	if e.Collection != "" {
		fmt.Fprintf(&b, " collection=%s", e.Collection)
	}
	if e.Document != "" {
		fmt.Fprintf(&b, " document=%s", e.Document)
	}
	fmt.Fprintf(&b, " name=%s colType=%s", e.Field, orNone(e.ColType))
	if e.FieldType != "" {
		fmt.Fprintf(&b, " fieldType=%s", e.FieldType)
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}

// IsUnmappable reports whether err is (or wraps) an UnmappableFieldError.
func IsUnmappable(err error) bool {
	var ue *UnmappableFieldError
	return errors.As(err, &ue)
}
