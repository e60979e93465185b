package schema

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// Validation error codes (E200-E299). Lint codes (W300-W399) are reported by
// the encode package, which owns the encoding rules.
const (
	ErrInvalidCollection   = "E201" // empty or non-identifier collection name
	ErrMissingSource       = "E202" // field definition without source
	ErrDuplicateSource     = "E203" // source repeated within a collection
	ErrInvalidColumn       = "E204" // destination column is not an identifier
	ErrColumnCollision     = "E205" // reserved "id" or same name after case folding
	ErrInvalidColType      = "E206" // malformed colType tuple
	ErrDuplicateCollection = "E207" // collection declared twice

	WarnUnmappableField = "W301" // no encoding rule matches the definition
)

// ReservedColumn is the primary key column every table starts with.
const ReservedColumn = "id"

// maxIdentifierLen is PostgreSQL's NAMEDATALEN - 1.
const maxIdentifierLen = 63

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Issue is a single schema validation or lint finding.
type Issue struct {
	Code       string `json:"code"`
	Collection string `json:"collection,omitempty"`
	Field      string `json:"field,omitempty"`
	Message    string `json:"message"`
}

func (i Issue) Error() string {
	switch {
	case i.Collection != "" && i.Field != "":
		return fmt.Sprintf("[%s] %s.%s: %s", i.Code, i.Collection, i.Field, i.Message)
	case i.Collection != "":
		return fmt.Sprintf("[%s] %s: %s", i.Code, i.Collection, i.Message)
	default:
		return fmt.Sprintf("[%s] %s", i.Code, i.Message)
	}
}

// ValidationErrors collects every fatal issue found in a schema.
type ValidationErrors []Issue

func (errs ValidationErrors) Error() string {
	if len(errs) == 1 {
		return "invalid schema: " + errs[0].Error()
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("invalid schema (%d problems): %s", len(errs), strings.Join(parts, "; "))
}

// IsIdentifier reports whether name can be used unquoted as a table or
// column name.
func IsIdentifier(name string) bool {
	return len(name) <= maxIdentifierLen && identifierRe.MatchString(name)
}

// Validate checks collections for problems that make DDL or DML generation
// unsafe. It does not fail fast.
func Validate(collections []Collection) ValidationErrors {
	var errs ValidationErrors
	seen := make(map[string]bool, len(collections))

	for _, col := range collections {
		if !IsIdentifier(col.Name) {
			errs = append(errs, Issue{
				Code:       ErrInvalidCollection,
				Collection: col.Name,
				Message:    fmt.Sprintf("collection name must match %s (max %d chars)", identifierRe, maxIdentifierLen),
			})
		}
		if seen[col.Name] {
			errs = append(errs, Issue{
				Code:       ErrDuplicateCollection,
				Collection: col.Name,
				Message:    "collection declared more than once",
			})
		}
		seen[col.Name] = true

		errs = append(errs, validateFields(col)...)
	}
	return errs
}

func validateFields(col Collection) ValidationErrors {
	var errs ValidationErrors

	// PostgreSQL folds unquoted identifiers, so "bornAt" and "bornat" are the
	// same column.
	fold := cases.Fold()
	columns := map[string]string{fold.String(ReservedColumn): ReservedColumn}
	sources := make(map[string]bool, len(col.Fields))

	for i, f := range col.Fields {
		if f.Source == "" {
			errs = append(errs, Issue{
				Code:       ErrMissingSource,
				Collection: col.Name,
				Field:      fmt.Sprintf("#%d", i),
				Message:    "source is required",
			})
			continue
		}
		if sources[f.Source] {
			errs = append(errs, Issue{
				Code:       ErrDuplicateSource,
				Collection: col.Name,
				Field:      f.Source,
				Message:    "source is defined more than once",
			})
		}
		sources[f.Source] = true

		column := f.Column()
		if !IsIdentifier(column) {
			errs = append(errs, Issue{
				Code:       ErrInvalidColumn,
				Collection: col.Name,
				Field:      f.Source,
				Message:    fmt.Sprintf("column %q must match %s (set dest to rename it)", column, identifierRe),
			})
		} else {
			folded := fold.String(column)
			if prev, ok := columns[folded]; ok {
				errs = append(errs, Issue{
					Code:       ErrColumnCollision,
					Collection: col.Name,
					Field:      f.Source,
					Message:    fmt.Sprintf("column %q collides with column %q", column, prev),
				})
			} else {
				columns[folded] = column
			}
		}

		if ct := f.ColType; ct != nil && ct.IsTuple() {
			if ct.Tag != TypeArray {
				errs = append(errs, Issue{
					Code:       ErrInvalidColType,
					Collection: col.Name,
					Field:      f.Source,
					Message:    fmt.Sprintf("colType tuple must start with %s, got %s", TypeArray, ct),
				})
			} else if ct.Elem == "" {
				errs = append(errs, Issue{
					Code:       ErrInvalidColType,
					Collection: col.Name,
					Field:      f.Source,
					Message:    "array colType needs an element type",
				})
			}
		}
	}
	return errs
}
