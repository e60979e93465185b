package encode

import (
	"fmt"

	"github.com/roach88/docmigrate/internal/schema"
)

// Lint reports field definitions that no encoding rule handles. Such a
// collection can be created but every insert into it will fail.
func Lint(c *schema.Catalog) []schema.Issue {
	var issues []schema.Issue
	for _, col := range c.Collections() {
		for _, def := range col.Fields {
			if Encodable(def) {
				continue
			}
			issues = append(issues, schema.Issue{
				Code:       schema.WarnUnmappableField,
				Collection: col.Name,
				Field:      def.Source,
				Message:    fmt.Sprintf("no encoding rule for %s", describe(def)),
			})
		}
	}
	return issues
}

func describe(def schema.FieldDefinition) string {
	switch {
	case def.ColType != nil:
		return "colType " + def.ColType.String()
	case def.FieldType != nil:
		return "fieldType " + def.FieldType.String()
	default:
		return "a field without colType or fieldType"
	}
}
