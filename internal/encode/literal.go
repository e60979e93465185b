package encode

import "strings"

// Literal quotes s as a PostgreSQL string constant.
//
// Single quotes are doubled. If s contains a backslash, backslashes are
// doubled as well and the constant is written in escape-string form (E'...'),
// so the value is read back unchanged regardless of
// standard_conforming_strings.
func Literal(s string) string {
	hasBackslash := strings.ContainsRune(s, '\\')

	var b strings.Builder
	b.Grow(len(s) + 3)
	if hasBackslash {
		b.WriteByte('E')
	}
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\'':
			b.WriteString("''")
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

const (
	sqlNull    = "null"
	emptyText  = "''"
	sqlTrue    = "'true'"
	sqlFalse   = "'false'"
	elemNull   = "NULL"
	arrayOpen  = "ARRAY["
	textArray  = "]::TEXT[]"
	jsonbArray = "]::JSONB[]"
)
