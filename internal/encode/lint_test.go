package encode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docmigrate/internal/schema"
)

func jsonb() *schema.ColType {
	return schema.Scalar(schema.TypeJSONB)
}

func TestLint(t *testing.T) {
	c, err := schema.New([]schema.Collection{
		{Name: "users", Fields: []schema.FieldDefinition{
			{Source: "name", ColType: schema.Scalar(schema.TypeText)},
			{Source: "age", ColType: schema.Scalar("INTEGER")},
		}},
		{Name: "posts", Fields: []schema.FieldDefinition{
			{Source: "meta", ColType: jsonb()},
			{Source: "loose"},
			{Source: "nums", ColType: schema.ArrayOf("INT")},
		}},
	})
	require.NoError(t, err)

	issues := Lint(c)
	require.Len(t, issues, 3)

	assert.Equal(t, schema.Issue{
		Code:       schema.WarnUnmappableField,
		Collection: "users",
		Field:      "age",
		Message:    "no encoding rule for colType INTEGER",
	}, issues[0])
	assert.Equal(t, "posts", issues[1].Collection)
	assert.Equal(t, "no encoding rule for a field without colType or fieldType", issues[1].Message)
	assert.Equal(t, "no encoding rule for colType (ARRAY, INT)", issues[2].Message)
}

func TestLint_Clean(t *testing.T) {
	c, err := schema.New([]schema.Collection{
		{Name: "users", Fields: []schema.FieldDefinition{
			{Source: "name", ColType: schema.Scalar(schema.TypeText)},
			{Source: "team", FieldType: schema.RefField()},
		}},
	})
	require.NoError(t, err)
	assert.Empty(t, Lint(c))
}
