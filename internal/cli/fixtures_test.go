package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSchema = `
users:
  - source: name
    colType: TEXT
posts:
  - source: title
    colType: TEXT
  - source: author
    fieldType: [REF, users]
`

const usersJSONL = `{"id": "u1", "data": {"name": "Ann"}}
`

const postsJSONL = `{"id": "p1", "data": {"title": "Hi", "author": {"__ref__": "users/u1"}}}
`

// writeFixtures writes a schema file and a JSON-lines export directory.
func writeFixtures(t *testing.T) (schemaPath, exportDir string) {
	t.Helper()
	root := t.TempDir()

	schemaPath = filepath.Join(root, "schema.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchema), 0644))

	exportDir = filepath.Join(root, "export")
	require.NoError(t, os.MkdirAll(exportDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(exportDir, "users.jsonl"), []byte(usersJSONL), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(exportDir, "posts.jsonl"), []byte(postsJSONL), 0644))

	return schemaPath, exportDir
}

// fakeExecutor records statements and fails the first one containing failOn.
type fakeExecutor struct {
	statements []string
	failOn     string
}

func (f *fakeExecutor) Exec(_ context.Context, sql string, _ ...any) (int64, error) {
	if f.failOn != "" && strings.Contains(sql, f.failOn) {
		return 0, errors.New("permission denied for schema public")
	}
	f.statements = append(f.statements, sql)
	if strings.HasPrefix(sql, "INSERT") {
		return 1, nil
	}
	return 0, nil
}
