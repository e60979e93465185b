package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/docmigrate/internal/docstore"
	"github.com/roach88/docmigrate/internal/source"
)

// docstoreExtensions mark a --source path as a SQLite document store.
var docstoreExtensions = []string{".db", ".sqlite", ".sqlite3"}

// openSource opens a JSON-lines export directory or a SQLite document
// store, chosen by the path's extension. The path must exist.
func openSource(path string) (source.Source, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("source not found: %s", path)
		}
		return nil, err
	}
	if isDocstorePath(path) {
		st, err := docstore.Open(path)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	dir, err := source.OpenDir(path)
	if err != nil {
		return nil, err
	}
	return dir, nil
}

func isDocstorePath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range docstoreExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
