package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Extension is the file extension of a collection export.
const Extension = ".jsonl"

// Dir reads a JSON-lines export directory holding one <collection>.jsonl
// file per collection.
type Dir struct {
	root string
}

// OpenDir returns a Dir rooted at path.
func OpenDir(path string) (*Dir, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open export directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open export directory: %s is not a directory", path)
	}
	return &Dir{root: path}, nil
}

// Path returns the export file of collection.
func (d *Dir) Path(collection string) string {
	return filepath.Join(d.root, collection+Extension)
}

// Fetch reads documents in file order. A collection without an export file
// has no documents.
func (d *Dir) Fetch(ctx context.Context, collection string, limit int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkName(collection); err != nil {
		return nil, err
	}

	f, err := os.Open(d.Path(collection))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := ReadJSONL(f, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name(), err)
	}
	return docs, nil
}

// Write replaces the export file of collection with docs.
func (d *Dir) Write(collection string, docs []Document) error {
	if err := checkName(collection); err != nil {
		return err
	}
	f, err := os.Create(d.Path(collection))
	if err != nil {
		return err
	}
	if err := WriteJSONL(f, docs); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", f.Name(), err)
	}
	return f.Close()
}

// checkName rejects names that would escape the directory.
func checkName(collection string) error {
	if strings.ContainsAny(collection, `/\`) || collection == "" || collection == "." || collection == ".." {
		return fmt.Errorf("invalid collection name %q", collection)
	}
	return nil
}

// Collections lists the collections present in the directory, sorted.
func (d *Dir) Collections() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != Extension {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), Extension))
	}
	slices.Sort(names)
	return names, nil
}

// Close is a no-op; files are closed after each Fetch.
func (d *Dir) Close() error {
	return nil
}

// Memory is an in-memory Source keyed by collection.
type Memory map[string][]Document

// Fetch returns a copy of the collection's documents.
func (m Memory) Fetch(ctx context.Context, collection string, limit int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs := m[collection]
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return slices.Clone(docs), nil
}

func (Memory) Close() error {
	return nil
}
