package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a schema file and builds a validated Catalog.
// The format is chosen by extension: .json, .yaml/.yml or .cue.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	collections, err := Parse(data, path)
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}
	return New(collections)
}

// Parse decodes schema bytes using the format implied by filename.
func Parse(data []byte, filename string) ([]Collection, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".cue":
		return ParseCUE(data, filename)
	default:
		return nil, fmt.Errorf("unsupported schema format %q (want .json, .yaml, .yml or .cue)", ext)
	}
}

// ParseJSON decodes a JSON object of collection name to field definition
// list. Collections keep the order in which they appear in the document.
func ParseJSON(data []byte) ([]Collection, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var collections []Collection
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected collection name, got %v", tok)
		}
		var fields []FieldDefinition
		if err := dec.Decode(&fields); err != nil {
			return nil, fmt.Errorf("collection %q: %w", name, err)
		}
		collections = append(collections, Collection{Name: name, Fields: fields})
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after schema object")
	}
	return collections, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// ParseYAML decodes a YAML mapping of collection name to field definition
// list. Each list is converted through JSON so that colType and fieldType
// accept exactly the forms ParseJSON accepts.
func ParseYAML(data []byte) ([]Collection, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty YAML schema")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: schema must be a mapping of collection names", root.Line)
	}

	collections := make([]Collection, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]

		var raw any
		if err := val.Decode(&raw); err != nil {
			return nil, fmt.Errorf("line %d: collection %q: %w", val.Line, key.Value, err)
		}
		fields, err := fieldsFromJSONable(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: collection %q: %w", val.Line, key.Value, err)
		}
		collections = append(collections, Collection{Name: key.Value, Fields: fields})
	}
	return collections, nil
}

// ParseCUE evaluates a CUE file whose top-level regular fields are
// collections. Definitions and hidden fields are ignored, so a schema can
// declare #Field and constrain entries with it.
func ParseCUE(data []byte, filename string) ([]Collection, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile CUE: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate CUE: %w", err)
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, fmt.Errorf("schema must be a struct of collection names: %w", err)
	}

	var collections []Collection
	for iter.Next() {
		name := iter.Label()
		data, err := iter.Value().MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("collection %q: %w", name, err)
		}
		var fields []FieldDefinition
		if err := decodeStrict(data, &fields); err != nil {
			return nil, fmt.Errorf("collection %q: %w", name, err)
		}
		collections = append(collections, Collection{Name: name, Fields: fields})
	}
	return collections, nil
}

func fieldsFromJSONable(raw any) ([]FieldDefinition, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var fields []FieldDefinition
	if err := decodeStrict(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// MarshalIndent renders a catalog as canonical, indented schema JSON.
func MarshalIndent(c *Catalog) ([]byte, error) {
	data, err := c.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
