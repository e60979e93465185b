package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/docmigrate/internal/value"
)

// maxLineSize bounds a single exported document.
const maxLineSize = 64 << 20

type jsonLine struct {
	ID   *string         `json:"id"`
	Data json.RawMessage `json:"data"`
}

// ReadJSONL decodes JSON-lines documents of the form
// {"id": "...", "data": {...}} from r. Blank lines are skipped. Reading stops
// after limit documents when limit is positive.
func ReadJSONL(r io.Reader, limit int) ([]Document, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var docs []Document
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		doc, err := decodeLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		docs = append(docs, doc)
		if limit > 0 && len(docs) >= limit {
			break
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("line %d: document larger than %d bytes", lineNo+1, maxLineSize)
		}
		return nil, err
	}
	return docs, nil
}

func decodeLine(line []byte) (Document, error) {
	var raw jsonLine
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return Document{}, err
	}
	if raw.ID == nil || *raw.ID == "" {
		return Document{}, errors.New(`document has no "id"`)
	}
	data := raw.Data
	if len(data) == 0 {
		data = []byte("null")
	}
	obj, err := value.DecodeObject(data)
	if err != nil {
		return Document{}, fmt.Errorf("document %q: %w", *raw.ID, err)
	}
	return Document{ID: *raw.ID, Data: obj}, nil
}

// WriteJSONL writes docs to w in the format ReadJSONL reads.
func WriteJSONL(w io.Writer, docs []Document) error {
	bw := bufio.NewWriter(w)
	for _, doc := range docs {
		id, err := value.Marshal(value.String(doc.ID))
		if err != nil {
			return err
		}
		data, err := value.Marshal(doc.Data)
		if err != nil {
			return fmt.Errorf("document %q: %w", doc.ID, err)
		}
		bw.WriteString(`{"id":`)
		bw.Write(id)
		bw.WriteString(`,"data":`)
		bw.Write(data)
		bw.WriteString("}\n")
	}
	return bw.Flush()
}
