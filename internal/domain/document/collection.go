package document

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Shape is the top-level JSON kind of a collection file.
type Shape int

// Collection shapes.
const (
	ShapeUnknown Shape = iota
	ShapeList
	ShapeMap
)

// DetectShape reports whether data holds an array or an object collection.
func DetectShape(data []byte) Shape {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ShapeUnknown
	}
	switch trimmed[0] {
	case '[':
		return ShapeList
	case '{':
		return ShapeMap
	default:
		return ShapeUnknown
	}
}

// DecodeCollection decodes a collection file body. A JSON array yields its object elements in
// order; a JSON object keyed by id yields its values in key order. Elements that are not objects
// are skipped.
func DecodeCollection(data []byte) ([]Document, error) {
	docs, _, err := DecodeCollectionCounted(data)
	return docs, err
}

// DecodeCollectionCounted is DecodeCollection that also reports how many elements were skipped
// because they are not objects. Callers that rewrite the file must not drop them.
func DecodeCollectionCounted(data []byte) ([]Document, int, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, 0, fmt.Errorf("empty collection body")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return nil, 0, fmt.Errorf("read collection start: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '[' && delim != '{') {
		return nil, 0, fmt.Errorf("collection must be an array or object, got %v", tok)
	}

	var (
		docs    []Document
		skipped int
	)
	for dec.More() {
		if delim == '{' {
			if _, err := dec.Token(); err != nil {
				return nil, 0, fmt.Errorf("read collection key: %w", err)
			}
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, 0, fmt.Errorf("read element %d: %w", len(docs)+skipped, err)
		}
		doc, err := Parse(raw)
		if err != nil {
			skipped++
			continue
		}
		docs = append(docs, doc)
	}
	if _, err := dec.Token(); err != nil {
		return nil, 0, fmt.Errorf("read collection end: %w", err)
	}
	return docs, skipped, nil
}

// EncodeCollection renders docs as a two-space indented JSON array. Raw values are written as
// stored; '<', '>' and '&' are not escaped.
func EncodeCollection(docs []Document) ([]byte, error) {
	if docs == nil {
		docs = []Document{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	return buf.Bytes(), nil
}
