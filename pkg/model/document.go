package model

import (
	"regexp"
)

var (
	idRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]{1,64}$`)
)

// CheckDocumentID reports whether id is usable as a path segment.
func CheckDocumentID(id string) bool {
	return idRegex.MatchString(id)
}

// Document is the JSON object form of a stored document or an embedded record.
//
//	"id" field is reserved for the record id.
//	"date" field is reserved for the bucket key on bucketed entities.
//	"createdAt" field is reserved for the creation timestamp.
type Document map[string]interface{}

func (doc Document) GetID() string {
	if id, ok := doc["id"].(string); ok {
		return id
	}
	return ""
}

// Clone returns a shallow copy.
func (doc Document) Clone() Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// Merge returns a copy of doc with patch shallow-merged over it.
// Keys listed in protected keep their original value.
func (doc Document) Merge(patch map[string]interface{}, protected ...string) Document {
	out := doc.Clone()
	if out == nil {
		out = Document{}
	}
	for k, v := range patch {
		if isProtected(k, protected) {
			continue
		}
		out[k] = v
	}
	return out
}

// Records reads an array field holding embedded records. Entries that are
// not objects are skipped.
func (doc Document) Records(field string) []Document {
	raw, ok := doc[field]
	if !ok || raw == nil {
		return nil
	}
	var items []interface{}
	switch v := raw.(type) {
	case []interface{}:
		items = v
	case []Document:
		out := make([]Document, 0, len(v))
		for _, d := range v {
			out = append(out, d.Clone())
		}
		return out
	case []map[string]interface{}:
		out := make([]Document, 0, len(v))
		for _, d := range v {
			out = append(out, Document(d).Clone())
		}
		return out
	default:
		return nil
	}
	out := make([]Document, 0, len(items))
	for _, item := range items {
		switch rec := item.(type) {
		case map[string]interface{}:
			out = append(out, Document(rec).Clone())
		case Document:
			out = append(out, rec.Clone())
		}
	}
	return out
}

// RecordValues converts records into the []interface{} form written back to the store.
func RecordValues(records []Document) []interface{} {
	out := make([]interface{}, 0, len(records))
	for _, r := range records {
		out = append(out, map[string]interface{}(r))
	}
	return out
}

func isProtected(key string, protected []string) bool {
	for _, p := range protected {
		if key == p {
			return true
		}
	}
	return false
}
