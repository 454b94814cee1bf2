package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Well-known document keys.
const (
	FieldID          = "id"
	FieldUserID      = "userId"
	FieldTripID      = "tripId"
	FieldDate        = "date"
	FieldContentHash = "contentHash"
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
	FieldEncrypted   = "_encrypted"
	FieldEncTyped    = "_encTyped"
)

// Document is the schemaless form of an entity as it travels through the
// encryption engine, the sync queue and the Remote Store.
type Document map[string]any

// Clone returns a shallow copy of d. Slices are copied one level deep so that
// per-element rewrites never leak into the source.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		switch value := v.(type) {
		case []any:
			cp := make([]any, len(value))
			copy(cp, value)
			out[k] = cp
		case []string:
			cp := make([]string, len(value))
			copy(cp, value)
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}

// String returns the value stored under key when it is a string.
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Without returns a copy of d with the given keys removed.
func (d Document) Without(keys ...string) Document {
	out := d.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// ToDocument converts an entity into its document form using its JSON tags.
func ToDocument(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal entity: %w", err)
	}

	var doc Document
	if err = json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal entity document: %w", err)
	}
	return doc, nil
}

// FromDocument decodes a document into dst. Keys without a matching JSON tag
// (userId, createdAt, ...) are ignored.
func FromDocument(doc Document, dst any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err = json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal document: %w", err)
	}
	return nil
}

// RemoteDocument is a document as stored in the Remote Store.
type RemoteDocument struct {
	// ID is the remote document id, unrelated to the local id in Data["id"].
	ID         string
	Collection Collection
	UserID     string
	Data       Document
	// CreatedAt is nil for documents written before server timestamps existed.
	CreatedAt *time.Time
	UpdatedAt *time.Time
}
