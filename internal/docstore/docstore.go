// Package docstore is a small document-store facade: JSON documents keyed
// by (collection, key) with store-assigned timestamps, equality queries and
// transactions. PostgreSQL backs it in production, a map backs it in tests.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by Get and Update when no document exists.
var ErrNotFound = errors.New("document not found")

// Document is a stored JSON document.
type Document struct {
	Collection string
	Key        string
	Data       json.RawMessage
	// CreateTime is reset by every Set (create-or-replace).
	CreateTime time.Time
	UpdateTime time.Time
}

// DataTo decodes the document body into v.
func (d *Document) DataTo(v any) error {
	return json.Unmarshal(d.Data, v)
}

// Reader reads documents.
type Reader interface {
	Get(ctx context.Context, collection, key string) (*Document, error)
	List(ctx context.Context, collection string) ([]*Document, error)
	// Query returns the documents whose top-level field equals value.
	Query(ctx context.Context, collection, field string, value any) ([]*Document, error)
}

// Writer writes documents.
type Writer interface {
	// Set creates or replaces the document.
	Set(ctx context.Context, collection, key string, data any) error
	// Update merges top-level fields into an existing document.
	Update(ctx context.Context, collection, key string, fields map[string]any) error
	// Delete removes the document; deleting a missing document is not an error.
	Delete(ctx context.Context, collection, key string) error
}

// DB is what repositories operate on: the store itself or a transaction.
type DB interface {
	Reader
	Writer
}

// Store is a document store.
type Store interface {
	DB
	// RunTransaction runs fn atomically. Documents and query scopes read
	// through the transaction stay locked until it ends, so a
	// read-check-write sequence cannot interleave with another one on the
	// same key. The error returned by fn is returned unchanged.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx DB) error) error
	Close()
}

func encode(data any) (json.RawMessage, error) {
	if raw, ok := data.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(data)
}
