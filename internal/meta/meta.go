// Package meta defines the persisted temporary-file record and the key-indexed
// store it lives in. The store supports single-record operations with simple
// equality and range filters only; no transactions or joins are assumed.
package meta

import (
	"context"
	"time"

	"tempstore/internal/backend"
)

// Record is one persisted temporary object.
type Record struct {
	// ID is the unique, stable identifier, derived from the generated
	// filename's stem at creation time.
	ID string

	// Path is the backend-specific storage key.
	Path string

	// Name is the generated unique filename, extension included.
	Name string

	// ContentTypeExt is the detected image extension, empty for non-image
	// content.
	ContentTypeExt string

	// ExpireAt is the absolute expiry time.
	ExpireAt time.Time

	// SizeBytes is the payload size.
	SizeBytes int64

	// LastAccessAt is refreshed on every read and dedup hit.
	LastAccessAt time.Time

	// AccessCount is incremented on every read and dedup hit.
	AccessCount int64

	// BackendType records which transport stored the payload. Legacy rows
	// missing the value are treated as local.
	BackendType backend.Kind

	// PublicURL is set only when the storing backend exposes direct URLs.
	PublicURL string

	// ContentHash is the SHA-256 hex digest of the payload, empty for legacy
	// rows that have not been backfilled yet.
	ContentHash string
}

// Column names accepted by filters and field updates.
const (
	FieldID           = "id"
	FieldName         = "name"
	FieldContentHash  = "content_hash"
	FieldExpireAt     = "expire_at"
	FieldLastAccessAt = "last_access_at"
	FieldAccessCount  = "access_count"
	FieldSizeBytes    = "size_bytes"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq Op = "="
	OpLt Op = "<"
	OpGt Op = ">"
)

// Filter restricts a store operation to records matching a single-field
// comparison.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Eq builds an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

// Lt builds a less-than filter.
func Lt(field string, value any) Filter {
	return Filter{Field: field, Op: OpLt, Value: value}
}

// Fields is a partial update, keyed by column name.
type Fields map[string]any

// Store is the key-indexed record table backing the manager. Operations are
// atomic per record; concurrent writers follow last-write-wins.
type Store interface {
	// Insert persists a new record.
	Insert(ctx context.Context, rec Record) error

	// Find returns all records matching every filter. No filters returns all
	// records.
	Find(ctx context.Context, filters ...Filter) ([]Record, error)

	// Update sets fields on all records matching every filter. Updating zero
	// rows is not an error.
	Update(ctx context.Context, fields Fields, filters ...Filter) error

	// Delete removes all records matching every filter.
	Delete(ctx context.Context, filters ...Filter) error

	// Close releases the store's resources.
	Close() error
}
