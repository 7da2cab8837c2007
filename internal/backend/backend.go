// Package backend provides the pluggable storage transports used to persist
// temporary-object payloads: local disk, generic S3-compatible services,
// Cloudflare R2 and WebDAV servers.
package backend

import (
	"context"
	"errors"
	"fmt"
)

// Kind identifies one of the supported storage transports.
type Kind string

const (
	KindLocal  Kind = "local"
	KindS3     Kind = "s3"
	KindWebDAV Kind = "webdav"
	KindR2     Kind = "r2"
)

// ErrNotFound indicates the requested key does not exist in the backend.
var ErrNotFound = errors.New("backend: object not found")

// HTTPError is returned for non-2xx responses from remote backends. The body
// is included to aid debugging failed uploads and downloads.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend: unexpected status %d: %s", e.StatusCode, e.Body)
}

// PutResult describes where an uploaded payload was stored.
type PutResult struct {
	// Key is the backend-specific storage key: an absolute filesystem path
	// for the local backend, a remote object key otherwise.
	Key string

	// PublicURL is a directly reachable URL for the object, empty when the
	// backend exposes none.
	PublicURL string
}

// Backend stores and retrieves raw payloads. Implementations are safe for
// concurrent use with distinct keys.
type Backend interface {
	// Init prepares the backend for use. It is idempotent.
	Init(ctx context.Context) error

	// Upload persists data under a key derived from filename.
	Upload(ctx context.Context, data []byte, filename string) (PutResult, error)

	// Download retrieves the payload stored under key.
	Download(ctx context.Context, key string) ([]byte, error)

	// Delete removes the payload stored under key. Deleting a key that does
	// not exist is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a payload is stored under key.
	Exists(ctx context.Context, key string) bool

	// HasPublicURL reports whether uploads produce directly reachable URLs.
	HasPublicURL() bool

	// Kind identifies the transport.
	Kind() Kind
}
