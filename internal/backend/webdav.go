package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// WebDAVConfig configures a WebDAV backend.
type WebDAVConfig struct {
	// Endpoint is the server base URL, e.g. "https://dav.example.com".
	Endpoint string

	// BasePath is the collection under which objects are stored.
	BasePath string

	// Username and Password enable HTTP Basic auth when both are set.
	Username string
	Password string
}

// WebDAVBackend stores payloads on a WebDAV server under
// <endpoint>/<basePath>/temp/. Parent collections are provisioned lazily with
// MKCOL; existing collections are the common case, so provisioning failures
// are best-effort.
type WebDAVBackend struct {
	cfg    WebDAVConfig
	client *http.Client
}

// NewWebDAV creates a WebDAVBackend from cfg.
func NewWebDAV(cfg WebDAVConfig) *WebDAVBackend {
	return &WebDAVBackend{cfg: cfg, client: http.DefaultClient}
}

// encodePath percent-encodes each path segment, preserving the separators.
func encodePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

func (b *WebDAVBackend) urlFor(remotePath string) string {
	return strings.TrimSuffix(b.cfg.Endpoint, "/") + "/" + encodePath(strings.TrimPrefix(remotePath, "/"))
}

func (b *WebDAVBackend) newRequest(ctx context.Context, method, remotePath string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.urlFor(remotePath), body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	if b.cfg.Username != "" && b.cfg.Password != "" {
		req.SetBasicAuth(b.cfg.Username, b.cfg.Password)
	}
	return req, nil
}

// mkcol creates a single collection. 201 means created, 405 means it already
// exists; anything else is ignored since a failed MKCOL surfaces as a failed
// PUT right after.
func (b *WebDAVBackend) mkcol(ctx context.Context, remotePath string) {
	req, err := b.newRequest(ctx, "MKCOL", remotePath, nil)
	if err != nil {
		return
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusMethodNotAllowed {
		slog.Debug("webdav mkcol unexpected status", "path", remotePath, "status", resp.StatusCode)
	}
}

// provision creates every collection along remoteDir, shallowest first.
func (b *WebDAVBackend) provision(ctx context.Context, remoteDir string) {
	var current string
	for _, seg := range strings.Split(strings.Trim(remoteDir, "/"), "/") {
		if seg == "" {
			continue
		}
		current = path.Join(current, seg)
		b.mkcol(ctx, current)
	}
}

func (b *WebDAVBackend) tempDir() string {
	return path.Join(b.cfg.BasePath, "temp")
}

// Init provisions the base and temp collections. Idempotent.
func (b *WebDAVBackend) Init(ctx context.Context) error {
	b.provision(ctx, b.tempDir())
	return nil
}

// Upload stores data under <basePath>/temp/<filename>, returning that remote
// path as the key.
func (b *WebDAVBackend) Upload(ctx context.Context, data []byte, filename string) (PutResult, error) {
	b.provision(ctx, b.tempDir())

	remotePath := path.Join(b.tempDir(), filename)
	req, err := b.newRequest(ctx, http.MethodPut, remotePath, bytes.NewReader(data))
	if err != nil {
		return PutResult{}, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return PutResult{}, fmt.Errorf("upload %s: %w", remotePath, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return PutResult{Key: remotePath}, nil
	}
	return PutResult{}, fmt.Errorf("upload %s: %w", remotePath, readError(resp))
}

// Download retrieves the payload at the remote path key.
func (b *WebDAVBackend) Download(ctx context.Context, key string) ([]byte, error) {
	req, err := b.newRequest(ctx, http.MethodGet, key, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("download %s: %w", key, readError(resp))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body for %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the payload at key. A 404 response is success.
func (b *WebDAVBackend) Delete(ctx context.Context, key string) error {
	req, err := b.newRequest(ctx, http.MethodDelete, key, nil)
	if err != nil {
		return err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("delete %s: %w", key, readError(resp))
	}
	return nil
}

// Exists issues a HEAD request for key.
func (b *WebDAVBackend) Exists(ctx context.Context, key string) bool {
	req, err := b.newRequest(ctx, http.MethodHead, key, nil)
	if err != nil {
		return false
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

func (b *WebDAVBackend) HasPublicURL() bool { return false }

func (b *WebDAVBackend) Kind() Kind { return KindWebDAV }
