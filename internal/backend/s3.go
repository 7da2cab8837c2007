package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tempstore/internal/sigv4"
)

// S3Config configures a generic S3-compatible backend.
type S3Config struct {
	// Endpoint is the service base URL, e.g. "https://s3.amazonaws.com" or
	// "http://127.0.0.1:9000".
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Region          string

	// ForcePathStyle requests path-style addressing even for hostnames that
	// would otherwise use virtual-hosted style.
	ForcePathStyle bool

	// PublicBaseURL, when set, is joined with the object key to produce
	// directly reachable URLs for uploaded objects.
	PublicBaseURL string
}

// S3Backend stores payloads in an S3-compatible bucket, signing every request
// with SigV4.
type S3Backend struct {
	cfg    S3Config
	signer *sigv4.Signer
	client *http.Client
	kind   Kind

	now func() time.Time
}

// NewS3 creates an S3Backend from cfg.
func NewS3(cfg S3Config) *S3Backend {
	return &S3Backend{
		cfg:    cfg,
		signer: sigv4.NewSigner(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.Region),
		client: http.DefaultClient,
		kind:   KindS3,
		now:    time.Now,
	}
}

// Init is a no-op; buckets are provisioned out of band.
func (b *S3Backend) Init(ctx context.Context) error { return nil }

// pathStyleHost reports whether host (optionally with port) cannot carry a
// bucket subdomain: localhost and IP literals.
func pathStyleHost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return host == "localhost" || net.ParseIP(strings.Trim(host, "[]")) != nil
}

// objectURL builds the request URL for key, choosing virtual-hosted or
// path-style addressing based on the endpoint host.
func (b *S3Backend) objectURL(key string) (*url.URL, error) {
	u, err := url.Parse(b.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	if b.cfg.ForcePathStyle || pathStyleHost(u.Host) {
		u.Path = "/" + b.cfg.Bucket + "/" + key
	} else {
		u.Host = b.cfg.Bucket + "." + u.Host
		u.Path = "/" + key
	}
	return u, nil
}

func (b *S3Backend) do(ctx context.Context, method, key string, body []byte, payloadHash string) (*http.Response, error) {
	u, err := b.objectURL(key)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}

	if err := b.signer.Sign(req, payloadHash, b.now()); err != nil {
		return nil, err
	}
	return b.client.Do(req)
}

// readError drains resp and converts it into an *HTTPError.
func readError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// Upload stores data under temp/<filename>.
func (b *S3Backend) Upload(ctx context.Context, data []byte, filename string) (PutResult, error) {
	key := "temp/" + filename

	resp, err := b.do(ctx, http.MethodPut, key, data, sigv4.PayloadHash(data))
	if err != nil {
		return PutResult{}, fmt.Errorf("upload %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return PutResult{}, fmt.Errorf("upload %s: %w", key, readError(resp))
	}

	res := PutResult{Key: key}
	if b.cfg.PublicBaseURL != "" {
		res.PublicURL = strings.TrimSuffix(b.cfg.PublicBaseURL, "/") + "/" + key
	}
	return res, nil
}

// Download retrieves the payload stored under key.
func (b *S3Backend) Download(ctx context.Context, key string) ([]byte, error) {
	resp, err := b.do(ctx, http.MethodGet, key, nil, sigv4.UnsignedPayload)
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

// Delete removes the object under key. A 404 response is success.
func (b *S3Backend) Delete(ctx context.Context, key string) error {
	resp, err := b.do(ctx, http.MethodDelete, key, nil, sigv4.PayloadHash(nil))
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
func (b *S3Backend) Exists(ctx context.Context, key string) bool {
	resp, err := b.do(ctx, http.MethodHead, key, nil, sigv4.UnsignedPayload)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

func (b *S3Backend) HasPublicURL() bool { return b.cfg.PublicBaseURL != "" }

func (b *S3Backend) Kind() Kind { return b.kind }
