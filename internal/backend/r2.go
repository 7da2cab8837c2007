package backend

import "fmt"

// R2Config configures a Cloudflare R2 backend.
type R2Config struct {
	AccountID       string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string

	// PublicBaseURL, when set, is joined with the object key to produce
	// directly reachable URLs (e.g. an r2.dev or custom domain).
	PublicBaseURL string
}

// NewR2 creates an R2 backend. R2 speaks the S3 protocol with the region
// fixed to "auto", a per-account endpoint, and path-style addressing only.
func NewR2(cfg R2Config) *S3Backend {
	b := NewS3(S3Config{
		Endpoint:        fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID),
		Bucket:          cfg.Bucket,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Region:          "auto",
		ForcePathStyle:  true,
		PublicBaseURL:   cfg.PublicBaseURL,
	})
	b.kind = KindR2
	return b
}
