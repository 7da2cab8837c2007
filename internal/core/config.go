// Package core holds the daemon configuration.
package core

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tempstore/internal/backend"
)

// S3Settings configures the generic S3-compatible backend.
type S3Settings struct {
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Region          string `yaml:"region"`
	ForcePathStyle  bool   `yaml:"force_path_style,omitempty"`
	PublicBaseURL   string `yaml:"public_base_url,omitempty"`
}

// R2Settings configures the Cloudflare R2 backend.
type R2Settings struct {
	AccountID       string `yaml:"account_id"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PublicBaseURL   string `yaml:"public_base_url,omitempty"`
}

// WebDAVSettings configures the WebDAV backend.
type WebDAVSettings struct {
	Endpoint string `yaml:"endpoint"`
	BasePath string `yaml:"base_path"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// BackendSettings selects and configures the active storage backend.
type BackendSettings struct {
	Type   backend.Kind   `yaml:"type"`
	S3     S3Settings     `yaml:"s3,omitempty"`
	R2     R2Settings     `yaml:"r2,omitempty"`
	WebDAV WebDAVSettings `yaml:"webdav,omitempty"`
}

// Config is the daemon configuration file.
type Config struct {
	// DataDir is the local storage root; it also backs reads of legacy
	// locally stored records when a remote backend is active.
	DataDir string `yaml:"data_dir"`

	// DBPath is the SQLite record database path.
	DBPath string `yaml:"db_path"`

	// PublicBasePath resolves URLs for records without a backend public URL.
	PublicBasePath string `yaml:"public_base_path,omitempty"`

	DefaultTTLHours      int `yaml:"default_ttl_hours,omitempty"`
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes,omitempty"`

	MaxStorageMB    int64 `yaml:"max_storage_mb,omitempty"`
	MaxStorageCount int64 `yaml:"max_storage_count,omitempty"`

	// MetricsListen, when set, serves Prometheus metrics on this address.
	MetricsListen string `yaml:"metrics_listen,omitempty"`

	Backend BackendSettings `yaml:"backend"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates configuration bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir must be set")
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db_path must be set")
	}
	if cfg.Backend.Type == "" {
		cfg.Backend.Type = backend.KindLocal
	}

	switch cfg.Backend.Type {
	case backend.KindLocal:
	case backend.KindS3:
		if cfg.Backend.S3.Endpoint == "" || cfg.Backend.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 backend requires endpoint and bucket")
		}
	case backend.KindR2:
		if cfg.Backend.R2.AccountID == "" || cfg.Backend.R2.Bucket == "" {
			return nil, fmt.Errorf("r2 backend requires account_id and bucket")
		}
	case backend.KindWebDAV:
		if cfg.Backend.WebDAV.Endpoint == "" {
			return nil, fmt.Errorf("webdav backend requires endpoint")
		}
	default:
		return nil, fmt.Errorf("unknown backend type: %q", cfg.Backend.Type)
	}

	return &cfg, nil
}

// BuildBackend constructs the configured active backend.
func (c *Config) BuildBackend() backend.Backend {
	switch c.Backend.Type {
	case backend.KindS3:
		return backend.NewS3(backend.S3Config{
			Endpoint:        c.Backend.S3.Endpoint,
			Bucket:          c.Backend.S3.Bucket,
			AccessKeyID:     c.Backend.S3.AccessKeyID,
			SecretAccessKey: c.Backend.S3.SecretAccessKey,
			Region:          c.Backend.S3.Region,
			ForcePathStyle:  c.Backend.S3.ForcePathStyle,
			PublicBaseURL:   c.Backend.S3.PublicBaseURL,
		})
	case backend.KindR2:
		return backend.NewR2(backend.R2Config{
			AccountID:       c.Backend.R2.AccountID,
			Bucket:          c.Backend.R2.Bucket,
			AccessKeyID:     c.Backend.R2.AccessKeyID,
			SecretAccessKey: c.Backend.R2.SecretAccessKey,
			PublicBaseURL:   c.Backend.R2.PublicBaseURL,
		})
	case backend.KindWebDAV:
		return backend.NewWebDAV(backend.WebDAVConfig{
			Endpoint: c.Backend.WebDAV.Endpoint,
			BasePath: c.Backend.WebDAV.BasePath,
			Username: c.Backend.WebDAV.Username,
			Password: c.Backend.WebDAV.Password,
		})
	default:
		return backend.NewLocal(c.DataDir)
	}
}

// DefaultTTL returns the configured TTL, or zero to use the manager default.
func (c *Config) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLHours) * time.Hour
}

// SweepInterval returns the configured sweep period, or zero to use the
// manager default.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

// MaxStorageBytes converts the configured megabyte budget to bytes.
func (c *Config) MaxStorageBytes() int64 {
	return c.MaxStorageMB * 1024 * 1024
}
