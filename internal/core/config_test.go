package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tempstore/internal/backend"
)

func TestParseLocalDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`
data_dir: /var/lib/tempstore
db_path: /var/lib/tempstore/records.db
`))
	require.NoError(t, err, "Parse error")
	require.Equal(t, backend.KindLocal, cfg.Backend.Type, "backend should default to local")
	require.Equal(t, backend.KindLocal, cfg.BuildBackend().Kind(), "built backend kind mismatch")
	require.Zero(t, cfg.DefaultTTL(), "unset TTL should be zero")
	require.Zero(t, cfg.MaxStorageBytes(), "unset size budget should be zero")
}

func TestParseS3(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`
data_dir: ./data
db_path: ./data/records.db
default_ttl_hours: 12
sweep_interval_minutes: 10
max_storage_mb: 512
max_storage_count: 1000
backend:
  type: s3
  s3:
    endpoint: https://s3.example.com
    bucket: media
    access_key_id: key
    secret_access_key: secret
    region: us-east-1
`))
	require.NoError(t, err, "Parse error")
	require.Equal(t, backend.KindS3, cfg.BuildBackend().Kind(), "built backend kind mismatch")
	require.Equal(t, 12*time.Hour, cfg.DefaultTTL(), "TTL mismatch")
	require.Equal(t, 10*time.Minute, cfg.SweepInterval(), "sweep interval mismatch")
	require.Equal(t, int64(512*1024*1024), cfg.MaxStorageBytes(), "size budget mismatch")
	require.Equal(t, int64(1000), cfg.MaxStorageCount, "count budget mismatch")
}

func TestParseRejectsIncomplete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{"missing data_dir", "db_path: x\n"},
		{"missing db_path", "data_dir: x\n"},
		{"unknown backend", "data_dir: x\ndb_path: y\nbackend:\n  type: ftp\n"},
		{"s3 without bucket", "data_dir: x\ndb_path: y\nbackend:\n  type: s3\n  s3:\n    endpoint: https://s3.example.com\n"},
		{"r2 without account", "data_dir: x\ndb_path: y\nbackend:\n  type: r2\n  r2:\n    bucket: b\n"},
		{"webdav without endpoint", "data_dir: x\ndb_path: y\nbackend:\n  type: webdav\n"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err, "expected validation failure")
		})
	}
}
