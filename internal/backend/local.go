package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalBackend stores payloads on the local filesystem under a fixed "temp"
// subdirectory of its base directory. It never produces public URLs; local
// files are served by the host's file server instead.
type LocalBackend struct {
	baseDir string
}

// NewLocal creates a LocalBackend rooted at baseDir.
func NewLocal(baseDir string) *LocalBackend {
	return &LocalBackend{baseDir: baseDir}
}

func (b *LocalBackend) tempDir() string {
	return filepath.Join(b.baseDir, "temp")
}

// Init creates the temp directory. Safe to call repeatedly.
func (b *LocalBackend) Init(ctx context.Context) error {
	if err := os.MkdirAll(b.tempDir(), 0o755); err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	return nil
}

// Upload writes data to <base>/temp/<filename> and returns the absolute path
// as the storage key.
func (b *LocalBackend) Upload(ctx context.Context, data []byte, filename string) (PutResult, error) {
	if err := b.Init(ctx); err != nil {
		return PutResult{}, err
	}

	path, err := filepath.Abs(filepath.Join(b.tempDir(), filename))
	if err != nil {
		return PutResult{}, fmt.Errorf("resolve path for %s: %w", filename, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return PutResult{}, fmt.Errorf("write %s: %w", path, err)
	}
	return PutResult{Key: path}, nil
}

// Download reads the payload at key.
func (b *LocalBackend) Download(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(key)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the payload at key. A missing file is success.
func (b *LocalBackend) Delete(ctx context.Context, key string) error {
	if err := os.Remove(key); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a regular file is present at key.
func (b *LocalBackend) Exists(ctx context.Context, key string) bool {
	info, err := os.Stat(key)
	return err == nil && info.Mode().IsRegular()
}

func (b *LocalBackend) HasPublicURL() bool { return false }

func (b *LocalBackend) Kind() Kind { return KindLocal }
