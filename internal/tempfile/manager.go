// Package tempfile implements the temporary-object manager: it persists
// payloads through a configured backend, deduplicates identical content by
// SHA-256 digest, tracks access recency, and expires or evicts objects by
// age, total size and total count.
package tempfile

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"tempstore/internal/backend"
	"tempstore/internal/imagetype"
	"tempstore/internal/lru"
	"tempstore/internal/meta"
	"tempstore/internal/metrics"
)

// ErrNotFound indicates no record matched the requested id or name.
var ErrNotFound = errors.New("tempfile: not found")

const (
	defaultTTL           = 24 * time.Hour
	defaultSweepInterval = 5 * time.Minute

	// Eviction stops once usage is back under this share of the budget, so a
	// single new object does not immediately re-trigger a full eviction pass.
	hysteresisPct = 80
)

// Config configures a Manager.
type Config struct {
	// Store is the persistent record table.
	Store meta.Store

	// Backend is the active storage transport for new uploads.
	Backend backend.Backend

	// Local serves reads for records written by the local backend when the
	// active backend is remote. Defaults to Backend when it is local itself.
	Local *backend.LocalBackend

	// DefaultTTL applies when Create is called with a zero TTL.
	DefaultTTL time.Duration

	// MaxStorageBytes caps the aggregate payload size; zero disables the cap.
	MaxStorageBytes int64

	// MaxStorageCount caps the number of live records; zero disables the cap.
	MaxStorageCount int64

	// SweepInterval is the period of the expiry/eviction sweep in Run.
	SweepInterval time.Duration

	// PublicBasePath is joined with /temp/<name> to resolve URLs for records
	// whose backend exposes no public URL.
	PublicBasePath string

	// Metrics receives activity counters; nil means none are emitted.
	Metrics metrics.Metrics
}

// Manager is the temporary-object façade over the record store, the active
// backend and the recency index.
type Manager struct {
	store   meta.Store
	active  backend.Backend
	local   *backend.LocalBackend
	cfg     Config
	metrics metrics.Metrics

	mu      sync.Mutex
	recency *lru.Index

	createGroup singleflight.Group

	now func() time.Time
}

// File pairs a record with its resolved URL and a lazy payload handle.
type File struct {
	Record meta.Record

	// URL is the backend's public URL when available, otherwise the
	// configured public base path joined with /temp/<name>.
	URL string

	open func(ctx context.Context) (io.ReadCloser, error)
}

// Open returns a reader over the file's payload. For freshly created files it
// serves the original bytes without contacting the backend.
func (f *File) Open(ctx context.Context) (io.ReadCloser, error) {
	return f.open(ctx)
}

// NewManager validates cfg and builds a Manager, rebuilding the recency index
// from all persisted records.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, errors.New("tempfile: store must be configured")
	}
	if cfg.Backend == nil {
		return nil, errors.New("tempfile: backend must be configured")
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = defaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop{}
	}

	local := cfg.Local
	if local == nil {
		if lb, ok := cfg.Backend.(*backend.LocalBackend); ok {
			local = lb
		}
	}

	m := &Manager{
		store:   cfg.Store,
		active:  cfg.Backend,
		local:   local,
		cfg:     cfg,
		metrics: cfg.Metrics,
		recency: lru.New(),
		now:     time.Now,
	}

	if err := m.rebuildRecency(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// rebuildRecency seeds the index from persisted records so the coldest record
// sits at the victim end.
func (m *Manager) rebuildRecency(ctx context.Context) error {
	records, err := m.store.Find(ctx)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].LastAccessAt.Before(records[j].LastAccessAt)
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		m.recency.Touch(rec.ID)
	}
	return nil
}

// ContentHash returns the SHA-256 hex digest used for deduplication.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Create stores data and returns the resulting file. Content identical to an
// existing record does not upload again; the existing record is refreshed and
// returned instead. A zero ttl uses the configured default.
func (m *Manager) Create(ctx context.Context, data []byte, filename string, ttl time.Duration) (*File, error) {
	hash := ContentHash(data)

	// Concurrent creates of identical content collapse into one upload.
	v, err, _ := m.createGroup.Do(hash, func() (any, error) {
		return m.createOrRefresh(ctx, data, filename, hash, ttl)
	})
	if err != nil {
		return nil, err
	}
	return v.(*File), nil
}

func (m *Manager) createOrRefresh(ctx context.Context, data []byte, filename, hash string, ttl time.Duration) (*File, error) {
	existing, err := m.store.Find(ctx, meta.Eq(meta.FieldContentHash, hash))
	if err != nil {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}
	if len(existing) > 0 {
		rec := existing[0]
		m.touchRecord(ctx, &rec)
		m.metrics.IncDedupHit()
		slog.Debug("dedup hit", "id", rec.ID, "hash", hash)
		return m.fileFor(rec, data), nil
	}

	if ttl <= 0 {
		ttl = m.cfg.DefaultTTL
	}

	ext := imagetype.DetectExt(data, true)
	name := generateName(ext, filename, m.now())
	id := strings.TrimSuffix(name, extSuffix(name))

	res, err := m.active.Upload(ctx, data, name)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}

	now := m.now()
	rec := meta.Record{
		ID:             id,
		Path:           res.Key,
		Name:           name,
		ContentTypeExt: ext,
		ExpireAt:       now.Add(ttl),
		SizeBytes:      int64(len(data)),
		LastAccessAt:   now,
		AccessCount:    1,
		BackendType:    m.active.Kind(),
		PublicURL:      res.PublicURL,
		ContentHash:    hash,
	}
	if err := m.store.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist record %s: %w", id, err)
	}

	m.mu.Lock()
	m.recency.Touch(id)
	m.mu.Unlock()

	slog.Info("temp file created", "id", id, "backend", rec.BackendType, "size", rec.SizeBytes)
	return m.fileFor(rec, data), nil
}

// Get resolves idOrName (id first, then name) and returns the file with a
// lazy download handle. Access metadata is refreshed on every hit.
func (m *Manager) Get(ctx context.Context, idOrName string) (*File, error) {
	records, err := m.store.Find(ctx, meta.Eq(meta.FieldID, idOrName))
	if err != nil {
		return nil, fmt.Errorf("lookup by id: %w", err)
	}
	if len(records) == 0 {
		records, err = m.store.Find(ctx, meta.Eq(meta.FieldName, idOrName))
		if err != nil {
			return nil, fmt.Errorf("lookup by name: %w", err)
		}
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}

	rec := records[0]
	m.touchRecord(ctx, &rec)
	return m.fileFor(rec, nil), nil
}

// Remove deletes rec's payload and metadata. Backend failures are swallowed:
// losing an orphaned remote object is preferred over a stuck metadata row.
func (m *Manager) Remove(ctx context.Context, rec meta.Record) {
	// Deletes always go through the active backend, even for records written
	// under a backend that is no longer configured.
	if err := m.active.Delete(ctx, rec.Path); err != nil {
		m.metrics.IncDeleteError(string(m.active.Kind()))
		slog.Warn("backend delete failed", "id", rec.ID, "backend", m.active.Kind(), "err", err)
	}

	if err := m.store.Delete(ctx, meta.Eq(meta.FieldID, rec.ID)); err != nil {
		slog.Error("delete record", "id", rec.ID, "err", err)
	}

	m.mu.Lock()
	m.recency.Remove(rec.ID)
	m.mu.Unlock()
}

// touchRecord refreshes access metadata in the store and the recency index.
func (m *Manager) touchRecord(ctx context.Context, rec *meta.Record) {
	rec.LastAccessAt = m.now()
	rec.AccessCount++

	err := m.store.Update(ctx, meta.Fields{
		meta.FieldLastAccessAt: rec.LastAccessAt,
		meta.FieldAccessCount:  rec.AccessCount,
	}, meta.Eq(meta.FieldID, rec.ID))
	if err != nil {
		slog.Warn("refresh access metadata", "id", rec.ID, "err", err)
	}

	m.mu.Lock()
	m.recency.Touch(rec.ID)
	m.mu.Unlock()
}

// readBackend selects the backend serving rec's payload: the active backend
// when kinds match, the local backend for locally stored records, and the
// active backend as a best effort for records stored under a backend that is
// no longer configured.
func (m *Manager) readBackend(rec meta.Record) backend.Backend {
	switch {
	case rec.BackendType == m.active.Kind():
		return m.active
	case rec.BackendType == backend.KindLocal && m.local != nil:
		return m.local
	default:
		return m.active
	}
}

// fileFor builds the File handle for rec. When data is non-nil, Open serves
// it directly; otherwise Open downloads from the record's backend, purging
// the record when the payload has gone missing.
func (m *Manager) fileFor(rec meta.Record, data []byte) *File {
	f := &File{Record: rec, URL: m.resolveURL(rec)}

	if data != nil {
		f.open = func(ctx context.Context) (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
		return f
	}

	f.open = func(ctx context.Context) (io.ReadCloser, error) {
		payload, err := m.readBackend(rec).Download(ctx, rec.Path)
		if err != nil {
			// Metadata without payload is an integrity fault: purge the
			// record instead of surfacing the backend error.
			m.metrics.IncIntegrityFault()
			slog.Warn("payload missing, purging record", "id", rec.ID, "path", rec.Path, "err", err)
			if derr := m.store.Delete(ctx, meta.Eq(meta.FieldID, rec.ID)); derr != nil {
				slog.Error("purge record", "id", rec.ID, "err", derr)
			}
			m.mu.Lock()
			m.recency.Remove(rec.ID)
			m.mu.Unlock()
			return nil, ErrNotFound
		}

		if rec.ContentHash == "" {
			go m.backfillHash(rec.ID, payload)
		}
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	return f
}

// backfillHash computes and persists the content hash for a legacy record.
// Best effort: if the record was removed in the meantime the update matches
// zero rows and never resurrects the id.
func (m *Manager) backfillHash(id string, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hash := ContentHash(payload)
	err := m.store.Update(ctx, meta.Fields{meta.FieldContentHash: hash}, meta.Eq(meta.FieldID, id))
	if err != nil {
		slog.Debug("hash backfill failed", "id", id, "err", err)
	}
}

func (m *Manager) resolveURL(rec meta.Record) string {
	if rec.PublicURL != "" {
		return rec.PublicURL
	}
	if m.cfg.PublicBasePath == "" {
		return ""
	}
	return strings.TrimSuffix(m.cfg.PublicBasePath, "/") + "/temp/" + rec.Name
}

// Run executes the expiry/eviction sweep on a fixed interval until ctx is
// cancelled.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep removes expired records, then applies the size and count eviction
// policies.
func (m *Manager) Sweep(ctx context.Context) {
	expired, err := m.store.Find(ctx, meta.Lt(meta.FieldExpireAt, m.now()))
	if err != nil {
		slog.Error("find expired records", "err", err)
	}
	for _, rec := range expired {
		m.Remove(ctx, rec)
		m.metrics.IncExpired()
		slog.Info("temp file expired", "id", rec.ID, "expired_at", rec.ExpireAt)
	}

	m.evictBySize(ctx)
	m.evictByCount(ctx)
}

// generateName builds a collision-resistant filename: creation timestamp, a
// random suffix, and the detected image extension or the original one.
func generateName(detectedExt, original string, now time.Time) string {
	ext := detectedExt
	if ext == "" {
		ext = strings.TrimPrefix(extSuffix(original), ".")
	}

	name := fmt.Sprintf("%d_%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	if ext != "" {
		name += "." + ext
	}
	return name
}

func extSuffix(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx > 0 {
		return name[idx:]
	}
	return ""
}
