package tempfile

import (
	"context"
	"log/slog"
	"sort"

	"tempstore/internal/meta"
)

// coldestFirst orders records by ascending last access time. The persisted
// timestamp, not the in-memory recency index, is the eviction ranking source
// so that ordering survives restarts.
func coldestFirst(records []meta.Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].LastAccessAt.Before(records[j].LastAccessAt)
	})
}

// evictBySize removes the coldest records until the aggregate payload size is
// at or under the hysteresis share of the byte budget.
func (m *Manager) evictBySize(ctx context.Context) {
	if m.cfg.MaxStorageBytes <= 0 {
		return
	}

	records, err := m.store.Find(ctx)
	if err != nil {
		slog.Error("load records for size eviction", "err", err)
		return
	}

	var total int64
	for _, rec := range records {
		total += rec.SizeBytes
	}
	if total <= m.cfg.MaxStorageBytes {
		return
	}

	target := m.cfg.MaxStorageBytes * hysteresisPct / 100
	coldestFirst(records)

	for _, rec := range records {
		if total <= target {
			break
		}
		m.Remove(ctx, rec)
		m.metrics.IncEvicted("size")
		total -= rec.SizeBytes
		slog.Info("temp file evicted", "id", rec.ID, "policy", "size", "size", rec.SizeBytes)
	}
}

// evictByCount removes the coldest records until the record count is at or
// under the hysteresis share of the count budget.
func (m *Manager) evictByCount(ctx context.Context) {
	if m.cfg.MaxStorageCount <= 0 {
		return
	}

	records, err := m.store.Find(ctx)
	if err != nil {
		slog.Error("load records for count eviction", "err", err)
		return
	}
	if int64(len(records)) <= m.cfg.MaxStorageCount {
		return
	}

	target := m.cfg.MaxStorageCount * hysteresisPct / 100
	coldestFirst(records)

	remaining := int64(len(records))
	for _, rec := range records {
		if remaining <= target {
			break
		}
		m.Remove(ctx, rec)
		m.metrics.IncEvicted("count")
		remaining--
		slog.Info("temp file evicted", "id", rec.ID, "policy", "count")
	}
}
