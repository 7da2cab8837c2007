package meta

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tempstore/internal/backend"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := OpenSQLite(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err, "OpenSQLite error")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRecord(id string, lastAccess time.Time) Record {
	return Record{
		ID:             id,
		Path:           "/data/temp/" + id + ".png",
		Name:           id + ".png",
		ContentTypeExt: "png",
		ExpireAt:       lastAccess.Add(24 * time.Hour),
		SizeBytes:      42,
		LastAccessAt:   lastAccess,
		AccessCount:    1,
		BackendType:    backend.KindLocal,
		ContentHash:    "hash-" + id,
	}
}

func TestInsertAndFind(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	rec := sampleRecord("abc", now)
	rec.PublicURL = "https://cdn.example.com/temp/abc.png"
	require.NoError(t, store.Insert(ctx, rec), "Insert error")

	got, err := store.Find(ctx, Eq(FieldID, "abc"))
	require.NoError(t, err, "Find by id error")
	require.Len(t, got, 1, "expected exactly one record")
	require.Equal(t, rec.Name, got[0].Name, "name mismatch")
	require.Equal(t, rec.PublicURL, got[0].PublicURL, "public URL mismatch")
	require.Equal(t, rec.ContentHash, got[0].ContentHash, "content hash mismatch")
	require.True(t, rec.LastAccessAt.Equal(got[0].LastAccessAt), "last access mismatch")

	got, err = store.Find(ctx, Eq(FieldName, "abc.png"))
	require.NoError(t, err, "Find by name error")
	require.Len(t, got, 1, "lookup by name should match")

	got, err = store.Find(ctx, Eq(FieldContentHash, "hash-abc"))
	require.NoError(t, err, "Find by hash error")
	require.Len(t, got, 1, "lookup by content hash should match")

	got, err = store.Find(ctx, Eq(FieldID, "missing"))
	require.NoError(t, err, "Find miss error")
	require.Empty(t, got, "no record should match an unknown id")
}

func TestFindExpiredRange(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := sampleRecord("old", now.Add(-48*time.Hour))
	old.ExpireAt = now.Add(-time.Hour)
	fresh := sampleRecord("fresh", now)
	fresh.ExpireAt = now.Add(time.Hour)

	require.NoError(t, store.Insert(ctx, old), "Insert old error")
	require.NoError(t, store.Insert(ctx, fresh), "Insert fresh error")

	expired, err := store.Find(ctx, Lt(FieldExpireAt, now))
	require.NoError(t, err, "Find expired error")
	require.Len(t, expired, 1, "only the expired record should match")
	require.Equal(t, "old", expired[0].ID, "wrong record matched the range filter")
}

func TestUpdateFields(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.Insert(ctx, sampleRecord("abc", now)), "Insert error")

	later := now.Add(time.Minute)
	err := store.Update(ctx, Fields{
		FieldLastAccessAt: later,
		FieldAccessCount:  int64(2),
	}, Eq(FieldID, "abc"))
	require.NoError(t, err, "Update error")

	got, err := store.Find(ctx, Eq(FieldID, "abc"))
	require.NoError(t, err, "Find error")
	require.Len(t, got, 1, "record should still exist")
	require.Equal(t, int64(2), got[0].AccessCount, "access count not updated")
	require.True(t, later.Equal(got[0].LastAccessAt), "last access not updated")

	// Updating a removed id matches zero rows and must not error or insert.
	err = store.Update(ctx, Fields{FieldContentHash: "x"}, Eq(FieldID, "missing"))
	require.NoError(t, err, "zero-row update should succeed")
	got, err = store.Find(ctx, Eq(FieldID, "missing"))
	require.NoError(t, err, "Find error")
	require.Empty(t, got, "zero-row update must not create a record")
}

func TestDelete(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Insert(ctx, sampleRecord("abc", now)), "Insert error")
	require.NoError(t, store.Delete(ctx, Eq(FieldID, "abc")), "Delete error")

	got, err := store.Find(ctx)
	require.NoError(t, err, "Find error")
	require.Empty(t, got, "record should be gone")

	// Deleting again is a no-op.
	require.NoError(t, store.Delete(ctx, Eq(FieldID, "abc")), "repeated Delete error")
}

func TestLegacyRowsDefaultToLocal(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	// Rows written before the backend_type and content_hash columns carried
	// values rely on the schema defaults.
	_, err := store.db.ExecContext(ctx,
		`INSERT INTO temp_files(id, path, name, expire_at, size_bytes, last_access_at, access_count)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		"legacy", "/data/temp/legacy.bin", "legacy.bin",
		time.Now().UTC().Add(time.Hour), 10, time.Now().UTC(), 1,
	)
	require.NoError(t, err, "raw insert error")

	got, err := store.Find(ctx, Eq(FieldID, "legacy"))
	require.NoError(t, err, "Find error")
	require.Len(t, got, 1, "legacy record should be readable")
	require.Equal(t, backend.KindLocal, got[0].BackendType, "legacy rows default to the local backend")
	require.Empty(t, got[0].ContentHash, "legacy rows have no content hash")
	require.Empty(t, got[0].ContentTypeExt, "legacy rows have no content type")
}

func TestRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Find(ctx, Eq("nope", 1))
	require.Error(t, err, "unknown filter field should be rejected")

	err = store.Update(ctx, Fields{"nope": 1}, Eq(FieldID, "x"))
	require.Error(t, err, "unknown update field should be rejected")

	_, err = store.Find(ctx, Filter{Field: FieldID, Op: "LIKE", Value: "%"})
	require.Error(t, err, "unknown operator should be rejected")
}
