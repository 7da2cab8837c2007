package meta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tempstore/internal/backend"
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) the record database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("db path must not be empty")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS temp_files (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			name TEXT NOT NULL,
			content_type_ext TEXT,
			expire_at TIMESTAMP NOT NULL,
			size_bytes INTEGER NOT NULL,
			last_access_at TIMESTAMP NOT NULL,
			access_count INTEGER NOT NULL,
			backend_type TEXT NOT NULL DEFAULT 'local',
			public_url TEXT,
			content_hash TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_temp_files_hash ON temp_files(content_hash);`,
		`CREATE INDEX IF NOT EXISTS idx_temp_files_expire ON temp_files(expire_at);`,
		`CREATE INDEX IF NOT EXISTS idx_temp_files_access ON temp_files(last_access_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var allowedFields = map[string]bool{
	FieldID:           true,
	FieldName:         true,
	FieldContentHash:  true,
	FieldExpireAt:     true,
	FieldLastAccessAt: true,
	FieldAccessCount:  true,
	FieldSizeBytes:    true,
}

func buildWhere(filters []Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	var clauses []string
	var args []any
	for _, f := range filters {
		if !allowedFields[f.Field] {
			return "", nil, fmt.Errorf("unknown filter field: %q", f.Field)
		}
		switch f.Op {
		case OpEq, OpLt, OpGt:
		default:
			return "", nil, fmt.Errorf("unknown filter op: %q", f.Op)
		}
		clauses = append(clauses, fmt.Sprintf("%s %s ?", f.Field, f.Op))
		args = append(args, normalize(f.Value))
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func normalize(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC()
	}
	return v
}

// Insert persists a new record.
func (s *SQLiteStore) Insert(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO temp_files(
			id, path, name, content_type_ext, expire_at, size_bytes,
			last_access_at, access_count, backend_type, public_url, content_hash
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Path, rec.Name, nullable(rec.ContentTypeExt),
		rec.ExpireAt.UTC(), rec.SizeBytes, rec.LastAccessAt.UTC(),
		rec.AccessCount, string(rec.BackendType), nullable(rec.PublicURL),
		rec.ContentHash,
	)
	if err != nil {
		return fmt.Errorf("insert record %s: %w", rec.ID, err)
	}
	return nil
}

// Find returns all records matching every filter.
func (s *SQLiteStore) Find(ctx context.Context, filters ...Filter) ([]Record, error) {
	where, args, err := buildWhere(filters)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, name, content_type_ext, expire_at, size_bytes,
			last_access_at, access_count, backend_type, public_url, content_hash
		 FROM temp_files`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec         Record
			contentType sql.NullString
			backendType sql.NullString
			publicURL   sql.NullString
		)
		if err := rows.Scan(
			&rec.ID, &rec.Path, &rec.Name, &contentType, &rec.ExpireAt,
			&rec.SizeBytes, &rec.LastAccessAt, &rec.AccessCount,
			&backendType, &publicURL, &rec.ContentHash,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.ContentTypeExt = contentType.String
		rec.PublicURL = publicURL.String
		// Legacy rows predate the backend_type column; they were always
		// written by the local backend.
		rec.BackendType = backend.Kind(backendType.String)
		if rec.BackendType == "" {
			rec.BackendType = backend.KindLocal
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Update sets fields on all records matching every filter.
func (s *SQLiteStore) Update(ctx context.Context, fields Fields, filters ...Filter) error {
	if len(fields) == 0 {
		return errors.New("update requires at least one field")
	}

	var sets []string
	var args []any
	for field, value := range fields {
		if !allowedFields[field] {
			return fmt.Errorf("unknown update field: %q", field)
		}
		sets = append(sets, field+" = ?")
		args = append(args, normalize(value))
	}

	where, whereArgs, err := buildWhere(filters)
	if err != nil {
		return err
	}
	args = append(args, whereArgs...)

	_, err = s.db.ExecContext(ctx,
		`UPDATE temp_files SET `+strings.Join(sets, ", ")+where, args...)
	if err != nil {
		return fmt.Errorf("update records: %w", err)
	}
	return nil
}

// Delete removes all records matching every filter.
func (s *SQLiteStore) Delete(ctx context.Context, filters ...Filter) error {
	where, args, err := buildWhere(filters)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM temp_files`+where, args...); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
