package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver, no CGO
)

// SQLiteStore persists snapshots in a local SQLite database. This is the
// reference single-instance deployment backend.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL keeps concurrent readers from blocking the upsert path.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS snapshots (
		subject_id TEXT PRIMARY KEY,
		fetched_at TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		origin     TEXT NOT NULL,
		payload    BLOB NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, subjectID string) (*Row, error) {
	var (
		row     Row
		fetched string
		expires string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT subject_id, fetched_at, expires_at, origin, payload FROM snapshots WHERE subject_id = ?`,
		subjectID,
	).Scan(&row.SubjectID, &fetched, &expires, &row.Origin, &row.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if row.FetchedAt, err = time.Parse(time.RFC3339Nano, fetched); err != nil {
		return nil, fmt.Errorf("parse fetched_at: %w", err)
	}
	if row.ExpiresAt, err = time.Parse(time.RFC3339Nano, expires); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	return &row, nil
}

// Upsert keys on subject_id. The WHERE clause on the conflict branch makes
// the write last-write-wins on fetched_at when two instances race.
func (s *SQLiteStore) Upsert(ctx context.Context, row Row) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (subject_id, fetched_at, expires_at, origin, payload)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(subject_id) DO UPDATE SET
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at,
			origin     = excluded.origin,
			payload    = excluded.payload
		 WHERE excluded.fetched_at >= snapshots.fetched_at`,
		row.SubjectID,
		row.FetchedAt.UTC().Format(time.RFC3339Nano),
		row.ExpiresAt.UTC().Format(time.RFC3339Nano),
		row.Origin,
		row.Payload,
	)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
