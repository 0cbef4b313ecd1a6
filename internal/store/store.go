// Package store provides durable single-row-per-subject snapshot storage.
// The cache coordinator is the only writer; any process instance may read.
// Upserts are idempotent and last-write-wins on FetchedAt, so duplicate
// concurrent fetches across instances are wasteful but never unsafe.
package store

import (
	"context"
	"time"
)

// Row is the persisted form of a Reading. The payload is kept as serialized
// JSON so the store does not depend on subject-specific types.
type Row struct {
	SubjectID string    `json:"subjectId"`
	FetchedAt time.Time `json:"fetchedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Origin    string    `json:"origin"`
	Payload   []byte    `json:"payload"`
}

// SnapshotStore is the persistence contract consumed by the coordinator.
type SnapshotStore interface {
	// Load returns the row for a subject, or (nil, nil) when absent.
	Load(ctx context.Context, subjectID string) (*Row, error)
	// Upsert writes the row keyed by subject id. It must never create a
	// second row for the same subject, and must keep the newer FetchedAt
	// when racing with another writer.
	Upsert(ctx context.Context, row Row) error
	Close() error
}
