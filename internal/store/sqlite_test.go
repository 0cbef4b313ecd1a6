package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func row(subjectID string, fetchedAt time.Time) Row {
	return Row{
		SubjectID: subjectID,
		FetchedAt: fetchedAt,
		ExpiresAt: fetchedAt.Add(10 * time.Minute),
		Origin:    "provider-primary",
		Payload:   []byte(`{"value":"x"}`),
	}
}

func TestLoadAbsent(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Load(context.Background(), "nozawa:weather")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertRoundTrip(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, s.Upsert(context.Background(), row("nozawa:weather", now)))

	got, err := s.Load(context.Background(), "nozawa:weather")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "nozawa:weather", got.SubjectID)
	assert.True(t, got.FetchedAt.Equal(now))
	assert.True(t, got.ExpiresAt.Equal(now.Add(10*time.Minute)))
	assert.JSONEq(t, `{"value":"x"}`, string(got.Payload))
}

func TestUpsertNeverDuplicates(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		r := row("nozawa:lifts", now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.Upsert(context.Background(), r))
	}

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM snapshots WHERE subject_id = ?`, "nozawa:lifts").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpsertLastWriteWinsOnFetchedAt(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	newer := row("nozawa:weather", now)
	require.NoError(t, s.Upsert(context.Background(), newer))

	// A delayed writer with an older snapshot must not clobber the row.
	older := row("nozawa:weather", now.Add(-time.Hour))
	older.Payload = []byte(`{"value":"stale"}`)
	require.NoError(t, s.Upsert(context.Background(), older))

	got, err := s.Load(context.Background(), "nozawa:weather")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.FetchedAt.Equal(now))
	assert.JSONEq(t, `{"value":"x"}`, string(got.Payload))
}

func TestSubjectsAreIsolated(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.Upsert(context.Background(), row("nozawa:weather", now)))
	require.NoError(t, s.Upsert(context.Background(), row("nozawa:lifts", now)))

	got, err := s.Load(context.Background(), "nozawa:weather")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "nozawa:weather", got.SubjectID)
}
