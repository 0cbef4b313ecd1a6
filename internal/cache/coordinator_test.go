package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gavlarad/nozawa-backend-sub001/internal/provider"
	"github.com/Gavlarad/nozawa-backend-sub001/internal/reading"
	"github.com/Gavlarad/nozawa-backend-sub001/internal/store"
)

type payload struct {
	Value string `json:"value"`
}

type fakeFetcher struct {
	mu     sync.Mutex
	result provider.Result[payload]
	err    error
	calls  int
}

func (f *fakeFetcher) Fetch(ctx context.Context) (provider.Result[payload], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return provider.Result[payload]{}, f.err
	}
	return f.result, nil
}

type fakeStore struct {
	mu      sync.Mutex
	rows    map[string]store.Row
	loadErr error
	saveErr error
	upserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]store.Row)}
}

func (s *fakeStore) Load(_ context.Context, subjectID string) (*store.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	row, ok := s.rows[subjectID]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (s *fakeStore) Upsert(_ context.Context, row store.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.rows[row.SubjectID] = row
	return nil
}

func (s *fakeStore) Close() error { return nil }

func okResult(value string) provider.Result[payload] {
	return provider.Result[payload]{
		Payload: payload{Value: value},
		Origin:  reading.OriginProviderPrimary,
	}
}

func exhausted() error {
	return &provider.ExhaustedError{
		SubjectID: "s",
		Attempts: []*provider.AttemptError{
			{Provider: "primary", Kind: provider.KindTimeout, Err: context.DeadlineExceeded},
		},
	}
}

func newCoordinator(fetcher Fetcher[payload], st store.SnapshotStore) *Coordinator[payload] {
	return New("s", 10*time.Minute, fetcher, st, nil, nil, zerolog.Nop())
}

func TestGetFetchesThenServesFromMemory(t *testing.T) {
	fetcher := &fakeFetcher{result: okResult("v1")}
	st := newFakeStore()
	c := newCoordinator(fetcher, st)

	first, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reading.OriginProviderPrimary, first.Origin)
	assert.False(t, first.Stale)
	assert.Equal(t, 1, st.upserts, "every successful fetch performs exactly one upsert")

	// Repeated gets within the TTL hit the memory fast path: identical
	// FetchedAt, origin memory, no extra provider calls.
	for i := 0; i < 3; i++ {
		r, err := c.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, reading.OriginMemory, r.Origin)
		assert.True(t, r.FetchedAt.Equal(first.FetchedAt))
	}
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, 1, st.upserts)
}

func TestGetUsesPersistentTier(t *testing.T) {
	now := time.Now()
	st := newFakeStore()
	body, _ := json.Marshal(payload{Value: "persisted"})
	st.rows["s"] = store.Row{
		SubjectID: "s",
		FetchedAt: now.Add(-time.Minute),
		ExpiresAt: now.Add(9 * time.Minute),
		Origin:    string(reading.OriginProviderPrimary),
		Payload:   body,
	}

	fetcher := &fakeFetcher{result: okResult("live")}
	c := newCoordinator(fetcher, st)

	r, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reading.OriginPersistentStore, r.Origin)
	assert.Equal(t, "persisted", r.Payload.Value)
	assert.Zero(t, fetcher.calls, "fresh persisted row must not trigger a fetch")

	// The row also populated the memory slot.
	r2, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reading.OriginMemory, r2.Origin)
}

func TestGetDegradesToStalePersistedRow(t *testing.T) {
	now := time.Now()
	st := newFakeStore()
	body, _ := json.Marshal(payload{Value: "old"})
	st.rows["s"] = store.Row{
		SubjectID: "s",
		FetchedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-110 * time.Minute), // TTL=10m, expired long ago
		Origin:    string(reading.OriginProviderPrimary),
		Payload:   body,
	}

	fetcher := &fakeFetcher{err: exhausted()}
	c := newCoordinator(fetcher, st)

	r, err := c.Get(context.Background())
	require.NoError(t, err, "a stale reading is preferred over an error")
	assert.True(t, r.Stale)
	assert.NotEmpty(t, r.DegradationReason)
	assert.Equal(t, "old", r.Payload.Value)
	assert.Equal(t, reading.OriginPersistentStore, r.Origin)
}

func TestGetDegradesToExpiredMemory(t *testing.T) {
	fetcher := &fakeFetcher{result: okResult("v1")}
	c := newCoordinator(fetcher, newFakeStore())
	c.now = func() time.Time { return time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC) }

	_, err := c.Get(context.Background())
	require.NoError(t, err)

	// TTL expires, then all providers die.
	c.now = func() time.Time { return time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC) }
	fetcher.mu.Lock()
	fetcher.err = exhausted()
	fetcher.mu.Unlock()

	r, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, r.Stale)
	assert.Equal(t, "v1", r.Payload.Value)
}

func TestGetPropagatesWhenNothingCached(t *testing.T) {
	fetcher := &fakeFetcher{err: exhausted()}
	c := newCoordinator(fetcher, newFakeStore())

	_, err := c.Get(context.Background())
	require.Error(t, err)

	var exhaustedErr *provider.ExhaustedError
	assert.ErrorAs(t, err, &exhaustedErr)
}

func TestStoreWriteFailureIsSwallowed(t *testing.T) {
	st := newFakeStore()
	st.saveErr = errors.New("store down")
	fetcher := &fakeFetcher{result: okResult("v1")}
	c := newCoordinator(fetcher, st)

	r, err := c.Get(context.Background())
	require.NoError(t, err, "a successful fetch must be returned even if persistence is down")
	assert.Equal(t, "v1", r.Payload.Value)

	// And it is still cached in memory.
	r2, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reading.OriginMemory, r2.Origin)
}

func TestForceRefreshBypassesFreshness(t *testing.T) {
	fetcher := &fakeFetcher{result: okResult("v1")}
	c := newCoordinator(fetcher, newFakeStore())

	_, err := c.Get(context.Background())
	require.NoError(t, err)

	fetcher.mu.Lock()
	fetcher.result = okResult("v2")
	fetcher.mu.Unlock()

	r, err := c.ForceRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v2", r.Payload.Value)
	assert.Equal(t, 2, fetcher.calls)
}

func TestFallbackTagsSurviveToReading(t *testing.T) {
	fetcher := &fakeFetcher{result: provider.Result[payload]{
		Payload:        payload{Value: "b"},
		Origin:         reading.OriginProviderSecondary,
		Fallback:       true,
		FallbackReason: "primary: timeout",
	}}
	c := newCoordinator(fetcher, newFakeStore())

	r, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reading.OriginProviderSecondary, r.Origin)
	assert.True(t, r.Fallback)
	assert.Equal(t, "primary: timeout", r.FallbackReason)
}

func TestEnricherRunsOnFetchPath(t *testing.T) {
	fetcher := &fakeFetcher{result: okResult("raw")}
	enrich := func(p payload, _ time.Time) payload {
		p.Value = p.Value + "-enriched"
		return p
	}
	c := New[payload]("s", 10*time.Minute, fetcher, newFakeStore(), enrich, nil, zerolog.Nop())

	r, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "raw-enriched", r.Payload.Value)
}

func TestStatus(t *testing.T) {
	fetcher := &fakeFetcher{result: okResult("v1")}
	c := newCoordinator(fetcher, newFakeStore())

	st := c.Status()
	assert.False(t, st.HasMemoryData)
	assert.Equal(t, 10.0, st.ConfiguredTTLMinutes)

	_, err := c.Get(context.Background())
	require.NoError(t, err)

	st = c.Status()
	assert.True(t, st.HasMemoryData)
	assert.True(t, st.IsFresh)
	assert.GreaterOrEqual(t, st.MemoryAgeSeconds, 0.0)
}

func TestHasData(t *testing.T) {
	fetcher := &fakeFetcher{result: okResult("v1")}
	st := newFakeStore()
	c := newCoordinator(fetcher, st)

	assert.False(t, c.HasData(context.Background()))

	_, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, c.HasData(context.Background()))

	// A second coordinator over the same store sees the persisted row.
	c2 := newCoordinator(&fakeFetcher{err: exhausted()}, st)
	assert.True(t, c2.HasData(context.Background()))
}

func TestConcurrentGetsCoalesce(t *testing.T) {
	block := make(chan struct{})
	slow := &slowFetcher{release: block}
	c := newCoordinator(slow, newFakeStore())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background())
			assert.NoError(t, err)
		}()
	}

	// Give the goroutines time to pile onto the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(block)
	wg.Wait()

	assert.Equal(t, 1, slow.calls, "concurrent fetches for one subject must coalesce")
}

type ctxAwareFetcher struct {
	calls int
}

func (f *ctxAwareFetcher) Fetch(ctx context.Context) (provider.Result[payload], error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return provider.Result[payload]{}, err
	}
	return okResult("v1"), nil
}

func TestGetSurvivesCallerCancellation(t *testing.T) {
	fetcher := &ctxAwareFetcher{}
	c := newCoordinator(fetcher, newFakeStore())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A cold-cache fetch is shared by coalesced waiters; the first
	// caller's disconnect must not fail it for everyone.
	r, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", r.Payload.Value)
	assert.Equal(t, 1, fetcher.calls)
}

type slowFetcher struct {
	mu      sync.Mutex
	release chan struct{}
	calls   int
}

func (f *slowFetcher) Fetch(ctx context.Context) (provider.Result[payload], error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	<-f.release
	return okResult("slow"), nil
}
