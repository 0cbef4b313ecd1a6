// Package cache implements the three-tier lookup at the center of the
// backend: process memory, then the persistent snapshot store, then the
// provider chain. On total provider failure the coordinator degrades to the
// last known snapshot marked stale instead of failing the caller.
package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Gavlarad/nozawa-backend-sub001/internal/metrics"
	"github.com/Gavlarad/nozawa-backend-sub001/internal/provider"
	"github.com/Gavlarad/nozawa-backend-sub001/internal/reading"
	"github.com/Gavlarad/nozawa-backend-sub001/internal/store"
)

// Enricher derives aggregate fields on a freshly fetched payload (snow
// summaries, open-lift counts). It must be pure; it runs on the fetch path
// before the payload is persisted.
type Enricher[P any] func(P, time.Time) P

// Fetcher is the provider-chain contract the coordinator consumes.
// Implemented by provider.Chain.
type Fetcher[P any] interface {
	Fetch(ctx context.Context) (provider.Result[P], error)
}

// Coordinator owns the in-memory Reading slot for one subject and
// orchestrates the memory -> store -> providers lookup. Safe for concurrent
// use: the slot is swapped as a single reference, and concurrent fetches for
// the subject coalesce into one outbound call.
type Coordinator[P any] struct {
	subjectID string
	ttl       time.Duration
	chain     Fetcher[P]
	store     store.SnapshotStore
	enrich    Enricher[P]
	metrics   *metrics.Metrics
	log       zerolog.Logger

	slot   atomic.Pointer[reading.Reading[P]]
	flight singleflight.Group

	now func() time.Time
}

// Status is the operational introspection view for one subject.
type Status struct {
	SubjectID            string  `json:"subjectId"`
	HasMemoryData        bool    `json:"hasMemoryData"`
	MemoryAgeSeconds     float64 `json:"memoryAgeSeconds"`
	IsFresh              bool    `json:"isFresh"`
	ConfiguredTTLMinutes float64 `json:"configuredTTLMinutes"`
}

// New builds a coordinator. The TTL applies uniformly to the memory and
// persistent tiers so two processes never disagree about freshness. enrich
// and m may be nil.
func New[P any](
	subjectID string,
	ttl time.Duration,
	chain Fetcher[P],
	snapshots store.SnapshotStore,
	enrich Enricher[P],
	m *metrics.Metrics,
	log zerolog.Logger,
) *Coordinator[P] {
	return &Coordinator[P]{
		subjectID: subjectID,
		ttl:       ttl,
		chain:     chain,
		store:     snapshots,
		enrich:    enrich,
		metrics:   m,
		log:       log.With().Str("subject", subjectID).Logger(),
		now:       time.Now,
	}
}

func (c *Coordinator[P]) SubjectID() string { return c.subjectID }

// Get serves a Reading from the freshest available tier. It only returns an
// error when no provider succeeded and no snapshot of any age exists.
func (c *Coordinator[P]) Get(ctx context.Context) (reading.Reading[P], error) {
	now := c.now()

	if mem := c.slot.Load(); mem != nil && mem.Fresh(now) {
		c.metrics.Lookup(c.subjectID, "memory")
		c.metrics.ObserveMemoryAge(c.subjectID, mem.Age(now).Seconds())
		r := *mem
		r.Origin = reading.OriginMemory
		return r, nil
	}

	if r, ok := c.loadPersisted(ctx, now); ok {
		c.metrics.Lookup(c.subjectID, "persistent-store")
		c.slot.Store(&r)
		return r, nil
	}

	return c.refresh(ctx)
}

// ForceRefresh always goes to the provider chain, bypassing freshness
// checks. Used by the refresh scheduler.
func (c *Coordinator[P]) ForceRefresh(ctx context.Context) (reading.Reading[P], error) {
	return c.refresh(ctx)
}

// Refresh is ForceRefresh without the Reading, for callers that only care
// about the outcome.
func (c *Coordinator[P]) Refresh(ctx context.Context) error {
	_, err := c.ForceRefresh(ctx)
	return err
}

// HasData reports whether any snapshot exists in memory or in the store,
// regardless of age. The scheduler uses it for its cold-start check.
func (c *Coordinator[P]) HasData(ctx context.Context) bool {
	if c.slot.Load() != nil {
		return true
	}
	if c.store == nil {
		return false
	}
	row, err := c.store.Load(ctx, c.subjectID)
	return err == nil && row != nil
}

// Status reports the memory tier's state for operational monitoring.
func (c *Coordinator[P]) Status() Status {
	now := c.now()
	st := Status{
		SubjectID:            c.subjectID,
		ConfiguredTTLMinutes: c.ttl.Minutes(),
	}
	if mem := c.slot.Load(); mem != nil {
		st.HasMemoryData = true
		st.MemoryAgeSeconds = mem.Age(now).Seconds()
		st.IsFresh = mem.Fresh(now)
	}
	return st
}

// loadPersisted returns a fresh Reading from the persistent tier, if one
// exists. Store read errors are logged and treated as a miss.
func (c *Coordinator[P]) loadPersisted(ctx context.Context, now time.Time) (reading.Reading[P], bool) {
	var zero reading.Reading[P]
	if c.store == nil {
		return zero, false
	}

	row, err := c.store.Load(ctx, c.subjectID)
	if err != nil {
		c.log.Warn().Err(err).Msg("snapshot store read failed")
		return zero, false
	}
	if row == nil || !now.Before(row.ExpiresAt) {
		return zero, false
	}

	r, err := c.rowToReading(row)
	if err != nil {
		c.log.Warn().Err(err).Msg("discarding undecodable persisted snapshot")
		return zero, false
	}
	r.Origin = reading.OriginPersistentStore
	return r, true
}

// refresh performs the provider fetch, coalescing concurrent calls for this
// subject into a single outbound call. The fetch runs detached from the
// first caller's cancellation: a disconnecting caller must not fail every
// coalesced waiter. The per-provider timeout still bounds it.
func (c *Coordinator[P]) refresh(ctx context.Context) (reading.Reading[P], error) {
	fetchCtx := context.WithoutCancel(ctx)
	v, err, _ := c.flight.Do(c.subjectID, func() (interface{}, error) {
		r, err := c.fetchOnce(fetchCtx)
		if err != nil {
			return nil, err
		}
		return r, nil
	})
	if err != nil {
		var zero reading.Reading[P]
		return zero, err
	}
	return v.(reading.Reading[P]), nil
}

func (c *Coordinator[P]) fetchOnce(ctx context.Context) (reading.Reading[P], error) {
	now := c.now()

	res, err := c.chain.Fetch(ctx)
	if err != nil {
		return c.degrade(ctx, err)
	}

	payload := res.Payload
	if c.enrich != nil {
		payload = c.enrich(payload, now)
	}

	r := reading.Reading[P]{
		SubjectID:      c.subjectID,
		FetchedAt:      now,
		ExpiresAt:      now.Add(c.ttl),
		Origin:         res.Origin,
		Fallback:       res.Fallback,
		FallbackReason: res.FallbackReason,
		Payload:        payload,
	}

	c.persist(ctx, r)
	c.slot.Store(&r)
	c.metrics.Lookup(c.subjectID, "provider")
	return r, nil
}

// persist upserts the snapshot. A store write failure must never fail the
// read: it is logged, counted, and swallowed.
func (c *Coordinator[P]) persist(ctx context.Context, r reading.Reading[P]) {
	if c.store == nil {
		return
	}

	payload, err := json.Marshal(r.Payload)
	if err != nil {
		c.log.Error().Err(err).Msg("snapshot payload encode failed")
		return
	}

	row := store.Row{
		SubjectID: r.SubjectID,
		FetchedAt: r.FetchedAt,
		ExpiresAt: r.ExpiresAt,
		Origin:    string(r.Origin),
		Payload:   payload,
	}
	if err := c.store.Upsert(ctx, row); err != nil {
		c.log.Error().Err(err).Msg("snapshot store write failed")
	}
}

// degrade serves the last known snapshot, of any age, marked stale. Memory
// is preferred over the persistent row when both exist. Only when neither
// exists is the provider failure propagated.
func (c *Coordinator[P]) degrade(ctx context.Context, cause error) (reading.Reading[P], error) {
	record := func(attempts []*provider.AttemptError) {
		for _, a := range attempts {
			c.metrics.ProviderFailure(a.Provider, string(a.Kind))
		}
	}
	var exhausted *provider.ExhaustedError
	if errors.As(cause, &exhausted) {
		record(exhausted.Attempts)
	}

	if mem := c.slot.Load(); mem != nil {
		c.metrics.Lookup(c.subjectID, "stale")
		r := *mem
		r.Stale = true
		r.DegradationReason = cause.Error()
		c.log.Warn().Err(cause).Msg("all providers failed; serving stale memory snapshot")
		return r, nil
	}

	if c.store != nil {
		row, err := c.store.Load(ctx, c.subjectID)
		if err == nil && row != nil {
			if r, convErr := c.rowToReading(row); convErr == nil {
				c.metrics.Lookup(c.subjectID, "stale")
				r.Origin = reading.OriginPersistentStore
				r.Stale = true
				r.DegradationReason = cause.Error()
				c.slot.Store(&r)
				c.log.Warn().Err(cause).Msg("all providers failed; serving stale persisted snapshot")
				return r, nil
			}
		}
	}

	c.metrics.Lookup(c.subjectID, "miss")
	var zero reading.Reading[P]
	return zero, cause
}

func (c *Coordinator[P]) rowToReading(row *store.Row) (reading.Reading[P], error) {
	var r reading.Reading[P]
	if err := json.Unmarshal(row.Payload, &r.Payload); err != nil {
		return r, err
	}
	r.SubjectID = row.SubjectID
	r.FetchedAt = row.FetchedAt
	r.ExpiresAt = row.ExpiresAt
	return r, nil
}
