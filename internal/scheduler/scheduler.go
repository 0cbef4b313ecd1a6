// Package scheduler drives proactive cache refreshes. A set of cron-shaped
// daily windows fires triggers; each trigger passes two guard predicates
// (seasonal window, minimum inter-refresh interval) before forcing a
// refresh. Fetch failures are logged and swallowed: the scheduler never
// escalates to a process-level failure.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Gavlarad/nozawa-backend-sub001/internal/metrics"
)

// Target is one subject's refresh handle, implemented by the cache
// coordinators.
type Target interface {
	SubjectID() string
	Refresh(ctx context.Context) error
	HasData(ctx context.Context) bool
}

// Config holds the scheduler's externally supplied policy.
type Config struct {
	// CronWindows are standard 5-field cron expressions evaluated in Zone.
	// The reference table is dense near dawn, sparse midday, with one
	// final evening trigger.
	CronWindows []string
	// MinimumInterval bounds damage from a misconfigured or duplicated
	// trigger source.
	MinimumInterval time.Duration
	// Season is the active-season gate; outside it triggers are no-ops.
	Season SeasonWindow
	// Zone is the resort's timezone, used for both cron evaluation and the
	// season gate.
	Zone *time.Location
	// RefreshTimeout bounds one full refresh run.
	RefreshTimeout time.Duration
}

type state int

const (
	stateIdle state = iota
	stateRefreshing
)

// Scheduler owns the process-wide refresh state: lastAttemptAt, the guard
// configuration, and the idle/refreshing state machine. Mutated only here,
// never persisted.
type Scheduler struct {
	cfg     Config
	targets []Target
	cron    *gocron.Scheduler
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu            sync.Mutex
	st            state
	lastAttemptAt time.Time

	now func() time.Time
}

// New builds a Scheduler over the given targets.
func New(cfg Config, targets []Target, m *metrics.Metrics, log zerolog.Logger) *Scheduler {
	if cfg.Zone == nil {
		cfg.Zone = time.UTC
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 60 * time.Second
	}
	return &Scheduler{
		cfg:     cfg,
		targets: targets,
		metrics: m,
		log:     log.With().Str("component", "scheduler").Logger(),
		now:     time.Now,
	}
}

// Start registers the cron windows and starts the underlying scheduler. If
// the season gate currently passes and a target has no cached reading at
// all, one immediate out-of-band refresh runs before the first scheduled
// trigger.
func (s *Scheduler) Start() error {
	s.cron = gocron.NewScheduler(s.cfg.Zone)

	for _, expr := range s.cfg.CronWindows {
		if _, err := s.cron.Cron(expr).Do(s.trigger); err != nil {
			return fmt.Errorf("register cron window %q: %w", expr, err)
		}
	}

	s.coldStart()

	s.cron.StartAsync()
	s.log.Info().
		Strs("windows", s.cfg.CronWindows).
		Dur("minInterval", s.cfg.MinimumInterval).
		Msg("refresh scheduler started")
	return nil
}

// Stop halts future triggers. An in-flight refresh finishes on its own.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Scheduler) coldStart() {
	now := s.now()
	if !s.cfg.Season.Contains(now.In(s.cfg.Zone)) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RefreshTimeout)
	defer cancel()

	cold := false
	for _, t := range s.targets {
		if !t.HasData(ctx) {
			cold = true
			break
		}
	}
	if !cold {
		return
	}

	s.log.Info().Msg("cold start: no cached reading, refreshing before first scheduled trigger")
	go s.trigger()
}

// trigger is one scheduled tick: evaluate the guards, and if both pass run
// a refresh for every target. lastAttemptAt is recorded before the fetch
// starts so a slow or hanging fetch cannot let a re-entrant trigger bypass
// the interval guard.
func (s *Scheduler) trigger() {
	if !s.begin() {
		return
	}
	defer s.end()

	runID := uuid.NewString()
	log := s.log.With().Str("run", runID).Logger()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RefreshTimeout)
	defer cancel()

	failed := 0
	for _, t := range s.targets {
		if err := t.Refresh(ctx); err != nil {
			failed++
			log.Error().Err(err).Str("subject", t.SubjectID()).Msg("scheduled refresh failed")
			continue
		}
		log.Info().Str("subject", t.SubjectID()).Msg("scheduled refresh completed")
	}

	if failed > 0 {
		s.metrics.RefreshRun("failed")
		return
	}
	s.metrics.RefreshRun("ok")
}

// begin evaluates the guards and transitions idle -> refreshing. Returns
// false when the trigger is a no-op.
func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if !s.cfg.Season.Contains(now.In(s.cfg.Zone)) {
		s.metrics.RefreshRun("skipped-season")
		s.log.Debug().Msg("trigger outside season window; skipping")
		return false
	}

	if s.st == stateRefreshing || (!s.lastAttemptAt.IsZero() && now.Sub(s.lastAttemptAt) < s.cfg.MinimumInterval) {
		s.metrics.RefreshRun("skipped-interval")
		s.log.Debug().Time("lastAttempt", s.lastAttemptAt).Msg("trigger within minimum interval; skipping")
		return false
	}

	s.lastAttemptAt = now
	s.st = stateRefreshing
	return true
}

func (s *Scheduler) end() {
	s.mu.Lock()
	s.st = stateIdle
	s.mu.Unlock()
}
