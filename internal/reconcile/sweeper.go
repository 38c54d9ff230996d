// Package reconcile re-derives the reminders that should be pending from
// stored state and submits them to the job scheduler.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shift-reminder/backend/internal/notify"
	"github.com/shift-reminder/backend/internal/scheduler"
	"github.com/shift-reminder/backend/internal/shift"
	"github.com/shift-reminder/backend/internal/storage/models"
	"go.uber.org/zap"
)

// UserStore loads users and their preferences.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

// SlotStore lists class slots by weekday.
type SlotStore interface {
	ListByDay(ctx context.Context, userID int64, day models.DayOfWeek) ([]models.ClassSlot, error)
}

// EventStore reads one-off events.
type EventStore interface {
	GetByID(ctx context.Context, userID, id int64) (*models.Event, error)
	List(ctx context.Context, userID int64, from, to *time.Time) ([]models.Event, error)
}

// JobScheduler accepts jobs idempotently by key.
type JobScheduler interface {
	Schedule(job scheduler.Job) bool
}

// Stores groups the storage collaborators of a Sweeper.
type Stores struct {
	Users   UserStore
	Anchors shift.AnchorStore
	Slots   SlotStore
	Events  EventStore
}

// Config controls grace windows and sweep times.
type Config struct {
	// Location is the default timezone, used for cron triggers and for
	// users whose timezone cannot be loaded.
	Location    *time.Location
	EventGrace  time.Duration
	ClassGrace  time.Duration
	DailySpec   string
	NightlySpec string
}

// Sweep names, also used as log fields and status keys.
const (
	SweepDaily   = "daily_class"
	SweepNightly = "nightly_lookahead"
)

// Sweeper schedules event and class reminders and sends off-day digests.
type Sweeper struct {
	stores Stores
	jobs   JobScheduler
	sender notify.Sender
	cfg    Config
	now    func() time.Time
	logger *zap.Logger

	cron    *cron.Cron
	entries map[string]cron.EntryID
	mu      sync.RWMutex
}

// NewSweeper creates a sweeper. Call Start to register the daily triggers.
func NewSweeper(stores Stores, jobs JobScheduler, sender notify.Sender, cfg Config, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Sweeper{
		stores:  stores,
		jobs:    jobs,
		sender:  sender,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger.Named("reconcile"),
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(cfg.Location)),
		entries: make(map[string]cron.EntryID),
	}
}

// WithClock replaces the time source.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Start registers the daily class sweep and the nightly look-ahead.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	triggers := []struct {
		name string
		spec string
		run  func(ctx context.Context) (int, error)
	}{
		{SweepDaily, s.cfg.DailySpec, s.DailyClassSweep},
		{SweepNightly, s.cfg.NightlySpec, s.NightlyLookahead},
	}
	for _, tr := range triggers {
		tr := tr
		id, err := s.cron.AddFunc(tr.spec, func() {
			if _, err := tr.run(context.Background()); err != nil {
				s.logger.Error("sweep failed", zap.String("sweep", tr.name), zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("registering %s sweep %q: %w", tr.name, tr.spec, err)
		}
		s.entries[tr.name] = id
	}

	s.cron.Start()
	s.logger.Info("sweeps registered",
		zap.String("daily", s.cfg.DailySpec), zap.String("nightly", s.cfg.NightlySpec),
		zap.String("location", s.cfg.Location.String()))
	return nil
}

// Stop halts the cron triggers and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("sweeps stopped")
}

// NextRuns returns the next trigger time of each registered sweep.
func (s *Sweeper) NextRuns() map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	next := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		next[name] = s.cron.Entry(id).Next
	}
	return next
}

// location resolves u's timezone, falling back to the default.
func (s *Sweeper) location(u *models.User) *time.Location {
	loc, ok := u.Location(s.cfg.Location)
	if !ok {
		s.logger.Warn("unknown timezone, using default",
			zap.Int64("user_id", u.ID), zap.String("timezone", u.Timezone))
	}
	return loc
}
