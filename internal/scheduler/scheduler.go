// Package scheduler holds one-shot reminder jobs keyed by idempotency key and
// fires each of them once at its due time.
package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler delivers a fired job. Errors are reported, never retried.
type Handler func(ctx context.Context, job Job) error

// Job is a single timed firing.
type Job struct {
	Key    string
	FireAt time.Time
	// Grace is how late the job may still fire. Zero uses the scheduler default.
	Grace   time.Duration
	UserID  int64
	Payload any
	Handler Handler
}

// Info describes a pending job.
type Info struct {
	Key    string    `json:"key"`
	FireAt time.Time `json:"fire_at"`
	UserID int64     `json:"user_id"`
}

// Stats counts job outcomes since the scheduler was created.
type Stats struct {
	Scheduled uint64 `json:"scheduled"`
	Fired     uint64 `json:"fired"`
	Failed    uint64 `json:"failed"`
	Missed    uint64 `json:"missed"`
}

const (
	defaultGrace     = time.Hour
	defaultRetention = 48 * time.Hour
	dispatchBuffer   = 64
	pruneInterval    = time.Minute
)

// Scheduler is the single registry of pending reminder jobs.
type Scheduler struct {
	mu        sync.Mutex
	queue     jobQueue
	pending   map[string]*item
	fired     map[string]time.Time // recently fired or missed keys -> fire time
	seq       uint64
	stats     Stats
	lastPrune time.Time
	running   bool
	stopped   bool

	now       func() time.Time
	logger    *zap.Logger
	grace     time.Duration
	retention time.Duration

	wake     chan struct{}
	dispatch chan Job
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDefaultGrace sets the misfire window for jobs that do not carry one.
func WithDefaultGrace(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithRetention sets how long fired keys are remembered.
func WithRetention(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.retention = d
		}
	}
}

// New creates a stopped scheduler. Jobs may be added before Start.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		pending:   make(map[string]*item),
		fired:     make(map[string]time.Time),
		now:       time.Now,
		logger:    zap.NewNop(),
		grace:     defaultGrace,
		retention: defaultRetention,
		wake:      make(chan struct{}, 1),
		dispatch:  make(chan Job, dispatchBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("scheduler")
	return s
}

// Start launches the timer loop and the delivery worker.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.mu.Unlock()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.work(ctx)
	}()
	s.logger.Info("reminder scheduler started", zap.Int("pending", s.Len()))
}

// Stop halts the scheduler and waits for the in-flight delivery to return.
// Pending jobs are discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.logger.Info("reminder scheduler stopped")
}

// Schedule registers job unless its key is already pending or recently fired,
// or its fire time is not in the future. It reports whether the job was added.
func (s *Scheduler) Schedule(job Job) bool {
	if job.Key == "" || job.Handler == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	if _, ok := s.pending[job.Key]; ok {
		return false
	}
	if _, ok := s.fired[job.Key]; ok {
		return false
	}
	if !job.FireAt.After(s.now()) {
		s.logger.Debug("skipping past-due reminder",
			zap.String("key", job.Key),
			zap.Time("fire_at", job.FireAt),
		)
		return false
	}
	if job.Grace <= 0 {
		job.Grace = s.grace
	}

	it := &item{job: job, seq: s.seq}
	s.seq++
	heap.Push(&s.queue, it)
	s.pending[job.Key] = it
	s.stats.Scheduled++

	if s.queue[0] == it {
		s.signal()
	}

	s.logger.Debug("reminder scheduled",
		zap.String("key", job.Key),
		zap.Int64("user_id", job.UserID),
		zap.Time("fire_at", job.FireAt),
	)
	return true
}

// Has reports whether key is pending.
func (s *Scheduler) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Len returns the number of pending jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Next returns the earliest pending fire time.
func (s *Scheduler) Next() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return time.Time{}, false
	}
	return s.queue[0].job.FireAt, true
}

// Pending lists pending jobs ordered by fire time.
func (s *Scheduler) Pending() []Info {
	s.mu.Lock()
	infos := make([]Info, 0, len(s.queue))
	for _, it := range s.queue {
		infos = append(infos, Info{Key: it.job.Key, FireAt: it.job.FireAt, UserID: it.job.UserID})
	}
	s.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].FireAt.Before(infos[j].FireAt) })
	return infos
}

// Stats returns a snapshot of the outcome counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// signal wakes the loop; callers hold mu.
func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run sleeps until the earliest job is due, hands due jobs to the worker and
// recomputes the wake-up whenever the head of the queue changes.
func (s *Scheduler) run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		for _, job := range s.collectDue(s.now()) {
			select {
			case s.dispatch <- job:
			case <-ctx.Done():
				return
			}
		}

		var fire <-chan time.Time
		if next, ok := s.Next(); ok {
			wait := next.Sub(s.now())
			if wait < 0 {
				wait = 0
			}
			timer.Reset(wait)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-fire:
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

// collectDue pops every job due at now. Jobs later than their grace window
// are dropped. Popped keys are remembered so they cannot be scheduled again.
func (s *Scheduler) collectDue(now time.Time) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Job
	for len(s.queue) > 0 && !s.queue[0].job.FireAt.After(now) {
		it := heap.Pop(&s.queue).(*item)
		job := it.job
		delete(s.pending, job.Key)
		s.fired[job.Key] = job.FireAt

		if late := now.Sub(job.FireAt); late > job.Grace {
			s.stats.Missed++
			s.logMissed(job, late)
			continue
		}
		due = append(due, job)
	}

	if now.Sub(s.lastPrune) >= pruneInterval {
		s.pruneFired(now)
		s.lastPrune = now
	}
	return due
}

// pruneFired forgets keys older than the retention window; callers hold mu.
func (s *Scheduler) pruneFired(now time.Time) {
	for key, at := range s.fired {
		if now.Sub(at) > s.retention {
			delete(s.fired, key)
		}
	}
}

// work delivers dispatched jobs one at a time, in fire order.
func (s *Scheduler) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.dispatch:
			s.fire(ctx, job)
		}
	}
}

// fire delivers job unless it waited behind slower deliveries past its
// grace window.
func (s *Scheduler) fire(ctx context.Context, job Job) {
	if late := s.now().Sub(job.FireAt); late > job.Grace {
		s.mu.Lock()
		s.stats.Missed++
		s.mu.Unlock()
		s.logMissed(job, late)
		return
	}

	err := s.invoke(ctx, job)

	s.mu.Lock()
	if err != nil {
		s.stats.Failed++
	} else {
		s.stats.Fired++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("reminder delivery failed",
			zap.String("key", job.Key),
			zap.Int64("user_id", job.UserID),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("reminder fired",
		zap.String("key", job.Key),
		zap.Int64("user_id", job.UserID),
		zap.Time("fire_at", job.FireAt),
	)
}

func (s *Scheduler) logMissed(job Job, late time.Duration) {
	s.logger.Warn("reminder missed its grace window",
		zap.String("key", job.Key),
		zap.Int64("user_id", job.UserID),
		zap.Time("fire_at", job.FireAt),
		zap.Duration("late", late),
	)
}

// invoke runs the handler, turning a panic into an error.
func (s *Scheduler) invoke(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return job.Handler(ctx, job)
}
