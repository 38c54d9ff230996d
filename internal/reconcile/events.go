package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/shift-reminder/backend/internal/notify"
	"github.com/shift-reminder/backend/internal/reminder"
	"github.com/shift-reminder/backend/internal/scheduler"
	"github.com/shift-reminder/backend/internal/storage/models"
	"go.uber.org/zap"
)

// eventPayload identifies the event to re-read when its reminder fires.
type eventPayload struct {
	EventID int64
}

// ScheduleEvent submits one job per lead time of e. It returns how many
// jobs were newly accepted; stale and already pending ones are not counted.
func (s *Sweeper) ScheduleEvent(u *models.User, e models.Event) int {
	leads := reminder.ParseLeadTimes(e.Reminders())
	if len(leads) == 0 {
		return 0
	}

	start := e.StartIn(s.location(u))
	added := 0
	for _, fireAt := range reminder.Project(start, leads) {
		job := scheduler.Job{
			Key:     reminder.EventKey(u.ID, e.ID, fireAt),
			FireAt:  fireAt,
			Grace:   s.cfg.EventGrace,
			UserID:  u.ID,
			Payload: eventPayload{EventID: e.ID},
			Handler: s.fireEvent,
		}
		if s.jobs.Schedule(job) {
			added++
		}
	}
	return added
}

// ScheduleUserEvent loads the owner of e and schedules its reminders.
func (s *Sweeper) ScheduleUserEvent(ctx context.Context, e models.Event) (int, error) {
	u, err := s.stores.Users.GetByID(ctx, e.UserID)
	if err != nil {
		return 0, fmt.Errorf("loading user: %w", err)
	}
	if u == nil {
		u = &models.User{ID: e.UserID}
	}
	return s.ScheduleEvent(u, e), nil
}

// StartupSweep schedules reminders for every future event of every user.
// Running it again only re-submits keys the scheduler already holds.
func (s *Sweeper) StartupSweep(ctx context.Context) (int, error) {
	users, err := s.stores.Users.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing users: %w", err)
	}

	added := 0
	for i := range users {
		u := &users[i]
		n, err := s.sweepUserEvents(ctx, u)
		if err != nil {
			s.logger.Error("event sweep failed for user", zap.Int64("user_id", u.ID), zap.Error(err))
			continue
		}
		added += n
	}

	s.logger.Info("startup event sweep finished", zap.Int("users", len(users)), zap.Int("scheduled", added))
	return added, nil
}

func (s *Sweeper) sweepUserEvents(ctx context.Context, u *models.User) (int, error) {
	// stored start times are naive wall clock in the user's zone
	now := wallClock(s.now().In(s.location(u)))

	events, err := s.stores.Events.List(ctx, u.ID, &now, nil)
	if err != nil {
		return 0, fmt.Errorf("listing events: %w", err)
	}

	added := 0
	for _, e := range events {
		added += s.ScheduleEvent(u, e)
	}
	return added, nil
}

// fireEvent re-reads the event and delivers its reminder. A deleted event is
// skipped silently.
func (s *Sweeper) fireEvent(ctx context.Context, job scheduler.Job) error {
	p, ok := job.Payload.(eventPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}

	e, err := s.stores.Events.GetByID(ctx, job.UserID, p.EventID)
	if err != nil {
		return fmt.Errorf("loading event %d: %w", p.EventID, err)
	}
	if e == nil {
		s.logger.Info("event gone, reminder skipped",
			zap.Int64("user_id", job.UserID), zap.Int64("event_id", p.EventID), zap.String("key", job.Key))
		return nil
	}

	return s.sender.Send(ctx, notify.Notification{
		UserID: job.UserID,
		Kind:   notify.KindEventReminder,
		Text:   reminder.EventText(*e),
	})
}

// wallClock drops the zone of t, keeping its date and clock fields.
func wallClock(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}
