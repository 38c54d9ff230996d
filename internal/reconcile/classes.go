package reconcile

import (
	"context"
	"fmt"

	"github.com/shift-reminder/backend/internal/notify"
	"github.com/shift-reminder/backend/internal/reminder"
	"github.com/shift-reminder/backend/internal/scheduler"
	"github.com/shift-reminder/backend/internal/shift"
	"github.com/shift-reminder/backend/internal/storage/models"
	"go.uber.org/zap"
)

// classPayload carries the rendered text of a class reminder.
type classPayload struct {
	SlotID int64
	Text   string
}

// DailyClassSweep schedules today's class reminders for every user with
// class reminders enabled. Only the longest lead time of the preference is
// used.
func (s *Sweeper) DailyClassSweep(ctx context.Context) (int, error) {
	users, err := s.stores.Users.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing users: %w", err)
	}

	added := 0
	for i := range users {
		u := &users[i]
		if !u.ClassRemindersEnabled() {
			continue
		}
		n, err := s.scheduleClasses(ctx, u)
		if err != nil {
			s.logger.Error("class sweep failed for user", zap.Int64("user_id", u.ID), zap.Error(err))
			continue
		}
		added += n
	}

	s.logger.Info("daily class sweep finished", zap.Int("users", len(users)), zap.Int("scheduled", added))
	return added, nil
}

func (s *Sweeper) scheduleClasses(ctx context.Context, u *models.User) (int, error) {
	lead, ok := reminder.PrimaryLead(u.ClassLead)
	if !ok {
		return 0, nil
	}

	loc := s.location(u)
	today := s.now().In(loc)
	slots, err := s.stores.Slots.ListByDay(ctx, u.ID, models.DayOfWeekOf(today))
	if err != nil {
		return 0, fmt.Errorf("listing class slots: %w", err)
	}

	added := 0
	for _, slot := range slots {
		start, err := slot.StartOn(today, loc)
		if err != nil {
			s.logger.Warn("skipping class slot", zap.Int64("user_id", u.ID), zap.Int64("slot_id", slot.ID), zap.Error(err))
			continue
		}

		fireAt := start.Add(-lead)
		job := scheduler.Job{
			Key:     reminder.ClassKey(u.ID, today, slot.ID, fireAt),
			FireAt:  fireAt,
			Grace:   s.cfg.ClassGrace,
			UserID:  u.ID,
			Payload: classPayload{SlotID: slot.ID, Text: reminder.ClassText(slot)},
			Handler: s.fireClass,
		}
		if s.jobs.Schedule(job) {
			added++
		}
	}
	return added, nil
}

func (s *Sweeper) fireClass(ctx context.Context, job scheduler.Job) error {
	p, ok := job.Payload.(classPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	return s.sender.Send(ctx, notify.Notification{
		UserID: job.UserID,
		Kind:   notify.KindClassReminder,
		Text:   p.Text,
	})
}

// NightlyLookahead sends an immediate digest to every user who is off
// tomorrow and has classes on tomorrow's weekday. It returns the number of
// digests delivered.
func (s *Sweeper) NightlyLookahead(ctx context.Context) (int, error) {
	users, err := s.stores.Users.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing users: %w", err)
	}

	sent := 0
	for i := range users {
		u := &users[i]
		ok, err := s.lookahead(ctx, u)
		if err != nil {
			s.logger.Error("look-ahead failed for user", zap.Int64("user_id", u.ID), zap.Error(err))
			continue
		}
		if ok {
			sent++
		}
	}

	s.logger.Info("nightly look-ahead finished", zap.Int("users", len(users)), zap.Int("digests", sent))
	return sent, nil
}

func (s *Sweeper) lookahead(ctx context.Context, u *models.User) (bool, error) {
	today := shift.Date(s.now().In(s.location(u)))
	anchor, err := shift.EnsureAnchor(ctx, s.stores.Anchors, u.ID, today)
	if err != nil {
		return false, err
	}

	tomorrow := today.AddDate(0, 0, 1)
	if !shift.PhaseFor(anchor, tomorrow).IsOff() {
		return false, nil
	}

	slots, err := s.stores.Slots.ListByDay(ctx, u.ID, models.DayOfWeekOf(tomorrow))
	if err != nil {
		return false, fmt.Errorf("listing class slots: %w", err)
	}
	if len(slots) == 0 {
		return false, nil
	}

	err = s.sender.Send(ctx, notify.Notification{
		UserID: u.ID,
		Kind:   notify.KindOffDayDigest,
		Text:   reminder.OffDayDigest(slots),
	})
	if err != nil {
		return false, fmt.Errorf("sending digest: %w", err)
	}
	return true, nil
}
