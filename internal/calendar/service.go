package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/shift-reminder/backend/internal/reminder"
	"github.com/shift-reminder/backend/internal/shift"
	"github.com/shift-reminder/backend/internal/storage/models"
	"go.uber.org/zap"
)

// UserStore loads user preferences.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// SlotStore lists a user's weekly class slots.
type SlotStore interface {
	List(ctx context.Context, userID int64) ([]models.ClassSlot, error)
}

// EventStore lists a user's events within an optional naive time range.
type EventStore interface {
	List(ctx context.Context, userID int64, from, to *time.Time) ([]models.Event, error)
}

// Day is one date of the calendar with everything scheduled on it.
type Day struct {
	Date    string             `json:"date"`
	Weekday models.DayOfWeek   `json:"weekday"`
	Shift   shift.Shift        `json:"shift"`
	Label   string             `json:"label"`
	Classes []models.ClassSlot `json:"classes"`
	Events  []models.Event     `json:"events"`
}

// Week is the Monday to Sunday view around a date.
type Week struct {
	Anchor string `json:"anchor"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Days   []Day  `json:"days"`
}

// DateLayout is the calendar date format used in requests and responses.
const DateLayout = "2006-01-02"

// Service answers shift and calendar queries for a user.
type Service struct {
	users    UserStore
	anchors  shift.AnchorStore
	slots    SlotStore
	events   EventStore
	fallback *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates a calendar service. fallback is used for users whose
// timezone is missing or unknown.
func NewService(users UserStore, anchors shift.AnchorStore, slots SlotStore, events EventStore, fallback *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:    users,
		anchors:  anchors,
		slots:    slots,
		events:   events,
		fallback: fallback,
		now:      time.Now,
		logger:   logger.Named("calendar"),
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Location resolves the user's timezone, logging when the fallback is used.
func (s *Service) Location(ctx context.Context, userID int64) (*time.Location, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	loc, ok := u.Location(s.fallback)
	if !ok && u != nil {
		s.logger.Warn("unknown timezone, using default",
			zap.Int64("user_id", userID), zap.String("timezone", u.Timezone))
	}
	return loc, nil
}

// Today returns the current date in the user's timezone.
func (s *Service) Today(ctx context.Context, userID int64) (time.Time, error) {
	loc, err := s.Location(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}
	return shift.Date(s.now().In(loc)), nil
}

// Anchor returns the user's anchor date, defaulting it to today.
func (s *Service) Anchor(ctx context.Context, userID int64) (time.Time, error) {
	today, err := s.Today(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}
	return shift.EnsureAnchor(ctx, s.anchors, userID, today)
}

// SetAnchor replaces the user's anchor date.
func (s *Service) SetAnchor(ctx context.Context, userID int64, date time.Time) error {
	return s.anchors.Set(ctx, userID, shift.Date(date))
}

// Shift resolves the user's shift on date.
func (s *Service) Shift(ctx context.Context, userID int64, date time.Time) (shift.Shift, error) {
	loc, err := s.Location(ctx, userID)
	if err != nil {
		return shift.Shift{}, err
	}
	anchor, err := s.Anchor(ctx, userID)
	if err != nil {
		return shift.Shift{}, err
	}
	return shift.ShiftFor(anchor, date, loc), nil
}

// Week builds the Monday to Sunday calendar containing day.
func (s *Service) Week(ctx context.Context, userID int64, day time.Time) (*Week, error) {
	loc, err := s.Location(ctx, userID)
	if err != nil {
		return nil, err
	}
	anchor, err := s.Anchor(ctx, userID)
	if err != nil {
		return nil, err
	}

	slots, err := s.slots.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing class slots: %w", err)
	}

	start, end := shift.WeekRange(day)
	until := end.Add(24*time.Hour - time.Second)
	events, err := s.events.List(ctx, userID, &start, &until)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	week := &Week{
		Anchor: anchor.Format(DateLayout),
		Start:  start.Format(DateLayout),
		End:    end.Format(DateLayout),
	}
	for i := 0; i < 7; i++ {
		date := start.AddDate(0, 0, i)
		sh := shift.ShiftFor(anchor, date, loc)
		d := Day{
			Date:    date.Format(DateLayout),
			Weekday: models.DayOfWeekOf(date),
			Shift:   sh,
			Label:   reminder.PhaseLabel(sh.Phase),
			Classes: []models.ClassSlot{},
			Events:  []models.Event{},
		}
		for _, slot := range slots {
			if slot.DayOfWeek == d.Weekday {
				d.Classes = append(d.Classes, slot)
			}
		}
		for _, e := range events {
			if shift.Date(e.StartsAt).Equal(date) {
				d.Events = append(d.Events, e)
			}
		}
		week.Days = append(week.Days, d)
	}
	return week, nil
}
