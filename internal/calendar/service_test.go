package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/shift-reminder/backend/internal/shift"
	"github.com/shift-reminder/backend/internal/storage/models"
)

type fakeUsers map[int64]*models.User

func (f fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	return f[id], nil
}

type fakeAnchors map[int64]time.Time

func (f fakeAnchors) Get(_ context.Context, userID int64) (*time.Time, error) {
	if a, ok := f[userID]; ok {
		return &a, nil
	}
	return nil, nil
}

func (f fakeAnchors) Set(_ context.Context, userID int64, date time.Time) error {
	f[userID] = date
	return nil
}

type fakeSlots []models.ClassSlot

func (f fakeSlots) List(context.Context, int64) ([]models.ClassSlot, error) {
	return f, nil
}

type fakeEvents []models.Event

func (f fakeEvents) List(_ context.Context, _ int64, from, to *time.Time) ([]models.Event, error) {
	var out []models.Event
	for _, e := range f {
		if from != nil && e.StartsAt.Before(*from) {
			continue
		}
		if to != nil && e.StartsAt.After(*to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestService(anchors fakeAnchors, slots fakeSlots, events fakeEvents) *Service {
	users := fakeUsers{1: {ID: 1, Timezone: "UTC"}}
	return NewService(users, anchors, slots, events, time.UTC, nil).
		WithClock(func() time.Time { return time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC) })
}

func TestService_AnchorDefaultsToToday(t *testing.T) {
	anchors := fakeAnchors{}
	svc := newTestService(anchors, nil, nil)

	got, err := svc.Anchor(context.Background(), 1)
	if err != nil {
		t.Fatalf("Anchor: %v", err)
	}
	if !got.Equal(date(2026, 2, 4)) || !anchors[1].Equal(date(2026, 2, 4)) {
		t.Errorf("anchor = %v, stored %v", got, anchors[1])
	}
}

func TestService_WeekAfterSetAnchor(t *testing.T) {
	room := "101"
	slots := fakeSlots{
		{ID: 1, UserID: 1, DayOfWeek: models.Saturday, StartTime: "09:00", EndTime: "10:30", Subject: "Math", Room: &room},
		{ID: 2, UserID: 1, DayOfWeek: models.Monday, StartTime: "12:00", EndTime: "13:00", Subject: "Art"},
	}
	events := fakeEvents{
		{ID: 5, UserID: 1, Title: "Barber", StartsAt: time.Date(2026, 2, 5, 16, 0, 0, 0, time.UTC)},
		{ID: 6, UserID: 1, Title: "Next week", StartsAt: time.Date(2026, 2, 9, 8, 0, 0, 0, time.UTC)},
	}
	svc := newTestService(fakeAnchors{}, slots, events)
	ctx := context.Background()

	if err := svc.SetAnchor(ctx, 1, date(2026, 2, 4)); err != nil {
		t.Fatalf("SetAnchor: %v", err)
	}

	week, err := svc.Week(ctx, 1, date(2026, 2, 7))
	if err != nil {
		t.Fatalf("Week: %v", err)
	}
	if week.Start != "2026-02-02" || week.End != "2026-02-08" || len(week.Days) != 7 {
		t.Fatalf("week = %s..%s with %d days", week.Start, week.End, len(week.Days))
	}

	// Monday 2026-02-02 is two days before the anchor
	wantPhases := []shift.Phase{
		shift.OffDay1, shift.OffDay2, shift.WorkDay, shift.WorkNight,
		shift.OffDay1, shift.OffDay2, shift.WorkDay,
	}
	for i, d := range week.Days {
		if d.Shift.Phase != wantPhases[i] {
			t.Errorf("%s phase = %s, want %s", d.Date, d.Shift.Phase, wantPhases[i])
		}
	}

	if len(week.Days[5].Classes) != 1 || week.Days[5].Classes[0].RoomLabel() != "101" {
		t.Errorf("saturday classes = %+v", week.Days[5].Classes)
	}
	if len(week.Days[0].Classes) != 1 || week.Days[0].Classes[0].Subject != "Art" {
		t.Errorf("monday classes = %+v", week.Days[0].Classes)
	}
	if len(week.Days[3].Events) != 1 || week.Days[3].Events[0].Title != "Barber" {
		t.Errorf("thursday events = %+v", week.Days[3].Events)
	}
	for _, d := range week.Days {
		for _, e := range d.Events {
			if e.ID == 6 {
				t.Error("event from the following week included")
			}
		}
	}
}

func TestService_ShiftAcrossCycle(t *testing.T) {
	svc := newTestService(fakeAnchors{1: date(2026, 2, 4)}, nil, nil)
	ctx := context.Background()

	tests := []struct {
		day  time.Time
		want shift.Phase
	}{
		{date(2026, 2, 6), shift.OffDay1},
		{date(2026, 2, 7), shift.OffDay2},
		{date(2026, 2, 8), shift.WorkDay},
		{date(2026, 2, 9), shift.WorkNight},
	}
	for _, tt := range tests {
		got, err := svc.Shift(ctx, 1, tt.day)
		if err != nil {
			t.Fatalf("Shift: %v", err)
		}
		if got.Phase != tt.want {
			t.Errorf("Shift(%s) = %s, want %s", tt.day.Format(DateLayout), got.Phase, tt.want)
		}
	}

	night, _ := svc.Shift(ctx, 1, date(2026, 2, 5))
	if night.End == nil || night.End.Day() != 6 || night.End.Hour() != 7 {
		t.Errorf("night shift end = %v", night.End)
	}
}

func TestService_UnknownTimezoneFallsBack(t *testing.T) {
	users := fakeUsers{1: {ID: 1, Timezone: "Mars/Olympus"}}
	svc := NewService(users, fakeAnchors{}, nil, nil, time.UTC, nil)

	loc, err := svc.Location(context.Background(), 1)
	if err != nil || loc != time.UTC {
		t.Errorf("Location = %v, %v", loc, err)
	}
}
