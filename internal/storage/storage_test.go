package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shift-reminder/backend/internal/storage/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "nested", DatabaseFile))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := RunMigrations(db, nil); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	return db
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := openTestDB(t)
	if err := RunMigrations(db, nil); err != nil {
		t.Fatalf("second RunMigrations: %v", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("recorded migrations = %d, want 1", n)
	}
}

func TestUserRepository(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db)
	ctx := context.Background()

	if err := users.Ensure(ctx, 42, "Europe/Chisinau", "30m"); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := users.Ensure(ctx, 42, "UTC", "1h"); err != nil {
		t.Fatalf("Ensure again: %v", err)
	}

	u, err := users.GetByID(ctx, 42)
	if err != nil || u == nil {
		t.Fatalf("GetByID = %v, %v", u, err)
	}
	if u.Timezone != "Europe/Chisinau" || u.ClassLead != "30m" || u.EventLead != "30m" {
		t.Errorf("ensure overwrote user: %+v", u)
	}

	u.ClassLead = models.LeadOff
	u.EventLead = "3h,30m"
	if err := users.UpdatePreferences(ctx, u); err != nil {
		t.Fatalf("UpdatePreferences: %v", err)
	}
	got, _ := users.GetByID(ctx, 42)
	if got.ClassRemindersEnabled() || got.EventLead != "3h,30m" {
		t.Errorf("preferences not stored: %+v", got)
	}

	if err := users.UpdatePreferences(ctx, &models.User{ID: 7}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing user err = %v", err)
	}
	if missing, err := users.GetByID(ctx, 7); missing != nil || err != nil {
		t.Errorf("missing user = %v, %v", missing, err)
	}

	list, err := users.List(ctx)
	if err != nil || len(list) != 1 {
		t.Errorf("List = %v, %v", list, err)
	}
}

func TestAnchorRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	NewUserRepository(db).Ensure(ctx, 1, "UTC", "30m")
	anchors := NewAnchorRepository(db)

	if a, err := anchors.Get(ctx, 1); a != nil || err != nil {
		t.Fatalf("unset anchor = %v, %v", a, err)
	}

	first := time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC)
	if err := anchors.Set(ctx, 1, first); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := anchors.Set(ctx, 1, first.AddDate(0, 0, 2)); err != nil {
		t.Fatalf("Set replace: %v", err)
	}

	a, err := anchors.Get(ctx, 1)
	if err != nil || a == nil || !a.Equal(first.AddDate(0, 0, 2)) {
		t.Errorf("Get = %v, %v", a, err)
	}
}

func TestClassSlotRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	NewUserRepository(db).Ensure(ctx, 1, "UTC", "30m")
	slots := NewClassSlotRepository(db)

	room := "204"
	math := &models.ClassSlot{UserID: 1, DayOfWeek: models.Tuesday, StartTime: "10:15", EndTime: "11:45", Subject: "Math", Room: &room}
	early := &models.ClassSlot{UserID: 1, DayOfWeek: models.Tuesday, StartTime: "08:30", EndTime: "10:00", Subject: "Physics"}
	monday := &models.ClassSlot{UserID: 1, DayOfWeek: models.Monday, StartTime: "12:00", EndTime: "13:30", Subject: "History"}
	for _, s := range []*models.ClassSlot{math, early, monday} {
		if err := slots.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	tuesday, err := slots.ListByDay(ctx, 1, models.Tuesday)
	if err != nil {
		t.Fatalf("ListByDay: %v", err)
	}
	if len(tuesday) != 2 || tuesday[0].Subject != "Physics" || tuesday[1].RoomLabel() != "204" {
		t.Errorf("tuesday = %+v", tuesday)
	}

	all, _ := slots.List(ctx, 1)
	if len(all) != 3 || all[0].Subject != "History" {
		t.Errorf("List order = %+v", all)
	}

	math.DayOfWeek = models.Friday
	math.Room = nil
	if err := slots.Update(ctx, math); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := slots.GetByID(ctx, 1, math.ID)
	if got.DayOfWeek != models.Friday || got.Room != nil {
		t.Errorf("updated slot = %+v", got)
	}

	if err := slots.Delete(ctx, 2, math.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete by other user err = %v", err)
	}
	if err := slots.Delete(ctx, 1, math.ID); err != nil {
		t.Errorf("Delete: %v", err)
	}

	n, err := slots.Clear(ctx, 1)
	if err != nil || n != 2 {
		t.Errorf("Clear = %d, %v", n, err)
	}
}

func TestEventRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	NewUserRepository(db).Ensure(ctx, 1, "UTC", "30m")
	events := NewEventRepository(db)

	lead := "3h,30m"
	barber := &models.Event{UserID: 1, Title: "Barber", StartsAt: time.Date(2026, 2, 5, 16, 0, 0, 0, time.UTC), LeadSpec: &lead}
	dentist := &models.Event{UserID: 1, Title: "Dentist", StartsAt: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)}
	for _, e := range []*models.Event{dentist, barber} {
		if err := events.Create(ctx, e); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := events.GetByID(ctx, 1, barber.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID = %v, %v", got, err)
	}
	if !got.StartsAt.Equal(barber.StartsAt) || got.Reminders() != "3h,30m" || got.Location != nil {
		t.Errorf("event = %+v", got)
	}

	all, _ := events.List(ctx, 1, nil, nil)
	if len(all) != 2 || all[0].Title != "Barber" {
		t.Errorf("List = %+v", all)
	}

	from := time.Date(2026, 2, 6, 0, 0, 0, 0, time.UTC)
	later, _ := events.List(ctx, 1, &from, nil)
	if len(later) != 1 || later[0].Title != "Dentist" {
		t.Errorf("List from = %+v", later)
	}

	to := time.Date(2026, 2, 5, 16, 0, 0, 0, time.UTC)
	upTo, _ := events.List(ctx, 1, nil, &to)
	if len(upTo) != 1 || upTo[0].Title != "Barber" {
		t.Errorf("List to = %+v", upTo)
	}

	if err := events.Delete(ctx, 1, barber.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if gone, _ := events.GetByID(ctx, 1, barber.ID); gone != nil {
		t.Error("event still present after delete")
	}
	if err := events.Delete(ctx, 1, barber.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}
