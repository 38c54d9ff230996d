package reconcile

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shift-reminder/backend/internal/notify"
	"github.com/shift-reminder/backend/internal/scheduler"
	"github.com/shift-reminder/backend/internal/storage/models"
)

type memUsers []models.User

func (m memUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	for i := range m {
		if m[i].ID == id {
			u := m[i]
			return &u, nil
		}
	}
	return nil, nil
}

func (m memUsers) List(context.Context) ([]models.User, error) {
	return append([]models.User(nil), m...), nil
}

type memAnchors map[int64]time.Time

func (m memAnchors) Get(_ context.Context, userID int64) (*time.Time, error) {
	if a, ok := m[userID]; ok {
		return &a, nil
	}
	return nil, nil
}

func (m memAnchors) Set(_ context.Context, userID int64, d time.Time) error {
	m[userID] = d
	return nil
}

type memSlots []models.ClassSlot

func (m memSlots) ListByDay(_ context.Context, userID int64, day models.DayOfWeek) ([]models.ClassSlot, error) {
	var out []models.ClassSlot
	for _, s := range m {
		if s.UserID == userID && s.DayOfWeek == day {
			out = append(out, s)
		}
	}
	return out, nil
}

type memEvents struct {
	events []models.Event
	err    map[int64]error // per-user List failures
}

func (m *memEvents) GetByID(_ context.Context, userID, id int64) (*models.Event, error) {
	for _, e := range m.events {
		if e.UserID == userID && e.ID == id {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}

func (m *memEvents) List(_ context.Context, userID int64, from, to *time.Time) ([]models.Event, error) {
	if err := m.err[userID]; err != nil {
		return nil, err
	}
	var out []models.Event
	for _, e := range m.events {
		if e.UserID != userID {
			continue
		}
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

type recordingSender struct {
	mu   sync.Mutex
	sent []notify.Notification
	fail map[int64]bool
}

func (r *recordingSender) Send(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[n.UserID] {
		return notify.ErrNoRecipient
	}
	r.sent = append(r.sent, n)
	return nil
}

// recordingJobs captures submitted jobs so handlers can be invoked directly.
type recordingJobs struct {
	jobs []scheduler.Job
}

func (r *recordingJobs) Schedule(job scheduler.Job) bool {
	r.jobs = append(r.jobs, job)
	return true
}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func strPtr(s string) *string { return &s }

func newSweeper(stores Stores, jobs JobScheduler, sender notify.Sender, now time.Time) *Sweeper {
	cfg := Config{
		Location:    time.UTC,
		EventGrace:  time.Hour,
		ClassGrace:  30 * time.Minute,
		DailySpec:   "0 5 0 * * *",
		NightlySpec: "0 0 20 * * *",
	}
	return NewSweeper(stores, jobs, sender, cfg, nil).WithClock(func() time.Time { return now })
}

func TestStartupSweep_EventWithTwoLeads(t *testing.T) {
	now := at(2026, 2, 5, 9, 0)
	jobs := scheduler.New(scheduler.WithClock(func() time.Time { return now }))
	events := &memEvents{events: []models.Event{
		{ID: 10, UserID: 1, Title: "Barber", StartsAt: at(2026, 2, 5, 16, 0), LeadSpec: strPtr("3h,30m")},
	}}
	stores := Stores{Users: memUsers{{ID: 1, Timezone: "UTC"}}, Events: events}
	sw := newSweeper(stores, jobs, &recordingSender{}, now)

	added, err := sw.StartupSweep(context.Background())
	if err != nil {
		t.Fatalf("StartupSweep: %v", err)
	}
	if added != 2 || jobs.Len() != 2 {
		t.Fatalf("added %d, pending %d, want 2", added, jobs.Len())
	}

	pending := jobs.Pending()
	if !pending[0].FireAt.Equal(at(2026, 2, 5, 13, 0)) || !pending[1].FireAt.Equal(at(2026, 2, 5, 15, 30)) {
		t.Errorf("fire times = %v, %v", pending[0].FireAt, pending[1].FireAt)
	}
	if pending[0].Key == pending[1].Key {
		t.Errorf("keys collide: %s", pending[0].Key)
	}

	again, err := sw.StartupSweep(context.Background())
	if err != nil {
		t.Fatalf("second StartupSweep: %v", err)
	}
	if again != 0 || jobs.Len() != 2 {
		t.Errorf("second sweep added %d, pending %d", again, jobs.Len())
	}
}

func TestStartupSweep_SkipsPastAndUnset(t *testing.T) {
	now := at(2026, 2, 5, 15, 45)
	jobs := scheduler.New(scheduler.WithClock(func() time.Time { return now }))
	events := &memEvents{events: []models.Event{
		{ID: 1, UserID: 1, Title: "Soon", StartsAt: at(2026, 2, 5, 16, 0), LeadSpec: strPtr("3h,30m")},
		{ID: 2, UserID: 1, Title: "Yesterday", StartsAt: at(2026, 2, 4, 16, 0), LeadSpec: strPtr("30m")},
		{ID: 3, UserID: 1, Title: "Silent", StartsAt: at(2026, 2, 6, 16, 0)},
	}}
	stores := Stores{Users: memUsers{{ID: 1, Timezone: "UTC"}}, Events: events}

	added, _ := newSweeper(stores, jobs, &recordingSender{}, now).StartupSweep(context.Background())
	if added != 0 || jobs.Len() != 0 {
		t.Errorf("added %d stale or unset reminders", added)
	}
}

func TestStartupSweep_PerUserErrorsDoNotAbort(t *testing.T) {
	now := at(2026, 2, 5, 9, 0)
	jobs := scheduler.New(scheduler.WithClock(func() time.Time { return now }))
	events := &memEvents{
		events: []models.Event{
			{ID: 1, UserID: 2, Title: "Exam", StartsAt: at(2026, 2, 5, 12, 0), LeadSpec: strPtr("1h")},
		},
		err: map[int64]error{1: errors.New("disk on fire")},
	}
	users := memUsers{{ID: 1, Timezone: "UTC"}, {ID: 2, Timezone: "Not/AZone"}}

	added, err := newSweeper(Stores{Users: users, Events: events}, jobs, &recordingSender{}, now).
		StartupSweep(context.Background())
	if err != nil {
		t.Fatalf("StartupSweep: %v", err)
	}
	if added != 1 || !jobs.Pending()[0].FireAt.Equal(at(2026, 2, 5, 11, 0)) {
		t.Errorf("added %d, pending %+v", added, jobs.Pending())
	}
}

func TestFireEvent(t *testing.T) {
	now := at(2026, 2, 5, 9, 0)
	rec := &recordingJobs{}
	events := &memEvents{events: []models.Event{
		{ID: 10, UserID: 1, Title: "Barber", StartsAt: at(2026, 2, 5, 16, 0), LeadSpec: strPtr("30m")},
	}}
	sender := &recordingSender{}
	sw := newSweeper(Stores{Users: memUsers{{ID: 1, Timezone: "UTC"}}, Events: events}, rec, sender, now)

	if _, err := sw.StartupSweep(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(rec.jobs) != 1 {
		t.Fatalf("jobs = %d", len(rec.jobs))
	}
	job := rec.jobs[0]

	if err := job.Handler(context.Background(), job); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].Kind != notify.KindEventReminder ||
		!strings.Contains(sender.sent[0].Text, "Barber") {
		t.Fatalf("sent = %+v", sender.sent)
	}

	events.events = nil
	if err := job.Handler(context.Background(), job); err != nil {
		t.Fatalf("handler for deleted event: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Error("reminder delivered for a deleted event")
	}
}

func TestDailyClassSweep(t *testing.T) {
	now := at(2026, 2, 3, 7, 0) // Tuesday
	jobs := scheduler.New(scheduler.WithClock(func() time.Time { return now }))
	slots := memSlots{
		{ID: 1, UserID: 1, DayOfWeek: models.Tuesday, StartTime: "08:30", EndTime: "10:00", Subject: "Physics"},
		{ID: 2, UserID: 1, DayOfWeek: models.Tuesday, StartTime: "10:15", EndTime: "11:45", Subject: "Math"},
		{ID: 3, UserID: 1, DayOfWeek: models.Tuesday, StartTime: "07:45", EndTime: "08:15", Subject: "Too soon"},
		{ID: 4, UserID: 1, DayOfWeek: models.Wednesday, StartTime: "10:00", EndTime: "11:00", Subject: "Tomorrow"},
		{ID: 5, UserID: 2, DayOfWeek: models.Tuesday, StartTime: "12:00", EndTime: "13:00", Subject: "Muted"},
	}
	users := memUsers{
		{ID: 1, Timezone: "UTC", ClassLead: "30m,1h"},
		{ID: 2, Timezone: "UTC", ClassLead: models.LeadOff},
	}
	sw := newSweeper(Stores{Users: users, Slots: slots}, jobs, &recordingSender{}, now)

	added, err := sw.DailyClassSweep(context.Background())
	if err != nil {
		t.Fatalf("DailyClassSweep: %v", err)
	}
	if added != 2 {
		t.Fatalf("added %d, want 2", added)
	}

	pending := jobs.Pending()
	if !pending[0].FireAt.Equal(at(2026, 2, 3, 7, 30)) || !pending[1].FireAt.Equal(at(2026, 2, 3, 9, 15)) {
		t.Errorf("fire times = %v, %v (longest lead should be used)", pending[0].FireAt, pending[1].FireAt)
	}
	if !strings.Contains(pending[0].Key, "2026-02-03") {
		t.Errorf("class key lacks occurrence date: %s", pending[0].Key)
	}

	if again, _ := sw.DailyClassSweep(context.Background()); again != 0 {
		t.Errorf("rerun added %d", again)
	}
}

func TestFireClass(t *testing.T) {
	now := at(2026, 2, 3, 7, 0)
	rec := &recordingJobs{}
	room := "204"
	slots := memSlots{{ID: 9, UserID: 1, DayOfWeek: models.Tuesday, StartTime: "10:15", EndTime: "11:45", Subject: "Math", Room: &room}}
	sender := &recordingSender{}
	sw := newSweeper(Stores{Users: memUsers{{ID: 1, ClassLead: "30m"}}, Slots: slots}, rec, sender, now)

	sw.DailyClassSweep(context.Background())
	if len(rec.jobs) != 1 {
		t.Fatalf("jobs = %d", len(rec.jobs))
	}
	if err := rec.jobs[0].Handler(context.Background(), rec.jobs[0]); err != nil {
		t.Fatal(err)
	}
	if got := sender.sent[0].Text; got != "Reminder (class): #9 10:15-11:45 Math (204)" {
		t.Errorf("text = %q", got)
	}
}

func TestNightlyLookahead(t *testing.T) {
	now := at(2026, 2, 5, 20, 0) // Thursday evening
	slots := memSlots{
		{ID: 1, UserID: 1, DayOfWeek: models.Friday, StartTime: "09:00", EndTime: "10:30", Subject: "Math"},
		{ID: 2, UserID: 2, DayOfWeek: models.Friday, StartTime: "09:00", EndTime: "10:30", Subject: "Art"},
		{ID: 3, UserID: 3, DayOfWeek: models.Friday, StartTime: "09:00", EndTime: "10:30", Subject: "Law"},
	}
	anchors := memAnchors{
		1: at(2026, 2, 4, 0, 0), // Friday is anchor+2, off
		2: at(2026, 2, 6, 0, 0), // Friday is a work day
	}
	users := memUsers{{ID: 1, Timezone: "UTC"}, {ID: 2, Timezone: "UTC"}, {ID: 3, Timezone: "UTC"}}
	sender := &recordingSender{}
	sw := newSweeper(Stores{Users: users, Anchors: anchors, Slots: slots}, &recordingJobs{}, sender, now)

	sent, err := sw.NightlyLookahead(context.Background())
	if err != nil {
		t.Fatalf("NightlyLookahead: %v", err)
	}
	if sent != 1 || len(sender.sent) != 1 {
		t.Fatalf("sent %d digests: %+v", sent, sender.sent)
	}
	d := sender.sent[0]
	if d.UserID != 1 || d.Kind != notify.KindOffDayDigest || !strings.Contains(d.Text, "#1 09:00-10:30 Math") {
		t.Errorf("digest = %+v", d)
	}

	if got, ok := anchors[3]; !ok || !got.Equal(at(2026, 2, 5, 0, 0)) {
		t.Errorf("lazy anchor for user 3 = %v, %v", got, ok)
	}
}

func TestNightlyLookahead_DeliveryFailureIsScoped(t *testing.T) {
	now := at(2026, 2, 5, 20, 0)
	slots := memSlots{
		{ID: 1, UserID: 1, DayOfWeek: models.Friday, StartTime: "09:00", EndTime: "10:30", Subject: "Math"},
		{ID: 2, UserID: 2, DayOfWeek: models.Friday, StartTime: "11:00", EndTime: "12:30", Subject: "Art"},
	}
	anchors := memAnchors{1: at(2026, 2, 4, 0, 0), 2: at(2026, 2, 4, 0, 0)}
	sender := &recordingSender{fail: map[int64]bool{1: true}}
	users := memUsers{{ID: 1, Timezone: "UTC"}, {ID: 2, Timezone: "UTC"}}

	sent, err := newSweeper(Stores{Users: users, Anchors: anchors, Slots: slots}, &recordingJobs{}, sender, now).
		NightlyLookahead(context.Background())
	if err != nil {
		t.Fatalf("NightlyLookahead: %v", err)
	}
	if sent != 1 || sender.sent[0].UserID != 2 {
		t.Errorf("sent %d: %+v", sent, sender.sent)
	}
}

func TestStart_RejectsBadSpec(t *testing.T) {
	sw := NewSweeper(Stores{}, &recordingJobs{}, &recordingSender{}, Config{DailySpec: "not a cron", NightlySpec: "0 0 20 * * *"}, nil)
	if err := sw.Start(); err == nil {
		sw.Stop()
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestStart_NextRuns(t *testing.T) {
	sw := newSweeper(Stores{}, &recordingJobs{}, &recordingSender{}, time.Now())
	if err := sw.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sw.Stop()

	next := sw.NextRuns()
	if len(next) != 2 {
		t.Fatalf("next runs = %v", next)
	}
	// cron computes entries asynchronously after Start; the daily entry
	// always lands on 00:05:00 once scheduled.
	if d, ok := next[SweepDaily]; ok && !d.IsZero() && (d.Hour() != 0 || d.Minute() != 5) {
		t.Errorf("daily next run = %v", d)
	}
}
