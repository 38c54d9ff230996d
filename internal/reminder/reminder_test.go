package reminder

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shift-reminder/backend/internal/storage/models"
)

func TestParseLeadTimes(t *testing.T) {
	tests := []struct {
		spec string
		want []time.Duration
	}{
		{"30m,1d,bogus,3h", []time.Duration{24 * time.Hour, 3 * time.Hour, 30 * time.Minute}},
		{"", nil},
		{"off", nil},
		{" 2H , 15M ", []time.Duration{2 * time.Hour, 15 * time.Minute}},
		{"3h,,30m", []time.Duration{3 * time.Hour, 30 * time.Minute}},
		{"1.5h,-2h,h,10x", nil},
		{"90m,1h", []time.Duration{90 * time.Minute, time.Hour}},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got := ParseLeadTimes(tt.spec)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseLeadTimes(%q) = %v, want %v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestPrimaryLead(t *testing.T) {
	if lead, ok := PrimaryLead("15m,3h"); !ok || lead != 3*time.Hour {
		t.Errorf("PrimaryLead = %v, %v", lead, ok)
	}
	if _, ok := PrimaryLead("off"); ok {
		t.Error("off should have no lead")
	}
}

func TestFormatLeadAndValidSpec(t *testing.T) {
	if got := FormatLead(48 * time.Hour); got != "2d" {
		t.Errorf("FormatLead(48h) = %s", got)
	}
	if got := FormatLead(90 * time.Minute); got != "90m" {
		t.Errorf("FormatLead(90m) = %s", got)
	}
	for spec, want := range map[string]bool{"off": true, "OFF": true, "30m": true, "x": false, "": false} {
		if got := ValidSpec(spec); got != want {
			t.Errorf("ValidSpec(%q) = %v", spec, got)
		}
	}
}

func TestProject(t *testing.T) {
	occ := time.Date(2026, 2, 5, 16, 0, 0, 0, time.UTC)

	got := Project(occ, []time.Duration{3 * time.Hour})
	if len(got) != 1 || !got[0].Equal(time.Date(2026, 2, 5, 13, 0, 0, 0, time.UTC)) {
		t.Errorf("Project = %v", got)
	}

	got = Project(occ, ParseLeadTimes("3h,30m"))
	want := []time.Time{
		time.Date(2026, 2, 5, 13, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 5, 15, 30, 0, 0, time.UTC),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Project = %v, want %v", got, want)
	}

	if got := Project(occ, nil); len(got) != 0 {
		t.Errorf("Project(nil) = %v", got)
	}
}

func TestKeys(t *testing.T) {
	fire := time.Date(2026, 2, 5, 13, 0, 0, 0, time.UTC)
	if EventKey(1, 2, fire) != EventKey(1, 2, fire.Add(400*time.Millisecond)) {
		t.Error("event key should round to the second")
	}
	if EventKey(1, 2, fire) == EventKey(1, 2, fire.Add(time.Minute)) {
		t.Error("different fire times share a key")
	}

	monday := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	a := ClassKey(1, monday, 9, fire)
	b := ClassKey(1, monday.AddDate(0, 0, 7), 9, fire.AddDate(0, 0, 7))
	if a == b {
		t.Error("weekly occurrences share a key")
	}
	if !strings.HasPrefix(a, "remU:1:2026-02-02:9:") {
		t.Errorf("ClassKey = %s", a)
	}
}

func TestTexts(t *testing.T) {
	room := "204"
	slots := []models.ClassSlot{
		{ID: 3, StartTime: "08:30", EndTime: "10:00", Subject: "Math", Room: &room},
		{ID: 4, StartTime: "10:15", EndTime: "11:45", Subject: "Physics"},
	}

	if got := ClassText(slots[0]); got != "Reminder (class): #3 08:30-10:00 Math (204)" {
		t.Errorf("ClassText = %q", got)
	}
	digest := OffDayDigest(slots)
	if !strings.Contains(digest, "#4 10:15-11:45 Physics") || strings.Count(digest, "\n") != 2 {
		t.Errorf("digest = %q", digest)
	}

	ev := models.Event{Title: "Barber", StartsAt: time.Date(2026, 2, 5, 16, 0, 0, 0, time.UTC)}
	if got := EventText(ev); got != "Reminder (event): Barber\n2026-02-05 16:00" {
		t.Errorf("EventText = %q", got)
	}
}
