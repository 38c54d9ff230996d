// Package shift computes positions in the four-day rotating work cycle.
package shift

import (
	"time"
)

// Phase is one position of the rotating cycle.
type Phase string

const (
	WorkDay   Phase = "WORK_DAY"
	WorkNight Phase = "WORK_NIGHT"
	OffDay1   Phase = "OFF_DAY_1"
	OffDay2   Phase = "OFF_DAY_2"
)

// cycle order starting at the anchor date
var cycle = [...]Phase{WorkDay, WorkNight, OffDay1, OffDay2}

// CycleLength is the number of days before the rotation repeats.
const CycleLength = len(cycle)

// Shift working hours.
const (
	dayStartHour   = 7
	nightStartHour = 19
)

// IsOff reports whether p is a day off.
func (p Phase) IsOff() bool {
	return p == OffDay1 || p == OffDay2
}

// Shift is a phase resolved for one calendar date. Start and End are nil on
// days off.
type Shift struct {
	Date  time.Time  `json:"date"`
	Phase Phase      `json:"phase"`
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// PhaseFor maps target to its phase in the cycle anchored at anchor. Only the
// calendar dates of both arguments are used.
func PhaseFor(anchor, target time.Time) Phase {
	return cycle[floorMod(DaysBetween(anchor, target), CycleLength)]
}

// ShiftFor resolves the phase of target and, for working phases, the shift
// hours in loc. A night shift ends at 07:00 on the following date.
func ShiftFor(anchor, target time.Time, loc *time.Location) Shift {
	if loc == nil {
		loc = time.Local
	}
	date := Date(target)
	s := Shift{Date: date, Phase: PhaseFor(anchor, target)}

	y, m, d := date.Date()
	switch s.Phase {
	case WorkDay:
		start := time.Date(y, m, d, dayStartHour, 0, 0, 0, loc)
		end := time.Date(y, m, d, nightStartHour, 0, 0, 0, loc)
		s.Start, s.End = &start, &end
	case WorkNight:
		start := time.Date(y, m, d, nightStartHour, 0, 0, 0, loc)
		end := time.Date(y, m, d+1, dayStartHour, 0, 0, 0, loc)
		s.Start, s.End = &start, &end
	}
	return s
}

// DaysBetween returns the number of calendar days from a to b, negative when
// b is earlier. Clock time and zone offsets are ignored.
func DaysBetween(a, b time.Time) int {
	const secondsPerDay = 24 * 60 * 60
	return int((Date(b).Unix() - Date(a).Unix()) / secondsPerDay)
}

// Date truncates t to its calendar date at UTC midnight.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekRange returns the Monday and Sunday of the week containing day.
func WeekRange(day time.Time) (start, end time.Time) {
	day = Date(day)
	offset := (int(day.Weekday()) + 6) % 7
	start = day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6)
}

// floorMod is a modulo whose result has the sign of m, so days before the
// anchor wrap around instead of going negative.
func floorMod(n, m int) int {
	r := n % m
	if r < 0 {
		r += m
	}
	return r
}
