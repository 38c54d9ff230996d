package models

import (
	"fmt"
	"time"
)

// DayOfWeek is the symbolic weekday a class slot recurs on.
type DayOfWeek string

const (
	Monday    DayOfWeek = "mon"
	Tuesday   DayOfWeek = "tue"
	Wednesday DayOfWeek = "wed"
	Thursday  DayOfWeek = "thu"
	Friday    DayOfWeek = "fri"
	Saturday  DayOfWeek = "sat"
	Sunday    DayOfWeek = "sun"
)

// indexed by time.Weekday, Sunday first
var weekdays = [...]DayOfWeek{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// DayOfWeekOf returns the symbolic weekday of t's calendar date.
func DayOfWeekOf(t time.Time) DayOfWeek {
	return weekdays[t.Weekday()]
}

// Valid reports whether d is one of the seven known values.
func (d DayOfWeek) Valid() bool {
	for _, w := range weekdays {
		if w == d {
			return true
		}
	}
	return false
}

// ClockLayout is the wall-clock format used for class start and end times.
const ClockLayout = "15:04"

// ClassSlot is a weekly recurring class in a user's timetable.
type ClassSlot struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	DayOfWeek DayOfWeek `json:"day_of_week"`
	StartTime string    `json:"start_time"` // Format: "15:04"
	EndTime   string    `json:"end_time"`   // Format: "15:04"
	Subject   string    `json:"subject"`
	Room      *string   `json:"room,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// StartOn returns the slot's start on the calendar date of day, in loc.
func (s *ClassSlot) StartOn(day time.Time, loc *time.Location) (time.Time, error) {
	clock, err := time.Parse(ClockLayout, s.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing start time %q: %w", s.StartTime, err)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, loc), nil
}

// RoomLabel returns the room or an empty string.
func (s *ClassSlot) RoomLabel() string {
	if s.Room == nil {
		return ""
	}
	return *s.Room
}
