package reminder

import (
	"fmt"
	"strings"

	"github.com/shift-reminder/backend/internal/shift"
	"github.com/shift-reminder/backend/internal/storage/models"
)

// PhaseLabel renders a phase with its working hours.
func PhaseLabel(p shift.Phase) string {
	switch p {
	case shift.WorkDay:
		return "Work (day 07:00-19:00)"
	case shift.WorkNight:
		return "Work (night 19:00-07:00)"
	case shift.OffDay1:
		return "Off (day off 1)"
	case shift.OffDay2:
		return "Off (day off 2)"
	}
	return string(p)
}

// ClassLine renders a slot as "#id 08:30-10:00 Subject (room)".
func ClassLine(s models.ClassSlot) string {
	line := fmt.Sprintf("#%d %s-%s %s", s.ID, s.StartTime, s.EndTime, s.Subject)
	if room := s.RoomLabel(); room != "" {
		line += " (" + room + ")"
	}
	return line
}

// EventText is the message sent when an event reminder fires.
func EventText(e models.Event) string {
	text := fmt.Sprintf("Reminder (event): %s\n%s", e.Title, e.StartsAt.Format("2006-01-02 15:04"))
	if loc := e.LocationLabel(); loc != "" {
		text += "\n" + loc
	}
	return text
}

// ClassText is the message sent when a class reminder fires.
func ClassText(s models.ClassSlot) string {
	return "Reminder (class): " + ClassLine(s)
}

// OffDayDigest lists tomorrow's classes for a user who is off tomorrow.
func OffDayDigest(slots []models.ClassSlot) string {
	lines := make([]string, 0, len(slots)+1)
	lines = append(lines, "Tomorrow you are OFF and you have classes:")
	for _, s := range slots {
		lines = append(lines, ClassLine(s))
	}
	return strings.Join(lines, "\n")
}
