// Package models contains the domain models for the application.
package models

import (
	"time"
)

// User is a chat user together with their reminder preferences.
type User struct {
	ID        int64     `json:"id"`
	Timezone  string    `json:"timezone"`
	ClassLead string    `json:"class_lead"` // lead-time spec for class reminders, "off" disables
	EventLead string    `json:"event_lead"` // default lead-time spec for new events
	CreatedAt time.Time `json:"created_at"`
}

// LeadOff disables reminders when used as a lead-time spec.
const LeadOff = "off"

// ClassRemindersEnabled reports whether class reminders are switched on.
// An empty preference counts as enabled, the store default applies.
func (u *User) ClassRemindersEnabled() bool {
	return u.ClassLead != LeadOff
}

// Location resolves the user's timezone. When the zone is empty or unknown the
// fallback is returned and ok is false.
func (u *User) Location(fallback *time.Location) (loc *time.Location, ok bool) {
	if fallback == nil {
		fallback = time.Local
	}
	if u == nil || u.Timezone == "" {
		return fallback, false
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return fallback, false
	}
	return loc, true
}
