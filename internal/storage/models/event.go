package models

import (
	"encoding/json"
	"time"
)

// NaiveLayout is the storage format of event start times. Values carry no
// zone and are read in the owning user's timezone.
const NaiveLayout = "2006-01-02T15:04:05"

// Event is a one-off calendar entry owned by a user.
type Event struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Title  string `json:"title"`
	// StartsAt holds wall-clock fields only; its location is meaningless.
	StartsAt  time.Time `json:"starts_at"`
	Location  *string   `json:"location,omitempty"`
	LeadSpec  *string   `json:"lead_spec,omitempty"` // nil means no reminder
	CreatedAt time.Time `json:"created_at"`
}

// StartIn interprets the naive start time in loc.
func (e *Event) StartIn(loc *time.Location) time.Time {
	y, m, d := e.StartsAt.Date()
	return time.Date(y, m, d, e.StartsAt.Hour(), e.StartsAt.Minute(), e.StartsAt.Second(), 0, loc)
}

// Reminders returns the stored lead-time spec, or "" when unset.
func (e *Event) Reminders() string {
	if e.LeadSpec == nil {
		return ""
	}
	return *e.LeadSpec
}

// LocationLabel returns the location or an empty string.
func (e *Event) LocationLabel() string {
	if e.Location == nil {
		return ""
	}
	return *e.Location
}

// MarshalJSON renders StartsAt without a zone.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	return json.Marshal(struct {
		alias
		StartsAt string `json:"starts_at"`
	}{alias(e), e.StartsAt.Format(NaiveLayout)})
}
