package reminder

import (
	"fmt"
	"time"
)

// Project returns one fire time per lead, occurrence minus lead, in the
// order of leads.
func Project(occurrence time.Time, leads []time.Duration) []time.Time {
	out := make([]time.Time, 0, len(leads))
	for _, lead := range leads {
		out = append(out, occurrence.Add(-lead))
	}
	return out
}

// Key prefixes of the two reminder categories.
const (
	eventKeyPrefix = "remE"
	classKeyPrefix = "remU"
)

// EventKey identifies one reminder of a one-off event.
func EventKey(userID, eventID int64, fireAt time.Time) string {
	return fmt.Sprintf("%s:%d:%d:%d", eventKeyPrefix, userID, eventID, fireAt.Unix())
}

// ClassKey identifies the reminder of one weekly occurrence of a class slot.
// The occurrence date keeps each week's reminder distinct.
func ClassKey(userID int64, occurrence time.Time, slotID int64, fireAt time.Time) string {
	return fmt.Sprintf("%s:%d:%s:%d:%d", classKeyPrefix, userID, occurrence.Format("2006-01-02"), slotID, fireAt.Unix())
}
