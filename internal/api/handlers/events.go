package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shift-reminder/backend/internal/api/middleware"
	"github.com/shift-reminder/backend/internal/calendar"
	"github.com/shift-reminder/backend/internal/reconcile"
	"github.com/shift-reminder/backend/internal/storage"
	"github.com/shift-reminder/backend/internal/storage/models"
)

// EventRequest creates a one-off event. Lead defaults to the user's event
// preference; "off" stores no reminder.
type EventRequest struct {
	Title    string  `json:"title" validate:"required,max=200"`
	StartsAt string  `json:"starts_at" validate:"required"`
	Location *string `json:"location" validate:"omitempty,max=200"`
	Lead     *string `json:"lead" validate:"omitempty,leadspec"`
}

// EventResponse is an event with the number of reminders it queued.
type EventResponse struct {
	Event     models.Event `json:"event"`
	Scheduled int          `json:"scheduled"`
}

// ImportResponse summarizes an iCal import.
type ImportResponse struct {
	Found     int `json:"found"`
	Imported  int `json:"imported"`
	Skipped   int `json:"skipped"`
	Scheduled int `json:"scheduled"`
}

var eventInputLayouts = []string{
	models.NaiveLayout,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

func parseEventStart(raw string) (time.Time, error) {
	for _, layout := range eventInputLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("starts_at must look like 2006-01-02T15:04")
}

// leadFor resolves the lead spec stored on a new event.
func leadFor(requested *string, u *models.User) *string {
	spec := u.EventLead
	if requested != nil {
		spec = *requested
	}
	spec = normalizeSpec(spec)
	if spec == "" || spec == models.LeadOff {
		return nil
	}
	return &spec
}

// ListEvents returns the user's events, optionally bounded by ?from= and
// ?to= dates (inclusive).
func ListEvents(events *storage.EventRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var from, to *time.Time
		if raw := q.Get("from"); raw != "" {
			d, err := time.Parse(calendar.DateLayout, raw)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "from must be YYYY-MM-DD")
				return
			}
			from = &d
		}
		if raw := q.Get("to"); raw != "" {
			d, err := time.Parse(calendar.DateLayout, raw)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "to must be YYYY-MM-DD")
				return
			}
			end := d.Add(24*time.Hour - time.Second)
			to = &end
		}

		list, err := events.List(r.Context(), userID(r), from, to)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query events")
			return
		}
		if list == nil {
			list = []models.Event{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GetEvent returns one event.
func GetEvent(events *storage.EventRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "id")
		if !ok {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid event id")
			return
		}

		e, err := events.GetByID(r.Context(), userID(r), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query event")
			return
		}
		if e == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Event not found")
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// CreateEvent stores an event and schedules its reminders at once.
func CreateEvent(users *storage.UserRepository, events *storage.EventRepository, sweeper *reconcile.Sweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req EventRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		start, err := parseEventStart(req.StartsAt)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
			return
		}

		u, err := users.GetByID(ctx, userID(r))
		if err != nil || u == nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query user")
			return
		}

		e := models.Event{
			UserID:   u.ID,
			Title:    strings.TrimSpace(req.Title),
			StartsAt: start,
			Location: req.Location,
			LeadSpec: leadFor(req.Lead, u),
		}
		if err := events.Create(ctx, &e); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create event")
			return
		}

		writeJSON(w, http.StatusCreated, EventResponse{Event: e, Scheduled: sweeper.ScheduleEvent(u, e)})
	}
}

// DeleteEvent removes an event. A pending reminder for it finds the event
// gone when it fires and is skipped.
func DeleteEvent(events *storage.EventRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "id")
		if !ok {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid event id")
			return
		}

		if err := events.Delete(r.Context(), userID(r), id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Event not found")
				return
			}
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete event")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ImportEvents reads an iCal feed from the request body, or from ?url=, and
// stores its upcoming timed events with the user's default lead time.
// Entries already stored with the same title and start are skipped.
func ImportEvents(
	users *storage.UserRepository,
	events *storage.EventRepository,
	cal *calendar.Service,
	sweeper *reconcile.Sweeper,
	parser *calendar.Parser,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		uid := userID(r)

		var (
			found []calendar.ImportedEvent
			err   error
		)
		if url := r.URL.Query().Get("url"); url != "" {
			found, err = parser.FetchAndParse(ctx, url)
		} else {
			found, err = parser.Parse(r.Body)
		}
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Failed to read calendar: "+err.Error())
			return
		}

		u, err := users.GetByID(ctx, uid)
		if err != nil || u == nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query user")
			return
		}
		loc, err := cal.Location(ctx, uid)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query user")
			return
		}

		existing, err := events.List(ctx, uid, nil, nil)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query events")
			return
		}
		seen := make(map[string]bool, len(existing))
		for _, e := range existing {
			seen[e.Title+"|"+e.StartsAt.Format(models.NaiveLayout)] = true
		}

		resp := ImportResponse{Found: len(found)}
		lead := leadFor(nil, u)
		for _, imp := range calendar.FilterUpcoming(found, time.Now(), loc) {
			e := imp.ToEvent(uid, loc, lead)
			key := e.Title + "|" + e.StartsAt.Format(models.NaiveLayout)
			if seen[key] {
				resp.Skipped++
				continue
			}
			if err := events.Create(ctx, &e); err != nil {
				middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to store imported event")
				return
			}
			seen[key] = true
			resp.Imported++
			resp.Scheduled += sweeper.ScheduleEvent(u, e)
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
