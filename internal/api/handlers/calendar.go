package handlers

import (
	"net/http"
	"time"

	"github.com/shift-reminder/backend/internal/api/middleware"
	"github.com/shift-reminder/backend/internal/calendar"
	"github.com/shift-reminder/backend/internal/reminder"
	"github.com/shift-reminder/backend/internal/shift"
)

// AnchorRequest replaces the shift anchor.
type AnchorRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// AnchorResponse reports the anchor date.
type AnchorResponse struct {
	Date string `json:"date"`
}

// ShiftResponse is a single day of the cycle.
type ShiftResponse struct {
	shift.Shift
	Label string `json:"label"`
}

// GetAnchor returns the user's anchor, defaulting it to today.
func GetAnchor(cal *calendar.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		anchor, err := cal.Anchor(r.Context(), userID(r))
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load anchor")
			return
		}
		writeJSON(w, http.StatusOK, AnchorResponse{Date: anchor.Format(calendar.DateLayout)})
	}
}

// SetAnchor replaces the user's anchor date.
func SetAnchor(cal *calendar.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnchorRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		date, _ := time.Parse(calendar.DateLayout, req.Date)

		if err := cal.SetAnchor(r.Context(), userID(r), date); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to store anchor")
			return
		}
		writeJSON(w, http.StatusOK, AnchorResponse{Date: req.Date})
	}
}

// GetCalendar returns the week containing ?date=, default today.
func GetCalendar(cal *calendar.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, ok := requestDate(w, r, cal)
		if !ok {
			return
		}

		week, err := cal.Week(r.Context(), userID(r), day)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to build calendar")
			return
		}
		writeJSON(w, http.StatusOK, week)
	}
}

// GetShift returns the phase of ?date=, default today.
func GetShift(cal *calendar.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, ok := requestDate(w, r, cal)
		if !ok {
			return
		}

		s, err := cal.Shift(r.Context(), userID(r), day)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to compute shift")
			return
		}
		writeJSON(w, http.StatusOK, ShiftResponse{Shift: s, Label: reminder.PhaseLabel(s.Phase)})
	}
}

func requestDate(w http.ResponseWriter, r *http.Request, cal *calendar.Service) (time.Time, bool) {
	today, err := cal.Today(r.Context(), userID(r))
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load user")
		return time.Time{}, false
	}
	day, err := parseDate(r.URL.Query().Get("date"), today)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return day, true
}
