package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/shift-reminder/backend/internal/api/middleware"
	"github.com/shift-reminder/backend/internal/storage"
	"github.com/shift-reminder/backend/internal/storage/models"
)

// ClassSlotRequest creates or replaces a weekly class slot.
type ClassSlotRequest struct {
	DayOfWeek string  `json:"day_of_week" validate:"required,weekday"`
	StartTime string  `json:"start_time" validate:"required,clock"`
	EndTime   string  `json:"end_time" validate:"required,clock"`
	Subject   string  `json:"subject" validate:"required,max=200"`
	Room      *string `json:"room" validate:"omitempty,max=100"`
}

// slot builds the model with clock times rewritten as zero-padded HH:MM. It
// fails when the class does not end after it starts.
func (req ClassSlotRequest) slot(uid int64) (*models.ClassSlot, error) {
	start, _ := time.Parse(models.ClockLayout, req.StartTime)
	end, _ := time.Parse(models.ClockLayout, req.EndTime)
	if !end.After(start) {
		return nil, errors.New("end_time must be after start_time")
	}
	return &models.ClassSlot{
		UserID:    uid,
		DayOfWeek: models.DayOfWeek(req.DayOfWeek),
		StartTime: start.Format(models.ClockLayout),
		EndTime:   end.Format(models.ClockLayout),
		Subject:   req.Subject,
		Room:      req.Room,
	}, nil
}

// ListClasses returns the user's timetable, optionally filtered by ?day=.
func ListClasses(slots *storage.ClassSlotRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			list []models.ClassSlot
			err  error
		)
		if day := models.DayOfWeek(r.URL.Query().Get("day")); day != "" {
			if !day.Valid() {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "day must be one of mon..sun")
				return
			}
			list, err = slots.ListByDay(r.Context(), userID(r), day)
		} else {
			list, err = slots.List(r.Context(), userID(r))
		}
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query class slots")
			return
		}

		if list == nil {
			list = []models.ClassSlot{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// CreateClass adds a weekly class slot.
func CreateClass(slots *storage.ClassSlotRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ClassSlotRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		s, err := req.slot(userID(r))
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
			return
		}
		if err := slots.Create(r.Context(), s); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create class slot")
			return
		}

		created, err := slots.GetByID(r.Context(), s.UserID, s.ID)
		if err != nil || created == nil {
			writeJSON(w, http.StatusCreated, s)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// UpdateClass replaces a class slot.
func UpdateClass(slots *storage.ClassSlotRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "id")
		if !ok {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid class slot id")
			return
		}

		var req ClassSlotRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		s, err := req.slot(userID(r))
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
			return
		}
		s.ID = id
		if err := slots.Update(r.Context(), s); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Class slot not found")
				return
			}
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update class slot")
			return
		}

		updated, err := slots.GetByID(r.Context(), s.UserID, id)
		if err != nil || updated == nil {
			writeJSON(w, http.StatusOK, s)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

// DeleteClass removes one class slot. Reminders already scheduled for it
// still fire.
func DeleteClass(slots *storage.ClassSlotRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "id")
		if !ok {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid class slot id")
			return
		}

		if err := slots.Delete(r.Context(), userID(r), id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Class slot not found")
				return
			}
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete class slot")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ClearClasses removes the user's whole timetable.
func ClearClasses(slots *storage.ClassSlotRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := slots.Clear(r.Context(), userID(r))
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to clear class slots")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
	}
}
