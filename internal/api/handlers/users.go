package handlers

import (
	"net/http"
	"strings"

	"github.com/shift-reminder/backend/internal/api/middleware"
	"github.com/shift-reminder/backend/internal/storage"
)

// SettingsRequest updates a user's preferences. Omitted fields keep their
// current value.
type SettingsRequest struct {
	Timezone  *string `json:"timezone" validate:"omitempty,timezone"`
	ClassLead *string `json:"class_lead" validate:"omitempty,leadspec"`
	EventLead *string `json:"event_lead" validate:"omitempty,leadspec"`
}

// GetUser returns the user, created with defaults on first access.
func GetUser(users *storage.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := users.GetByID(r.Context(), userID(r))
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query user")
			return
		}
		if u == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "User not found")
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

// UpdateSettings changes timezone and lead-time preferences.
func UpdateSettings(users *storage.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req SettingsRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		u, err := users.GetByID(ctx, userID(r))
		if err != nil || u == nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query user")
			return
		}

		if req.Timezone != nil {
			u.Timezone = *req.Timezone
		}
		if req.ClassLead != nil {
			u.ClassLead = normalizeSpec(*req.ClassLead)
		}
		if req.EventLead != nil {
			u.EventLead = normalizeSpec(*req.EventLead)
		}

		if err := users.UpdatePreferences(ctx, u); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update settings")
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

// normalizeSpec lower-cases a spec and strips blanks around its tokens.
func normalizeSpec(spec string) string {
	parts := strings.Split(strings.ToLower(spec), ",")
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ",")
}
