package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shift-reminder/backend/internal/api/middleware"
	"github.com/shift-reminder/backend/internal/reminder"
	"github.com/shift-reminder/backend/internal/storage"
	"github.com/shift-reminder/backend/internal/storage/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	custom := map[string]validator.Func{
		"leadspec": func(fl validator.FieldLevel) bool {
			return reminder.ValidSpec(fl.Field().String())
		},
		"clock": func(fl validator.FieldLevel) bool {
			_, err := time.Parse(models.ClockLayout, fl.Field().String())
			return err == nil
		},
		"weekday": func(fl validator.FieldLevel) bool {
			return models.DayOfWeek(fl.Field().String()).Valid()
		},
	}
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("registering %q validation: %v", tag, err))
		}
	}
	return v
}

// decodeAndValidate reads a JSON body into dst and runs struct validation,
// writing the error response itself when either step fails.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

func writeValidationError(w http.ResponseWriter, err error) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
		return
	}

	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	middleware.WriteErrorWithDetails(w, http.StatusBadRequest, middleware.ErrValidation, "Validation failed", fields)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// pathID parses a numeric route variable.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	return id, err == nil
}

// UserDefaults are applied when a user is seen for the first time.
type UserDefaults struct {
	Timezone string
	Lead     string
}

type userIDKey struct{}

// UserScope resolves {uid}, makes sure the user row exists and stores the id
// in the request context for the handlers below it.
func UserScope(users *storage.UserRepository, defaults UserDefaults) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, ok := pathID(r, "uid")
			if !ok || uid <= 0 {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid user id")
				return
			}
			if err := users.Ensure(r.Context(), uid, defaults.Timezone, defaults.Lead); err != nil {
				middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load user")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey{}, uid)))
		})
	}
}

func userID(r *http.Request) int64 {
	uid, _ := r.Context().Value(userIDKey{}).(int64)
	return uid
}

// parseDate reads a YYYY-MM-DD query value, defaulting to fallback.
func parseDate(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	return time.Parse("2006-01-02", raw)
}
