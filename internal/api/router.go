// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shift-reminder/backend/internal/api/handlers"
	"github.com/shift-reminder/backend/internal/api/middleware"
	"github.com/shift-reminder/backend/internal/calendar"
	"github.com/shift-reminder/backend/internal/reconcile"
	"github.com/shift-reminder/backend/internal/scheduler"
	"github.com/shift-reminder/backend/internal/storage"
	"github.com/shift-reminder/backend/internal/websocket"
	"go.uber.org/zap"
)

// maxBodyBytes bounds JSON and iCal uploads.
const maxBodyBytes = 1 << 20

// Services are the collaborators the handlers need.
type Services struct {
	DB        *storage.DB
	Users     *storage.UserRepository
	Slots     *storage.ClassSlotRepository
	Events    *storage.EventRepository
	Calendar  *calendar.Service
	Parser    *calendar.Parser
	Jobs      *scheduler.Scheduler
	Sweeper   *reconcile.Sweeper
	Hub       *websocket.Hub
	Defaults  handlers.UserDefaults
	StaticDir string
	Logger    *zap.Logger
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(s Services) *mux.Router {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	r := mux.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.ErrorRecovery(logger))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(s.DB)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(s.DB, s.Hub, s.Jobs, s.Sweeper)).Methods("GET")
	api.HandleFunc("/jobs", handlers.ListJobs(s.Jobs)).Methods("GET")

	// WebSocket endpoint
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(s.Hub, logger)).Methods("GET")

	// Per-user endpoints; the user is created with defaults on first use
	user := api.PathPrefix("/users/{uid:[0-9]+}").Subrouter()
	user.Use(handlers.UserScope(s.Users, s.Defaults))

	user.HandleFunc("", handlers.GetUser(s.Users)).Methods("GET", "PUT")
	user.HandleFunc("/settings", handlers.GetUser(s.Users)).Methods("GET")
	user.HandleFunc("/settings", handlers.UpdateSettings(s.Users)).Methods("PUT")

	// Shift cycle
	user.HandleFunc("/anchor", handlers.GetAnchor(s.Calendar)).Methods("GET")
	user.HandleFunc("/anchor", handlers.SetAnchor(s.Calendar)).Methods("PUT")
	user.HandleFunc("/calendar", handlers.GetCalendar(s.Calendar)).Methods("GET")
	user.HandleFunc("/shift", handlers.GetShift(s.Calendar)).Methods("GET")

	// Class timetable
	user.HandleFunc("/classes", handlers.ListClasses(s.Slots)).Methods("GET")
	user.HandleFunc("/classes", handlers.CreateClass(s.Slots)).Methods("POST")
	user.HandleFunc("/classes", handlers.ClearClasses(s.Slots)).Methods("DELETE")
	user.HandleFunc("/classes/{id:[0-9]+}", handlers.UpdateClass(s.Slots)).Methods("PUT")
	user.HandleFunc("/classes/{id:[0-9]+}", handlers.DeleteClass(s.Slots)).Methods("DELETE")

	// One-off events
	user.HandleFunc("/events", handlers.ListEvents(s.Events)).Methods("GET")
	user.HandleFunc("/events", handlers.CreateEvent(s.Users, s.Events, s.Sweeper)).Methods("POST")
	user.HandleFunc("/events/import", handlers.ImportEvents(s.Users, s.Events, s.Calendar, s.Sweeper, s.Parser)).Methods("POST")
	user.HandleFunc("/events/{id:[0-9]+}", handlers.GetEvent(s.Events)).Methods("GET")
	user.HandleFunc("/events/{id:[0-9]+}", handlers.DeleteEvent(s.Events)).Methods("DELETE")

	// Serve static frontend files
	if s.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.StaticDir)))
	}

	return r
}
