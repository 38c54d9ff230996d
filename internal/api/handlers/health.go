// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"net/http"
	"time"

	"github.com/shift-reminder/backend/internal/reconcile"
	"github.com/shift-reminder/backend/internal/scheduler"
	"github.com/shift-reminder/backend/internal/storage"
	"github.com/shift-reminder/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.PingContext(r.Context()) == nil

		status := "healthy"
		code := http.StatusOK
		if !dbConnected {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, HealthResponse{Status: status, DBConnected: dbConnected})
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	UsersCount       int                  `json:"users_count"`
	ConnectedClients int                  `json:"connected_clients"`
	PendingJobs      int                  `json:"pending_jobs"`
	NextFireAt       *time.Time           `json:"next_fire_at,omitempty"`
	Jobs             scheduler.Stats      `json:"jobs"`
	NextSweeps       map[string]time.Time `json:"next_sweeps,omitempty"`
}

// Status returns a handler that provides system status information.
func Status(db *storage.DB, hub *websocket.Hub, jobs *scheduler.Scheduler, sweeper *reconcile.Sweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var usersCount int
		db.QueryRowContext(r.Context(), "SELECT COUNT(*) FROM users").Scan(&usersCount)

		response := StatusResponse{
			UsersCount:       usersCount,
			ConnectedClients: hub.ClientCount(),
			PendingJobs:      jobs.Len(),
			Jobs:             jobs.Stats(),
		}
		if next, ok := jobs.Next(); ok {
			response.NextFireAt = &next
		}
		if sweeper != nil {
			response.NextSweeps = sweeper.NextRuns()
		}

		writeJSON(w, http.StatusOK, response)
	}
}

// ListJobs returns the pending reminder jobs ordered by fire time.
func ListJobs(jobs *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, jobs.Pending())
	}
}
