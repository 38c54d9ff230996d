package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shift-reminder/backend/internal/storage/models"
)

// EventRepository provides data access for one-off events.
type EventRepository struct {
	BaseRepository
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{BaseRepository: NewBaseRepository(db)}
}

const eventColumns = "id, user_id, title, starts_at, location, lead_spec, created_at"

// Create inserts an event and sets its ID.
func (r *EventRepository) Create(ctx context.Context, e *models.Event) error {
	result, err := r.DB().ExecContext(ctx, `
		INSERT INTO events (user_id, title, starts_at, location, lead_spec)
		VALUES (?, ?, ?, ?, ?)
	`, e.UserID, e.Title, e.StartsAt.Format(models.NaiveLayout), nullString(e.Location), nullString(e.LeadSpec))
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading event id: %w", err)
	}
	e.ID = id
	return nil
}

// GetByID retrieves one of the user's events, or nil when it does not exist.
func (r *EventRepository) GetByID(ctx context.Context, userID, id int64) (*models.Event, error) {
	row := r.DB().QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE user_id = ? AND id = ?", userID, id)

	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying event: %w", err)
	}
	return e, nil
}

// List retrieves the user's events ordered by start. from and to bound the
// naive start time inclusively when set.
func (r *EventRepository) List(ctx context.Context, userID int64, from, to *time.Time) ([]models.Event, error) {
	var sb strings.Builder
	sb.WriteString("SELECT " + eventColumns + " FROM events WHERE user_id = ?")
	args := []any{userID}

	if from != nil {
		sb.WriteString(" AND starts_at >= ?")
		args = append(args, from.Format(models.NaiveLayout))
	}
	if to != nil {
		sb.WriteString(" AND starts_at <= ?")
		args = append(args, to.Format(models.NaiveLayout))
	}
	sb.WriteString(" ORDER BY starts_at")

	rows, err := r.DB().QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// Delete removes one event.
func (r *EventRepository) Delete(ctx context.Context, userID, id int64) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM events WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	return affected(result)
}

func scanEvent(row scanner) (*models.Event, error) {
	var e models.Event
	var startsAt string
	var location, lead sql.NullString
	if err := row.Scan(&e.ID, &e.UserID, &e.Title, &startsAt, &location, &lead, &e.CreatedAt); err != nil {
		return nil, err
	}

	t, err := time.Parse(models.NaiveLayout, startsAt)
	if err != nil {
		return nil, fmt.Errorf("parsing start %q: %w", startsAt, err)
	}
	e.StartsAt = t
	e.Location = stringPtr(location)
	e.LeadSpec = stringPtr(lead)
	return &e, nil
}
