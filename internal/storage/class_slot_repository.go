package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shift-reminder/backend/internal/storage/models"
)

// ClassSlotRepository provides data access for weekly class slots.
type ClassSlotRepository struct {
	BaseRepository
}

// NewClassSlotRepository creates a new class slot repository.
func NewClassSlotRepository(db *DB) *ClassSlotRepository {
	return &ClassSlotRepository{BaseRepository: NewBaseRepository(db)}
}

const classSlotColumns = "id, user_id, day_of_week, start_time, end_time, subject, room, created_at"

// Create inserts a slot and sets its ID.
func (r *ClassSlotRepository) Create(ctx context.Context, s *models.ClassSlot) error {
	result, err := r.DB().ExecContext(ctx, `
		INSERT INTO class_slots (user_id, day_of_week, start_time, end_time, subject, room)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.UserID, s.DayOfWeek, s.StartTime, s.EndTime, s.Subject, nullString(s.Room))
	if err != nil {
		return fmt.Errorf("inserting class slot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading class slot id: %w", err)
	}
	s.ID = id
	return nil
}

// GetByID retrieves one of the user's slots, or nil when it does not exist.
func (r *ClassSlotRepository) GetByID(ctx context.Context, userID, id int64) (*models.ClassSlot, error) {
	row := r.DB().QueryRowContext(ctx,
		"SELECT "+classSlotColumns+" FROM class_slots WHERE user_id = ? AND id = ?", userID, id)

	s, err := scanClassSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying class slot: %w", err)
	}
	return s, nil
}

// List retrieves all of the user's slots.
func (r *ClassSlotRepository) List(ctx context.Context, userID int64) ([]models.ClassSlot, error) {
	return r.query(ctx, `
		SELECT `+classSlotColumns+` FROM class_slots
		WHERE user_id = ?
		ORDER BY CASE day_of_week
			WHEN 'mon' THEN 1 WHEN 'tue' THEN 2 WHEN 'wed' THEN 3 WHEN 'thu' THEN 4
			WHEN 'fri' THEN 5 WHEN 'sat' THEN 6 ELSE 7 END, start_time
	`, userID)
}

// ListByDay retrieves the user's slots recurring on day, earliest first.
func (r *ClassSlotRepository) ListByDay(ctx context.Context, userID int64, day models.DayOfWeek) ([]models.ClassSlot, error) {
	return r.query(ctx, `
		SELECT `+classSlotColumns+` FROM class_slots
		WHERE user_id = ? AND day_of_week = ?
		ORDER BY start_time
	`, userID, day)
}

// Update replaces a slot's attributes.
func (r *ClassSlotRepository) Update(ctx context.Context, s *models.ClassSlot) error {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE class_slots SET day_of_week = ?, start_time = ?, end_time = ?, subject = ?, room = ?
		WHERE user_id = ? AND id = ?
	`, s.DayOfWeek, s.StartTime, s.EndTime, s.Subject, nullString(s.Room), s.UserID, s.ID)
	if err != nil {
		return fmt.Errorf("updating class slot: %w", err)
	}
	return affected(result)
}

// Delete removes one slot.
func (r *ClassSlotRepository) Delete(ctx context.Context, userID, id int64) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM class_slots WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return fmt.Errorf("deleting class slot: %w", err)
	}
	return affected(result)
}

// Clear removes all of the user's slots and returns how many were removed.
func (r *ClassSlotRepository) Clear(ctx context.Context, userID int64) (int64, error) {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM class_slots WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("clearing class slots: %w", err)
	}
	return result.RowsAffected()
}

func (r *ClassSlotRepository) query(ctx context.Context, q string, args ...any) ([]models.ClassSlot, error) {
	rows, err := r.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying class slots: %w", err)
	}
	defer rows.Close()

	var slots []models.ClassSlot
	for rows.Next() {
		s, err := scanClassSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning class slot: %w", err)
		}
		slots = append(slots, *s)
	}
	return slots, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClassSlot(row scanner) (*models.ClassSlot, error) {
	var s models.ClassSlot
	var room sql.NullString
	if err := row.Scan(&s.ID, &s.UserID, &s.DayOfWeek, &s.StartTime, &s.EndTime, &s.Subject, &room, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Room = stringPtr(room)
	return &s, nil
}
