package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shift-reminder/backend/internal/storage/models"
)

// UserRepository provides data access for users and their preferences.
type UserRepository struct {
	BaseRepository
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{BaseRepository: NewBaseRepository(db)}
}

// Ensure creates the user with the given defaults unless it already exists.
func (r *UserRepository) Ensure(ctx context.Context, id int64, timezone, defaultLead string) error {
	_, err := r.DB().ExecContext(ctx, `
		INSERT OR IGNORE INTO users (user_id, timezone, class_lead, event_lead)
		VALUES (?, ?, ?, ?)
	`, id, timezone, defaultLead, defaultLead)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetByID retrieves a user, or nil when it does not exist.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	u := &models.User{}
	err := r.DB().QueryRowContext(ctx, `
		SELECT user_id, timezone, class_lead, event_lead, created_at
		FROM users WHERE user_id = ?
	`, id).Scan(&u.ID, &u.Timezone, &u.ClassLead, &u.EventLead, &u.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// List retrieves every user.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT user_id, timezone, class_lead, event_lead, created_at
		FROM users ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Timezone, &u.ClassLead, &u.EventLead, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdatePreferences replaces the timezone and both lead-time specs.
func (r *UserRepository) UpdatePreferences(ctx context.Context, u *models.User) error {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE users SET timezone = ?, class_lead = ?, event_lead = ? WHERE user_id = ?
	`, u.Timezone, u.ClassLead, u.EventLead, u.ID)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return affected(result)
}

// AnchorLayout is the storage format of anchor dates.
const AnchorLayout = "2006-01-02"

// AnchorRepository stores one shift anchor date per user.
type AnchorRepository struct {
	BaseRepository
}

// NewAnchorRepository creates a new anchor repository.
func NewAnchorRepository(db *DB) *AnchorRepository {
	return &AnchorRepository{BaseRepository: NewBaseRepository(db)}
}

// Get returns the user's anchor date, or nil when unset.
func (r *AnchorRepository) Get(ctx context.Context, userID int64) (*time.Time, error) {
	var raw string
	err := r.DB().QueryRowContext(ctx, "SELECT anchor_date FROM shift_anchors WHERE user_id = ?", userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying anchor: %w", err)
	}

	d, err := time.Parse(AnchorLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("parsing anchor %q: %w", raw, err)
	}
	return &d, nil
}

// Set replaces the user's anchor date.
func (r *AnchorRepository) Set(ctx context.Context, userID int64, date time.Time) error {
	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO shift_anchors (user_id, anchor_date) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET anchor_date = excluded.anchor_date
	`, userID, date.Format(AnchorLayout))
	if err != nil {
		return fmt.Errorf("storing anchor: %w", err)
	}
	return nil
}
