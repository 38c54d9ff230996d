package shift

import (
	"context"
	"fmt"
	"time"
)

// AnchorStore persists one anchor date per user.
type AnchorStore interface {
	Get(ctx context.Context, userID int64) (*time.Time, error)
	Set(ctx context.Context, userID int64, date time.Time) error
}

// EnsureAnchor returns the user's anchor date, storing today as the anchor
// when none has been set yet.
func EnsureAnchor(ctx context.Context, store AnchorStore, userID int64, today time.Time) (time.Time, error) {
	anchor, err := store.Get(ctx, userID)
	if err != nil {
		return time.Time{}, fmt.Errorf("loading anchor: %w", err)
	}
	if anchor != nil {
		return Date(*anchor), nil
	}

	day := Date(today)
	if err := store.Set(ctx, userID, day); err != nil {
		return time.Time{}, fmt.Errorf("storing default anchor: %w", err)
	}
	return day, nil
}
