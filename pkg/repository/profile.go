package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/chainvibe/chainvibe/pkg/domain"
	"github.com/chainvibe/chainvibe/pkg/profile"
)

// ProfileRepository stores each profile as a JSON document keyed by user id
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository creates a profile repository
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Load returns the stored profile for the user, profile.ErrNotFound when the
// user has none
func (r *ProfileRepository) Load(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var raw string
	err := r.db.GetContext(ctx, &raw, "SELECT profile_data FROM user_profiles WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, profile.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", userID, err)
	}

	var p domain.UserProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", userID, err)
	}
	return &p, nil
}

// Save upserts the profile, retrying on transient SQLite lock errors
func (r *ProfileRepository) Save(ctx context.Context, p *domain.UserProfile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", p.UserID, err)
	}

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	return retrier.Do(ctx, func() error {
		query := `
			INSERT INTO user_profiles (user_id, profile_data, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				profile_data = excluded.profile_data,
				updated_at = excluded.updated_at
		`
		if _, err := r.db.ExecContext(ctx, query, p.UserID, string(raw), p.UpdatedAt); err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("save profile %s: %w", p.UserID, err)}
		}
		return nil
	})
}

// Delete removes the user's profile, no error if absent
func (r *ProfileRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM user_profiles WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete profile %s: %w", userID, err)
	}
	return nil
}
