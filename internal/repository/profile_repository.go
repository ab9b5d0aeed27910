package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cakeshop/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
)

// ProfileRepository defines the interface for profile data access
type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.Profile) error
	FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	Update(ctx context.Context, profile *domain.Profile) error
}

type profileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new instance of ProfileRepository
func NewProfileRepository(db *sql.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// Create inserts a new profile into the database using parameterized queries
func (r *profileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	query := `
		INSERT INTO profiles (user_id, address, phone, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		profile.UserID,
		profile.Address,
		profile.Phone,
		profile.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

// FindByUserID retrieves the profile attached to a user
func (r *profileRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	query := `
		SELECT user_id, address, phone, created_at
		FROM profiles
		WHERE user_id = $1
	`

	profile := &domain.Profile{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.Address,
		&profile.Phone,
		&profile.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	return profile, nil
}

// Update updates the address and phone of an existing profile
func (r *profileRepository) Update(ctx context.Context, profile *domain.Profile) error {
	query := `
		UPDATE profiles
		SET address = $2, phone = $3
		WHERE user_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, profile.UserID, profile.Address, profile.Phone)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProfileNotFound
	}

	return nil
}
