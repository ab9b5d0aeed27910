package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"cakeshop/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrCakeNotFound = errors.New("cake not found")
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// CakeRepository defines the interface for catalog data access
type CakeRepository interface {
	Create(ctx context.Context, cake *domain.Cake) error
	Update(ctx context.Context, cake *domain.Cake) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Cake, error)
	List(ctx context.Context, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Cake, int, error)
	Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Cake, int, error)
}

type cakeRepository struct {
	db *sql.DB
}

// NewCakeRepository creates a new instance of CakeRepository
func NewCakeRepository(db *sql.DB) CakeRepository {
	return &cakeRepository{db: db}
}

// Create inserts a new cake into the database using parameterized queries
func (r *cakeRepository) Create(ctx context.Context, cake *domain.Cake) error {
	query := `
		INSERT INTO cakes (id, name, price, image_path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		cake.ID,
		cake.Name,
		cake.Price,
		cake.ImagePath,
		cake.CreatedAt,
		cake.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create cake: %w", err)
	}

	return nil
}

// Update updates an existing cake in the database using parameterized queries
func (r *cakeRepository) Update(ctx context.Context, cake *domain.Cake) error {
	query := `
		UPDATE cakes
		SET name = $2, price = $3, image_path = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		cake.ID,
		cake.Name,
		cake.Price,
		cake.ImagePath,
		cake.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update cake: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCakeNotFound
	}

	return nil
}

// FindByID retrieves a cake by ID using parameterized queries
func (r *cakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Cake, error) {
	query := `
		SELECT id, name, price, image_path, created_at, updated_at
		FROM cakes
		WHERE id = $1
	`

	cake := &domain.Cake{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&cake.ID,
		&cake.Name,
		&cake.Price,
		&cake.ImagePath,
		&cake.CreatedAt,
		&cake.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCakeNotFound
		}
		return nil, fmt.Errorf("failed to find cake by ID: %w", err)
	}

	return cake, nil
}

// List retrieves cakes with pagination and sorting
func (r *cakeRepository) List(ctx context.Context, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Cake, int, error) {
	// Validate sort field to prevent SQL injection
	validSortFields := map[string]bool{
		"name":       true,
		"price":      true,
		"created_at": true,
	}

	if !validSortFields[sortBy] {
		sortBy = "created_at" // Default sort field
	}

	// Validate sort order
	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderDesc // Default sort order
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cakes").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count cakes: %w", err)
	}

	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`
		SELECT id, name, price, image_path, created_at, updated_at
		FROM cakes
		ORDER BY %s %s
		LIMIT $1 OFFSET $2
	`, sortBy, sortOrder)

	rows, err := r.db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cakes: %w", err)
	}
	defer rows.Close()

	cakes, err := scanCakes(rows)
	if err != nil {
		return nil, 0, err
	}

	return cakes, total, nil
}

// Search searches for cakes by name with pagination
func (r *cakeRepository) Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Cake, int, error) {
	// If query is empty, return the full catalog
	if strings.TrimSpace(query) == "" {
		return r.List(ctx, page, pageSize, "created_at", SortOrderDesc)
	}

	// Use ILIKE for case-insensitive search
	searchPattern := "%" + query + "%"

	countQuery := `
		SELECT COUNT(*)
		FROM cakes
		WHERE name ILIKE $1
	`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, searchPattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count search results: %w", err)
	}

	offset := (page - 1) * pageSize

	searchQuery := `
		SELECT id, name, price, image_path, created_at, updated_at
		FROM cakes
		WHERE name ILIKE $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, searchQuery, searchPattern, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search cakes: %w", err)
	}
	defer rows.Close()

	cakes, err := scanCakes(rows)
	if err != nil {
		return nil, 0, err
	}

	return cakes, total, nil
}

func scanCakes(rows *sql.Rows) ([]*domain.Cake, error) {
	cakes := []*domain.Cake{}
	for rows.Next() {
		cake := &domain.Cake{}
		err := rows.Scan(
			&cake.ID,
			&cake.Name,
			&cake.Price,
			&cake.ImagePath,
			&cake.CreatedAt,
			&cake.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cake: %w", err)
		}
		cakes = append(cakes, cake)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cakes: %w", err)
	}

	return cakes, nil
}
