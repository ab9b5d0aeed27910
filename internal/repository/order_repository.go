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
	// ErrOrderNotFound covers every miss on an order lookup: a nonexistent
	// id, an order owned by another user, or one no longer Pending. The
	// caller cannot tell these apart.
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRepository defines the interface for order data access. Every
// single-order operation is scoped to (id, owner, status = Pending).
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindPending(ctx context.Context, id, userID uuid.UUID) (*domain.Order, error)
	IncreaseQuantity(ctx context.Context, id, userID uuid.UUID) error
	DecreaseQuantity(ctx context.Context, id, userID uuid.UUID) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
	ListPendingLines(ctx context.Context, userID uuid.UUID) ([]*domain.OrderLine, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.OrderLine, error)
	ListAll(ctx context.Context, status *domain.OrderStatus, search string, page, pageSize int) ([]*domain.OrderLine, int, error)
	ConfirmPending(ctx context.Context, userID uuid.UUID, notify func(lines []*domain.OrderLine) error) (int, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderLineColumns = `
	o.id, o.user_id, o.cake_id, o.quantity, o.status, o.created_at,
	c.name AS cake_name, c.price AS cake_price
`

// Create inserts a new order into the database using parameterized queries
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (id, user_id, cake_id, quantity, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		order.ID,
		order.UserID,
		order.CakeID,
		order.Quantity,
		order.Status,
		order.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// FindPending retrieves a pending order owned by the given user
func (r *orderRepository) FindPending(ctx context.Context, id, userID uuid.UUID) (*domain.Order, error) {
	query := `
		SELECT id, user_id, cake_id, quantity, status, created_at
		FROM orders
		WHERE id = $1 AND user_id = $2 AND status = $3
	`

	order := &domain.Order{}
	err := r.db.QueryRowContext(ctx, query, id, userID, domain.OrderStatusPending).Scan(
		&order.ID,
		&order.UserID,
		&order.CakeID,
		&order.Quantity,
		&order.Status,
		&order.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find pending order: %w", err)
	}

	return order, nil
}

// IncreaseQuantity increments the quantity of a pending order by one
func (r *orderRepository) IncreaseQuantity(ctx context.Context, id, userID uuid.UUID) error {
	query := `
		UPDATE orders
		SET quantity = quantity + 1
		WHERE id = $1 AND user_id = $2 AND status = $3
	`

	result, err := r.db.ExecContext(ctx, query, id, userID, domain.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("failed to increase quantity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// DecreaseQuantity decrements the quantity of a pending order by one.
// Quantity never drops below 1: at the floor the update matches no row
// and the call is a no-op.
func (r *orderRepository) DecreaseQuantity(ctx context.Context, id, userID uuid.UUID) error {
	query := `
		UPDATE orders
		SET quantity = quantity - 1
		WHERE id = $1 AND user_id = $2 AND status = $3 AND quantity > 1
	`

	result, err := r.db.ExecContext(ctx, query, id, userID, domain.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("failed to decrease quantity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Distinguish the floor no-op from a genuine miss
		if _, err := r.FindPending(ctx, id, userID); err != nil {
			return err
		}
	}

	return nil
}

// Delete removes a pending order owned by the given user
func (r *orderRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	query := `
		DELETE FROM orders
		WHERE id = $1 AND user_id = $2 AND status = $3
	`

	result, err := r.db.ExecContext(ctx, query, id, userID, domain.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// ListPendingLines retrieves all pending orders for a user joined with
// their cakes, oldest first
func (r *orderRepository) ListPendingLines(ctx context.Context, userID uuid.UUID) ([]*domain.OrderLine, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM orders o
		JOIN cakes c ON c.id = o.cake_id
		WHERE o.user_id = $1 AND o.status = $2
		ORDER BY o.created_at ASC
	`, orderLineColumns)

	rows, err := r.db.QueryContext(ctx, query, userID, domain.OrderStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending orders: %w", err)
	}
	defer rows.Close()

	return scanOrderLines(rows)
}

// ListByUser retrieves all orders for a user in any status, newest first
func (r *orderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.OrderLine, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM orders o
		JOIN cakes c ON c.id = o.cake_id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC
	`, orderLineColumns)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	return scanOrderLines(rows)
}

// ListAll retrieves orders across all users for the operator views, with an
// optional status filter and cake-name/username search
func (r *orderRepository) ListAll(ctx context.Context, status *domain.OrderStatus, search string, page, pageSize int) ([]*domain.OrderLine, int, error) {
	whereClause := ""
	args := []interface{}{}
	argIndex := 1

	if status != nil {
		whereClause = fmt.Sprintf("WHERE o.status = $%d", argIndex)
		args = append(args, *status)
		argIndex++
	}

	if search != "" {
		cond := fmt.Sprintf("(c.name ILIKE $%d OR u.username ILIKE $%d)", argIndex, argIndex)
		if whereClause == "" {
			whereClause = "WHERE " + cond
		} else {
			whereClause += " AND " + cond
		}
		args = append(args, "%"+search+"%")
		argIndex++
	}

	countQuery := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM orders o
		JOIN cakes c ON c.id = o.cake_id
		JOIN users u ON u.id = o.user_id
		%s
	`, whereClause)

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`
		SELECT %s
		FROM orders o
		JOIN cakes c ON c.id = o.cake_id
		JOIN users u ON u.id = o.user_id
		%s
		ORDER BY o.created_at DESC
		LIMIT $%d OFFSET $%d
	`, orderLineColumns, whereClause, argIndex, argIndex+1)

	args = append(args, pageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list all orders: %w", err)
	}
	defer rows.Close()

	lines, err := scanOrderLines(rows)
	if err != nil {
		return nil, 0, err
	}

	return lines, total, nil
}

// ConfirmPending transitions all of a user's pending orders to Confirmed
// inside a single transaction. The pending rows are locked and re-read, the
// notify callback runs against that snapshot, and only if it succeeds is the
// bulk status update committed. Any failure rolls back with no state change.
func (r *orderRepository) ConfirmPending(ctx context.Context, userID uuid.UUID, notify func(lines []*domain.OrderLine) error) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		SELECT %s
		FROM orders o
		JOIN cakes c ON c.id = o.cake_id
		WHERE o.user_id = $1 AND o.status = $2
		ORDER BY o.created_at ASC
		FOR UPDATE OF o
	`, orderLineColumns)

	rows, err := tx.QueryContext(ctx, query, userID, domain.OrderStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to lock pending orders: %w", err)
	}

	lines, err := scanOrderLines(rows)
	rows.Close()
	if err != nil {
		return 0, err
	}

	if len(lines) == 0 {
		return 0, nil
	}

	if err := notify(lines); err != nil {
		return 0, err
	}

	result, err := tx.ExecContext(
		ctx,
		`UPDATE orders SET status = $3 WHERE user_id = $1 AND status = $2`,
		userID, domain.OrderStatusPending, domain.OrderStatusConfirmed,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to confirm orders: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit confirmation: %w", err)
	}

	return int(rowsAffected), nil
}

func scanOrderLines(rows *sql.Rows) ([]*domain.OrderLine, error) {
	lines := []*domain.OrderLine{}
	for rows.Next() {
		line := &domain.OrderLine{}
		err := rows.Scan(
			&line.ID,
			&line.UserID,
			&line.CakeID,
			&line.Quantity,
			&line.Status,
			&line.CreatedAt,
			&line.CakeName,
			&line.CakePrice,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order lines: %w", err)
	}

	return lines, nil
}
