package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cakeshop/internal/domain"
	"cakeshop/internal/mailer"
	"cakeshop/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const confirmationSubject = "Order Confirmation"

var (
	ErrInvalidQuantity  = errors.New("quantity must be a positive integer")
	ErrNothingToConfirm = errors.New("no pending orders to confirm")
)

// OrderSummaryLine is one pending line with its computed subtotal
type OrderSummaryLine struct {
	Line     *domain.OrderLine `json:"line"`
	Subtotal decimal.Decimal   `json:"subtotal"`
}

// OrderSummary is the pending-order view shown before confirmation
type OrderSummary struct {
	Lines []OrderSummaryLine `json:"lines"`
	Total decimal.Decimal    `json:"total"`
}

// OrderService orchestrates the order workflow: creation, quantity
// mutation, deletion, confirmation, and history
type OrderService interface {
	Create(ctx context.Context, userID, cakeID uuid.UUID, quantity int) (*domain.Order, error)
	IncreaseQuantity(ctx context.Context, userID, orderID uuid.UUID) error
	DecreaseQuantity(ctx context.Context, userID, orderID uuid.UUID) error
	DeleteItem(ctx context.Context, userID, orderID uuid.UUID) error
	PendingSummary(ctx context.Context, userID uuid.UUID) (*OrderSummary, error)
	Confirm(ctx context.Context, userID uuid.UUID) (int, error)
	History(ctx context.Context, userID uuid.UUID) ([]*domain.OrderLine, error)
	ListAll(ctx context.Context, status *domain.OrderStatus, search string, page, pageSize int) ([]*domain.OrderLine, int, error)
}

type orderService struct {
	orderRepo repository.OrderRepository
	cakeRepo  repository.CakeRepository
	userRepo  repository.UserRepository
	mailer    mailer.Mailer
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	orderRepo repository.OrderRepository,
	cakeRepo repository.CakeRepository,
	userRepo repository.UserRepository,
	m mailer.Mailer,
) OrderService {
	return &orderService{
		orderRepo: orderRepo,
		cakeRepo:  cakeRepo,
		userRepo:  userRepo,
		mailer:    m,
	}
}

// Create validates the cake and quantity and persists a new Pending order
func (s *orderService) Create(ctx context.Context, userID, cakeID uuid.UUID, quantity int) (*domain.Order, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	if _, err := s.cakeRepo.FindByID(ctx, cakeID); err != nil {
		if err == repository.ErrCakeNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up cake: %w", err)
	}

	order := &domain.Order{
		ID:        uuid.New(),
		UserID:    userID,
		CakeID:    cakeID,
		Quantity:  quantity,
		Status:    domain.OrderStatusPending,
		CreatedAt: time.Now(),
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	return order, nil
}

// IncreaseQuantity adds one to a pending order owned by the caller
func (s *orderService) IncreaseQuantity(ctx context.Context, userID, orderID uuid.UUID) error {
	return s.orderRepo.IncreaseQuantity(ctx, orderID, userID)
}

// DecreaseQuantity removes one from a pending order owned by the caller.
// At quantity 1 the call is a no-op; the line is never driven to zero.
func (s *orderService) DecreaseQuantity(ctx context.Context, userID, orderID uuid.UUID) error {
	return s.orderRepo.DecreaseQuantity(ctx, orderID, userID)
}

// DeleteItem removes a pending order owned by the caller
func (s *orderService) DeleteItem(ctx context.Context, userID, orderID uuid.UUID) error {
	return s.orderRepo.Delete(ctx, orderID, userID)
}

// PendingSummary fetches the caller's pending orders and computes per-line
// subtotals and the grand total. Pure read.
func (s *orderService) PendingSummary(ctx context.Context, userID uuid.UUID) (*OrderSummary, error) {
	lines, err := s.orderRepo.ListPendingLines(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &OrderSummary{
		Lines: make([]OrderSummaryLine, 0, len(lines)),
		Total: decimal.Zero,
	}

	for _, line := range lines {
		subtotal := line.Subtotal()
		summary.Lines = append(summary.Lines, OrderSummaryLine{
			Line:     line,
			Subtotal: subtotal,
		})
		summary.Total = summary.Total.Add(subtotal)
	}

	return summary, nil
}

// Confirm finalizes all of the caller's pending orders. The pending set is
// re-read and locked, a summary email goes to the account's registered
// address, and only after a successful send does the whole set transition to
// Confirmed. A failed send leaves every order Pending; there is no retry.
// Returns the number of orders confirmed.
func (s *orderService) Confirm(ctx context.Context, userID uuid.UUID) (int, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to find user: %w", err)
	}

	confirmed, err := s.orderRepo.ConfirmPending(ctx, userID, func(lines []*domain.OrderLine) error {
		body := buildConfirmationBody(user.Username, lines)
		return s.mailer.Send(ctx, user.Email, confirmationSubject, body)
	})
	if err != nil {
		return 0, err
	}

	if confirmed == 0 {
		return 0, ErrNothingToConfirm
	}

	return confirmed, nil
}

// History lists all of the caller's orders in any status, newest first
func (s *orderService) History(ctx context.Context, userID uuid.UUID) ([]*domain.OrderLine, error) {
	return s.orderRepo.ListByUser(ctx, userID)
}

// ListAll is the operator view over every account's orders
func (s *orderService) ListAll(ctx context.Context, status *domain.OrderStatus, search string, page, pageSize int) ([]*domain.OrderLine, int, error) {
	return s.orderRepo.ListAll(ctx, status, search, page, pageSize)
}

// buildConfirmationBody renders the plain-text confirmation message: a
// greeting, one "N x Name" line per item, and the total to two decimals
func buildConfirmationBody(username string, lines []*domain.OrderLine) string {
	items := make([]string, 0, len(lines))
	total := decimal.Zero
	for _, line := range lines {
		items = append(items, fmt.Sprintf("%d x %s", line.Quantity, line.CakeName))
		total = total.Add(line.Subtotal())
	}

	return fmt.Sprintf(
		"Thank you for your order, %s. You have ordered the following items:\n\n%s\n\nTotal price: $%s.",
		username,
		strings.Join(items, "\n"),
		total.StringFixed(2),
	)
}
