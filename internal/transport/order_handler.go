package transport

import (
	"context"
	"net/http"

	"cakeshop/internal/domain"
	"cakeshop/internal/middleware"
	"cakeshop/internal/repository"
	"cakeshop/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateOrderRequest represents the order creation payload
type CreateOrderRequest struct {
	CakeID   string `json:"cake_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,gte=1"`
}

// OrderResponse represents a single order line returned to the client
type OrderResponse struct {
	ID        string `json:"id"`
	CakeID    string `json:"cake_id"`
	CakeName  string `json:"cake_name,omitempty"`
	Quantity  int    `json:"quantity"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// SummaryLineResponse is one pending line with its subtotal
type SummaryLineResponse struct {
	ID       string `json:"id"`
	CakeName string `json:"cake_name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
	Subtotal string `json:"subtotal"`
}

// SummaryResponse is the pending-order view shown before confirmation
type SummaryResponse struct {
	Lines []SummaryLineResponse `json:"lines"`
	Total string                `json:"total"`
}

// ConfirmResponse reports how many orders were finalized
type ConfirmResponse struct {
	Confirmed int `json:"confirmed"`
}

// HistoryLineResponse is one order in the history listing
type HistoryLineResponse struct {
	ID        string `json:"id"`
	CakeName  string `json:"cake_name"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// OrderHandler handles HTTP requests for the order workflow
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes registers all order routes; every route requires an
// authenticated account
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Post("/", h.Create)
		// Alias used by the confirmation view to add another line
		r.Post("/items", h.Create)
		r.Get("/history", h.History)
		r.Get("/confirmation", h.Confirmation)
		r.Post("/confirm", h.Confirm)
		r.Post("/{id}/increase", h.Increase)
		r.Post("/{id}/decrease", h.Decrease)
		r.Delete("/{id}", h.Delete)
	})
}

// Create handles adding a new pending order line
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Order validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cakeID, err := uuid.Parse(req.CakeID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid cake ID")
		return
	}

	order, err := h.orderService.Create(r.Context(), userID, cakeID, req.Quantity)
	if err != nil {
		switch err {
		case repository.ErrCakeNotFound:
			h.logger.Debug("Cake not found for order", zap.String("cake_id", cakeID.String()))
			middleware.RespondWithError(w, http.StatusNotFound, "not found")
		case service.ErrInvalidQuantity:
			middleware.RespondWithError(w, http.StatusBadRequest, "quantity must be a positive integer")
		default:
			h.logger.Error("Failed to create order", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to create order")
		}
		return
	}

	h.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, OrderResponse{
		ID:        order.ID.String(),
		CakeID:    order.CakeID.String(),
		Quantity:  order.Quantity,
		Status:    string(order.Status),
		CreatedAt: order.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// Increase handles adding one to a pending order's quantity
func (h *OrderHandler) Increase(w http.ResponseWriter, r *http.Request) {
	h.mutateQuantity(w, r, h.orderService.IncreaseQuantity)
}

// Decrease handles removing one from a pending order's quantity; at
// quantity 1 the call succeeds without change
func (h *OrderHandler) Decrease(w http.ResponseWriter, r *http.Request) {
	h.mutateQuantity(w, r, h.orderService.DecreaseQuantity)
}

func (h *OrderHandler) mutateQuantity(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, orderID uuid.UUID) error) {
	userID, ok := currentUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	if err := op(r.Context(), userID, orderID); err != nil {
		if err == repository.ErrOrderNotFound {
			h.logger.Debug("Order not found", zap.String("order_id", orderID.String()))
			middleware.RespondWithError(w, http.StatusNotFound, "not found")
			return
		}
		h.logger.Error("Failed to update order quantity", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update order")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

// Delete handles removing a pending order line
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	if err := h.orderService.DeleteItem(r.Context(), userID, orderID); err != nil {
		if err == repository.ErrOrderNotFound {
			h.logger.Debug("Order not found for delete", zap.String("order_id", orderID.String()))
			middleware.RespondWithError(w, http.StatusNotFound, "not found")
			return
		}
		h.logger.Error("Failed to delete order", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to delete order")
		return
	}

	h.logger.Info("Order deleted",
		zap.String("order_id", orderID.String()),
		zap.String("user_id", userID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

// Confirmation handles the pre-confirmation view: all pending lines with
// per-line subtotals and the grand total
func (h *OrderHandler) Confirmation(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summary, err := h.orderService.PendingSummary(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to build pending summary", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get pending orders")
		return
	}

	response := SummaryResponse{
		Lines: make([]SummaryLineResponse, 0, len(summary.Lines)),
		Total: summary.Total.StringFixed(2),
	}
	for _, l := range summary.Lines {
		response.Lines = append(response.Lines, SummaryLineResponse{
			ID:       l.Line.ID.String(),
			CakeName: l.Line.CakeName,
			Price:    l.Line.CakePrice.StringFixed(2),
			Quantity: l.Line.Quantity,
			Subtotal: l.Subtotal.StringFixed(2),
		})
	}

	middleware.RespondWithJSON(w, http.StatusOK, response)
}

// Confirm handles finalizing all pending orders. On a failed email send the
// orders stay Pending and the caller gets a generic error with no detail on
// the cause.
func (h *OrderHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	confirmed, err := h.orderService.Confirm(r.Context(), userID)
	if err != nil {
		if err == service.ErrNothingToConfirm {
			middleware.RespondWithError(w, http.StatusNotFound, "not found")
			return
		}
		h.logger.Error("Order confirmation failed", zap.Error(err), zap.String("user_id", userID.String()))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to confirm order")
		return
	}

	h.logger.Info("Orders confirmed",
		zap.Int("count", confirmed),
		zap.String("user_id", userID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusOK, ConfirmResponse{Confirmed: confirmed})
}

// History handles the read-only order history listing, newest first
func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	lines, err := h.orderService.History(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list order history", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get order history")
		return
	}

	response := make([]HistoryLineResponse, 0, len(lines))
	for _, line := range lines {
		response = append(response, toHistoryLine(line))
	}

	middleware.RespondWithJSON(w, http.StatusOK, response)
}

func toHistoryLine(line *domain.OrderLine) HistoryLineResponse {
	return HistoryLineResponse{
		ID:        line.ID.String(),
		CakeName:  line.CakeName,
		Price:     line.CakePrice.StringFixed(2),
		Quantity:  line.Quantity,
		Status:    string(line.Status),
		CreatedAt: line.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}
