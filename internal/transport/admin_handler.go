package transport

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"cakeshop/internal/domain"
	"cakeshop/internal/middleware"
	"cakeshop/internal/repository"
	"cakeshop/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxUploadSize = 5 << 20 // 5 MiB

// AdminOrderResponse is one order line in the operator listing
type AdminOrderResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	CakeName  string `json:"cake_name"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// AdminOrderListResponse is a page of the operator order listing
type AdminOrderListResponse struct {
	Orders   []AdminOrderResponse `json:"orders"`
	Total    int                  `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

// AdminHandler handles the operator-facing views over cakes and orders
type AdminHandler struct {
	cakeRepo     repository.CakeRepository
	orderService service.OrderService
	uploadDir    string
	logger       *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	cakeRepo repository.CakeRepository,
	orderService service.OrderService,
	uploadDir string,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		cakeRepo:     cakeRepo,
		orderService: orderService,
		uploadDir:    uploadDir,
		logger:       logger,
	}
}

// RegisterRoutes registers all operator routes behind auth + admin role
func (h *AdminHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireAdmin(h.logger))

		r.Post("/cakes", h.CreateCake)
		r.Put("/cakes/{id}", h.UpdateCake)
		r.Get("/orders", h.ListOrders)
	})
}

// CreateCake handles listing a new cake. The request is multipart form data
// with name, price, and an optional image stored under <uploadDir>/cakes/.
func (h *AdminHandler) CreateCake(w http.ResponseWriter, r *http.Request) {
	name, price, ok := h.cakeForm(w, r)
	if !ok {
		return
	}

	cake := &domain.Cake{
		ID:        uuid.New(),
		Name:      name,
		Price:     price,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	imagePath, err := h.saveImage(r, cake.ID)
	if err != nil {
		h.logger.Error("Failed to store cake image", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to store image")
		return
	}
	cake.ImagePath = imagePath

	if err := h.cakeRepo.Create(r.Context(), cake); err != nil {
		h.logger.Error("Failed to create cake", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to create cake")
		return
	}

	h.logger.Info("Cake created", zap.String("cake_id", cake.ID.String()), zap.String("name", cake.Name))
	middleware.RespondWithJSON(w, http.StatusCreated, toCakeResponse(cake))
}

// UpdateCake handles editing an existing cake's name, price, and image
func (h *AdminHandler) UpdateCake(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid cake ID")
		return
	}

	cake, err := h.cakeRepo.FindByID(r.Context(), id)
	if err != nil {
		if err == repository.ErrCakeNotFound {
			middleware.RespondWithError(w, http.StatusNotFound, "not found")
			return
		}
		h.logger.Error("Failed to find cake", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update cake")
		return
	}

	name, price, ok := h.cakeForm(w, r)
	if !ok {
		return
	}

	cake.Name = name
	cake.Price = price
	cake.UpdatedAt = time.Now()

	imagePath, err := h.saveImage(r, cake.ID)
	if err != nil {
		h.logger.Error("Failed to store cake image", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to store image")
		return
	}
	if imagePath != "" {
		cake.ImagePath = imagePath
	}

	if err := h.cakeRepo.Update(r.Context(), cake); err != nil {
		if err == repository.ErrCakeNotFound {
			middleware.RespondWithError(w, http.StatusNotFound, "not found")
			return
		}
		h.logger.Error("Failed to update cake", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update cake")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toCakeResponse(cake))
}

// ListOrders handles the operator order listing with optional status filter
// and cake-name/username search
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, pageSize := paginationParams(r)
	search := r.URL.Query().Get("search")

	var status *domain.OrderStatus
	switch r.URL.Query().Get("status") {
	case "":
	case string(domain.OrderStatusPending):
		s := domain.OrderStatusPending
		status = &s
	case string(domain.OrderStatusConfirmed):
		s := domain.OrderStatusConfirmed
		status = &s
	default:
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	lines, total, err := h.orderService.ListAll(r.Context(), status, search, page, pageSize)
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	response := AdminOrderListResponse{
		Orders:   make([]AdminOrderResponse, 0, len(lines)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for _, line := range lines {
		response.Orders = append(response.Orders, AdminOrderResponse{
			ID:        line.ID.String(),
			UserID:    line.UserID.String(),
			CakeName:  line.CakeName,
			Price:     line.CakePrice.StringFixed(2),
			Quantity:  line.Quantity,
			Status:    string(line.Status),
			CreatedAt: line.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	middleware.RespondWithJSON(w, http.StatusOK, response)
}

// cakeForm parses and validates the multipart cake form. On failure it has
// already written the error response and returns ok=false.
func (h *AdminHandler) cakeForm(w http.ResponseWriter, r *http.Request) (string, decimal.Decimal, bool) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return "", decimal.Zero, false
	}

	name := r.FormValue("name")
	if name == "" || len(name) > 100 {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
			{Field: "name", Message: "This field is required"},
		})
		return "", decimal.Zero, false
	}

	price, err := decimal.NewFromString(r.FormValue("price"))
	if err != nil || price.IsNegative() || !price.LessThan(decimal.NewFromInt(1000)) {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
			{Field: "price", Message: "Invalid value"},
		})
		return "", decimal.Zero, false
	}

	return name, price, true
}

// saveImage stores the uploaded image under the fixed cakes/ path and
// returns its relative path, or "" when the form carries no image
func (h *AdminHandler) saveImage(r *http.Request, cakeID uuid.UUID) (string, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		if err == http.ErrMissingFile {
			return "", nil
		}
		return "", fmt.Errorf("failed to read image upload: %w", err)
	}
	defer file.Close()

	dir := filepath.Join(h.uploadDir, "cakes")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	filename := cakeID.String() + filepath.Ext(header.Filename)
	path := filepath.Join(dir, filename)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	return filepath.ToSlash(filepath.Join("cakes", filename)), nil
}
