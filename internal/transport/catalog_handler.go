package transport

import (
	"net/http"
	"strconv"

	"cakeshop/internal/domain"
	"cakeshop/internal/middleware"
	"cakeshop/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CakeResponse represents a catalog entry returned to the client
type CakeResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	ImagePath string `json:"image_path"`
}

// CakeListResponse represents a page of the catalog
type CakeListResponse struct {
	Cakes    []CakeResponse `json:"cakes"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// CatalogHandler handles HTTP requests for browsing the catalog
type CatalogHandler struct {
	cakeRepo repository.CakeRepository
	logger   *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(cakeRepo repository.CakeRepository, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		cakeRepo: cakeRepo,
		logger:   logger,
	}
}

// RegisterRoutes registers all catalog routes
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/cakes", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
	})
}

// List handles the storefront index: the catalog with optional search,
// pagination, and sorting
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := paginationParams(r)
	search := r.URL.Query().Get("search")
	sortBy := r.URL.Query().Get("sort_by")
	sortOrder := repository.SortOrder(r.URL.Query().Get("sort_order"))

	var (
		cakes []*domain.Cake
		total int
		err   error
	)

	if search != "" {
		cakes, total, err = h.cakeRepo.Search(r.Context(), search, page, pageSize)
	} else {
		cakes, total, err = h.cakeRepo.List(r.Context(), page, pageSize, sortBy, sortOrder)
	}

	if err != nil {
		h.logger.Error("Failed to list cakes", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list cakes")
		return
	}

	response := CakeListResponse{
		Cakes:    make([]CakeResponse, 0, len(cakes)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for _, cake := range cakes {
		response.Cakes = append(response.Cakes, toCakeResponse(cake))
	}

	middleware.RespondWithJSON(w, http.StatusOK, response)
}

// Get handles fetching a single cake by ID
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid cake ID")
		return
	}

	cake, err := h.cakeRepo.FindByID(r.Context(), id)
	if err != nil {
		if err == repository.ErrCakeNotFound {
			h.logger.Debug("Cake not found", zap.String("cake_id", id.String()))
			middleware.RespondWithError(w, http.StatusNotFound, "not found")
			return
		}
		h.logger.Error("Failed to get cake", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get cake")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toCakeResponse(cake))
}

func toCakeResponse(cake *domain.Cake) CakeResponse {
	return CakeResponse{
		ID:        cake.ID.String(),
		Name:      cake.Name,
		Price:     cake.Price.StringFixed(2),
		ImagePath: cake.ImagePath,
	}
}

// paginationParams extracts page and page_size query parameters with defaults
func paginationParams(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	return page, pageSize
}
