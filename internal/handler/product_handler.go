package handler

import (
	"net/http"
	"strings"

	"shop-core/internal/model"
	"shop-core/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ProductHandler serves the read-only product catalog view. Stock shown here
// is advisory; reservations only happen at order creation.
type ProductHandler struct {
	repo   repository.ProductRepository
	logger zerolog.Logger
}

// NewProductHandler creates a new product handler.
func NewProductHandler(repo repository.ProductRepository, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		repo:   repo,
		logger: logger.With().Str("handler", "product").Logger(),
	}
}

// GetAll handles GET /api/products requests.
func (h *ProductHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeMethodNotAllowed, "method not allowed", h.logger)
		return
	}

	products, err := h.repo.List(r.Context())
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, products)
}

// GetByID handles GET /api/products/{id} requests.
func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeMethodNotAllowed, "method not allowed", h.logger)
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/api/products/")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid product ID format", h.logger)
		return
	}

	product, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	if product == nil {
		writeError(w, http.StatusNotFound, model.ErrCodeNotFound, "product not found", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, product)
}
