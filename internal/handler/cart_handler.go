package handler

import (
	"net/http"
	"strings"

	"shop-core/internal/model"
	"shop-core/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CartHandler handles cart-related HTTP requests. All routes are scoped to
// the calling customer; the live cart is resolved from X-Customer-ID.
type CartHandler struct {
	service service.CartService
	logger  zerolog.Logger
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(service service.CartService, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		service: service,
		logger:  logger.With().Str("handler", "cart").Logger(),
	}
}

// resolveCart returns the customer's live cart, creating one when needed.
func (h *CartHandler) resolveCart(w http.ResponseWriter, r *http.Request) (*model.CartView, bool) {
	custID, err := customerID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, model.ErrCodeUnauthorised, err.Error(), h.logger)
		return nil, false
	}

	view, err := h.service.GetOrCreateCart(r.Context(), custID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return nil, false
	}
	return view, true
}

// Get handles GET /api/cart requests.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeMethodNotAllowed, "method not allowed", h.logger)
		return
	}

	view, ok := h.resolveCart(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// AddItem handles POST /api/cart/items requests.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req model.AddCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	view, ok := h.resolveCart(w, r)
	if !ok {
		return
	}

	item, created, err := h.service.AddItem(r.Context(), view.ID, &req)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, item)
}

// Item handles PATCH and DELETE /api/cart/items/{id} requests.
func (h *CartHandler) Item(w http.ResponseWriter, r *http.Request) {
	itemIDStr := strings.TrimPrefix(r.URL.Path, "/api/cart/items/")
	itemID, err := uuid.Parse(itemIDStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid cart item ID", h.logger)
		return
	}

	view, ok := h.resolveCart(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req model.UpdateCartItemRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
			return
		}

		item, err := h.service.UpdateItem(r.Context(), view.ID, itemID, req.Quantity)
		if err != nil {
			writeDomainError(w, err, h.logger)
			return
		}
		if item == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, item)

	case http.MethodDelete:
		if err := h.service.RemoveItem(r.Context(), view.ID, itemID); err != nil {
			writeDomainError(w, err, h.logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeMethodNotAllowed, "method not allowed", h.logger)
	}
}
