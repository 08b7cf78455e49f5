package handler

import (
	"net/http"

	"shop-core/internal/model"
	"shop-core/internal/service"

	"github.com/rs/zerolog"
)

// CheckoutHandler handles checkout draft HTTP requests. The draft is always
// resolved through the customer's live cart.
type CheckoutHandler struct {
	service     service.CheckoutService
	cartService service.CartService
	logger      zerolog.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(service service.CheckoutService, cartService service.CartService, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service:     service,
		cartService: cartService,
		logger:      logger.With().Str("handler", "checkout").Logger(),
	}
}

func (h *CheckoutHandler) resolveCart(w http.ResponseWriter, r *http.Request) (*model.CartView, bool) {
	custID, err := customerID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, model.ErrCodeUnauthorised, err.Error(), h.logger)
		return nil, false
	}

	view, err := h.cartService.GetOrCreateCart(r.Context(), custID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return nil, false
	}
	return view, true
}

// Draft handles GET and PUT /api/checkout requests.
func (h *CheckoutHandler) Draft(w http.ResponseWriter, r *http.Request) {
	view, ok := h.resolveCart(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		checkout, err := h.service.GetOrCreateDraft(r.Context(), view.ID)
		if err != nil {
			writeDomainError(w, err, h.logger)
			return
		}
		writeJSON(w, http.StatusOK, checkout)

	case http.MethodPut:
		var req model.UpdateCheckoutRequest
		if err := decodeStrictJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
			return
		}

		checkout, err := h.service.UpdateDraft(r.Context(), view.ID, &req)
		if err != nil {
			writeDomainError(w, err, h.logger)
			return
		}
		writeJSON(w, http.StatusOK, checkout)

	default:
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeMethodNotAllowed, "method not allowed", h.logger)
	}
}

// Confirm handles POST /api/checkout/confirm requests.
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeMethodNotAllowed, "method not allowed", h.logger)
		return
	}

	view, ok := h.resolveCart(w, r)
	if !ok {
		return
	}

	checkout, err := h.service.Confirm(r.Context(), view.ID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, checkout)
}
