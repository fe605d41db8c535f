package handler

import (
	"errors"
	"log"
	"net/http"

	"thriftmarket/internal/api"
	"thriftmarket/internal/models"
	"thriftmarket/internal/service"
)

// CheckoutHandler runs the card and PayPal checkout path: one bulk order
// submission, confirmation on success, itemized line errors on partial
// success, and an intact cart on full failure.
type CheckoutHandler struct {
	logger          *log.Logger
	checkoutService *service.CheckoutService
}

func NewCheckoutHandler(logger *log.Logger, checkoutService *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		logger:          logger,
		checkoutService: checkoutService,
	}
}

func (h *CheckoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.logger.Printf("Method not allowed for /checkout: %s", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientID := ClientID(r)
	if clientID == "" {
		http.Error(w, "X-Client-ID header or session is required", http.StatusBadRequest)
		return
	}

	var draft models.OrderDraft
	if err := decodeJSON(r, &draft); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if draft.ShippingAddress == "" {
		http.Error(w, "shipping_address is required", http.StatusBadRequest)
		return
	}
	if draft.PaymentMethod != models.PaymentCard && draft.PaymentMethod != models.PaymentPayPal {
		http.Error(w, "payment_method must be card or paypal for this endpoint", http.StatusBadRequest)
		return
	}

	session := SessionFromContext(r.Context())
	confirmation, err := h.checkoutService.SubmitOrder(r.Context(), session, clientID, draft)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrLoginRequired):
			writeLoginRedirect(w)
		case errors.Is(err, service.ErrEmptyCart):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, api.ErrUnauthorized):
			// Session is already torn down; send the caller back to login.
			writeLoginRedirect(w)
		case errors.Is(err, service.ErrOrderRejected):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			h.logger.Printf("Checkout failed: %v", err)
			http.Error(w, "checkout failed, your cart is unchanged", http.StatusBadGateway)
		}
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, confirmation)
}
