package handler

import (
	"errors"
	"log"
	"net/http"

	"thriftmarket/internal/models"
	"thriftmarket/internal/payment"
	"thriftmarket/internal/service"
)

// PaymentHandler fronts the mobile-money flow: initiation, status probes,
// manual checks, and retries.
type PaymentHandler struct {
	logger         *log.Logger
	paymentService *service.PaymentService
}

func NewPaymentHandler(logger *log.Logger, paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		logger:         logger,
		paymentService: paymentService,
	}
}

type paymentStatusPayload struct {
	Payment models.PaymentSession `json:"payment"`
	Order   *payment.Result       `json:"order,omitempty"`
}

func (h *PaymentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/payment/initiate" && r.Method == http.MethodPost:
		h.initiate(w, r)
	case r.URL.Path == "/payment/status" && r.Method == http.MethodGet:
		h.status(w, r)
	case r.URL.Path == "/payment/check" && r.Method == http.MethodPost:
		h.checkNow(w, r)
	case r.URL.Path == "/payment/retry" && r.Method == http.MethodPost:
		h.retry(w, r)
	default:
		h.logger.Printf("Unhandled payment request: %s %s", r.Method, r.URL.Path)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *PaymentHandler) initiate(w http.ResponseWriter, r *http.Request) {
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
	if draft.Phone == "" || draft.Operator == "" {
		http.Error(w, "phone and operator are required for mobile money", http.StatusBadRequest)
		return
	}
	if draft.ShippingAddress == "" {
		http.Error(w, "shipping_address is required", http.StatusBadRequest)
		return
	}
	draft.PaymentMethod = models.PaymentMobileMoney

	session := SessionFromContext(r.Context())
	record, err := h.paymentService.StartMobilePayment(r.Context(), session, clientID, draft)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrLoginRequired):
			writeLoginRedirect(w)
		case errors.Is(err, service.ErrEmptyCart):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Printf("Payment initiation failed: %v", err)
			http.Error(w, "payment initiation failed", http.StatusBadGateway)
		}
		return
	}

	writeJSON(w, h.logger, http.StatusAccepted, paymentStatusPayload{Payment: record})
}

func (h *PaymentHandler) status(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id query parameter is required", http.StatusBadRequest)
		return
	}

	record, result, err := h.paymentService.Status(r.Context(), id)
	if err != nil {
		h.writePaymentError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, paymentStatusPayload{Payment: record, Order: result})
}

func (h *PaymentHandler) checkNow(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id query parameter is required", http.StatusBadRequest)
		return
	}

	record, err := h.paymentService.CheckNow(r.Context(), id)
	if err != nil && !errors.Is(err, payment.ErrNotPending) {
		h.writePaymentError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, paymentStatusPayload{Payment: record})
}

func (h *PaymentHandler) retry(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id query parameter is required", http.StatusBadRequest)
		return
	}

	record, err := h.paymentService.Retry(r.Context(), id)
	if err != nil && !errors.Is(err, payment.ErrGatewayRejected) {
		h.writePaymentError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, paymentStatusPayload{Payment: record})
}

func (h *PaymentHandler) writePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrPaymentNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, payment.ErrNotFailed), errors.Is(err, payment.ErrNotPending):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Printf("Payment error: %v", err)
		http.Error(w, "An unexpected error occurred", http.StatusInternalServerError)
	}
}
