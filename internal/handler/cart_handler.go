package handler

import (
	"errors"
	"log"
	"net/http"

	"thriftmarket/internal/models"
	"thriftmarket/internal/service"
)

type CartHandler struct {
	logger      *log.Logger
	cartService *service.CartService
}

func NewCartHandler(logger *log.Logger, cartService *service.CartService) *CartHandler {
	return &CartHandler{logger: logger, cartService: cartService}
}

type cartPayload struct {
	Lines    []models.CartLine `json:"lines"`
	Count    int               `json:"count"`
	Subtotal string            `json:"subtotal"`
}

func (h *CartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := ClientID(r)
	if clientID == "" {
		http.Error(w, "X-Client-ID header or session is required", http.StatusBadRequest)
		return
	}

	switch {
	case r.URL.Path == "/cart" && r.Method == http.MethodGet:
		h.writeCart(w, clientID)
	case r.URL.Path == "/cart" && r.Method == http.MethodDelete:
		h.cartService.Clear(clientID)
		h.writeCart(w, clientID)
	case r.URL.Path == "/cart/items" && r.Method == http.MethodPost:
		h.addItem(w, r, clientID)
	case r.URL.Path == "/cart/items" && r.Method == http.MethodPatch:
		h.updateQuantity(w, r, clientID)
	case r.URL.Path == "/cart/items" && r.Method == http.MethodDelete:
		h.removeItem(w, r, clientID)
	default:
		h.logger.Printf("Unhandled cart request: %s %s", r.Method, r.URL.Path)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request, clientID string) {
	var req struct {
		Product  models.Product `json:"product"`
		Quantity int            `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Product.ID == "" {
		http.Error(w, "product id is required", http.StatusBadRequest)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	if err := h.cartService.AddToCart(clientID, req.Product, req.Quantity); err != nil {
		h.writeCartError(w, err)
		return
	}
	h.writeCart(w, clientID)
}

func (h *CartHandler) updateQuantity(w http.ResponseWriter, r *http.Request, clientID string) {
	var req struct {
		ProductID string `json:"product_id"`
		Delta     int    `json:"delta"`
	}
	if err := decodeJSON(r, &req); err != nil || req.ProductID == "" {
		http.Error(w, "product_id and delta are required", http.StatusBadRequest)
		return
	}

	if err := h.cartService.UpdateQuantity(clientID, req.ProductID, req.Delta); err != nil {
		h.writeCartError(w, err)
		return
	}
	h.writeCart(w, clientID)
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request, clientID string) {
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		http.Error(w, "product_id query parameter is required", http.StatusBadRequest)
		return
	}

	if err := h.cartService.RemoveItem(clientID, productID); err != nil {
		h.writeCartError(w, err)
		return
	}
	h.writeCart(w, clientID)
}

func (h *CartHandler) writeCart(w http.ResponseWriter, clientID string) {
	cart := h.cartService.Get(clientID)
	writeJSON(w, h.logger, http.StatusOK, cartPayload{
		Lines:    cart.Lines,
		Count:    cart.Count(),
		Subtotal: cart.Subtotal().StringFixed(2),
	})
}

func (h *CartHandler) writeCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidQuantity):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrLineNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.logger.Printf("Cart error: %v", err)
		http.Error(w, "An unexpected error occurred", http.StatusInternalServerError)
	}
}
