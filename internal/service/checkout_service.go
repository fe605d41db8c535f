package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"thriftmarket/internal/api"
	"thriftmarket/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrLoginRequired   = errors.New("login is required before checkout")
	ErrOrderRejected   = errors.New("order was rejected")
	ErrUnsupportedPath = errors.New("payment method is not handled by this flow")
)

// Confirmation is what a completed checkout hands back: the created sale
// records, any per-line rejections, and the confirmed total.
type Confirmation struct {
	Sales  []models.SaleRecord `json:"sales"`
	Errors []models.LineError  `json:"errors,omitempty"`
	Total  decimal.Decimal     `json:"total"`
}

// CheckoutService runs the card and PayPal paths: one bulk order submission,
// no gateway polling. The mobile-money path lives in PaymentService.
type CheckoutService struct {
	logger      *log.Logger
	cartService *CartService
	orderAPI    *api.OrderAPI
}

func NewCheckoutService(logger *log.Logger, cartService *CartService, orderAPI *api.OrderAPI) *CheckoutService {
	return &CheckoutService{
		logger:      logger,
		cartService: cartService,
		orderAPI:    orderAPI,
	}
}

// SubmitOrder validates the draft, submits every line in one call, and maps
// the outcome. Partial success confirms the accepted lines and itemizes the
// rejected ones; full failure leaves the cart intact.
func (s *CheckoutService) SubmitOrder(ctx context.Context, session *models.Session, clientID string, draft models.OrderDraft) (*Confirmation, error) {
	if draft.PaymentMethod == models.PaymentMobileMoney {
		return nil, ErrUnsupportedPath
	}
	if session == nil {
		// Keep what the user built so checkout can resume after login.
		if err := s.cartService.SaveSnapshot(ctx, clientID); err != nil {
			s.logger.Printf("Warning: failed to snapshot cart before login redirect: %v", err)
		}
		return nil, ErrLoginRequired
	}
	if len(draft.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	req := api.CreateBulkRequest{
		Items:           draftItems(draft),
		PaymentMethod:   draft.PaymentMethod,
		ShippingAddress: draft.ShippingAddress,
	}

	result, err := s.orderAPI.CreateBulk(ctx, req)
	if err != nil {
		// A 401 has already torn the session down via the client callback;
		// every other failure leaves the cart untouched for a retry.
		return nil, err
	}

	if len(result.Sales) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrOrderRejected, summarizeLineErrors(result.Errors))
	}

	s.cartService.Clear(clientID)
	if err := s.cartService.DiscardSnapshot(ctx, clientID); err != nil {
		s.logger.Printf("Warning: failed to discard cart snapshot after checkout: %v", err)
	}

	confirmation := &Confirmation{
		Sales:  result.Sales,
		Errors: result.Errors,
		Total:  salesTotal(result.Sales),
	}
	s.logger.Printf("Order confirmed for user %s: %d sale(s), %d rejected line(s)",
		session.UserID, len(result.Sales), len(result.Errors))
	return confirmation, nil
}

func draftItems(draft models.OrderDraft) []api.OrderItem {
	items := make([]api.OrderItem, 0, len(draft.Lines))
	for _, line := range draft.Lines {
		items = append(items, api.OrderItem{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return items
}

func salesTotal(sales []models.SaleRecord) decimal.Decimal {
	total := decimal.Zero
	for _, sale := range sales {
		total = total.Add(sale.Total)
	}
	return total
}

func summarizeLineErrors(lineErrors []models.LineError) string {
	if len(lineErrors) == 0 {
		return "no lines were accepted"
	}
	parts := make([]string, 0, len(lineErrors))
	for _, le := range lineErrors {
		parts = append(parts, fmt.Sprintf("%s: %s", le.ProductID, le.Message))
	}
	return strings.Join(parts, "; ")
}
