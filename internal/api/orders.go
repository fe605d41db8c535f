package api

import (
	"context"
	"net/http"

	"thriftmarket/internal/models"
)

type OrderAPI struct {
	client *Client
}

func NewOrderAPI(client *Client) *OrderAPI {
	return &OrderAPI{client: client}
}

type OrderItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CreateBulkRequest struct {
	Items            []OrderItem          `json:"items"`
	PaymentMethod    models.PaymentMethod `json:"paymentMethod"`
	ShippingAddress  string               `json:"shippingAddress"`
	PaymentReference string               `json:"paymentReference,omitempty"`
}

// CreateBulk submits all order lines in one call. The backend may accept some
// lines and reject others; both outcomes come back in the same SaleResult.
func (o *OrderAPI) CreateBulk(ctx context.Context, req CreateBulkRequest) (*models.SaleResult, error) {
	var result models.SaleResult
	if err := o.client.do(ctx, http.MethodPost, "/sales/bulk", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
