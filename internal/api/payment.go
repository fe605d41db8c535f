package api

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
)

// Gateway status strings as the mobile-money provider reports them.
const (
	GatewayPending    = "PENDING"
	GatewaySuccessful = "SUCCESSFUL"
	GatewayFailed     = "FAILED"
)

type PaymentAPI struct {
	client *Client
}

func NewPaymentAPI(client *Client) *PaymentAPI {
	return &PaymentAPI{client: client}
}

type InitiatePaymentRequest struct {
	OrderID     string          `json:"orderId"`
	PhoneNumber string          `json:"phoneNumber"`
	Amount      decimal.Decimal `json:"amount"`
	Operator    string          `json:"operator"`
}

type InitiatePaymentResponse struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference"`
	USSDCode  string `json:"ussdCode"`
	Message   string `json:"message,omitempty"`
}

type PaymentStatusResponse struct {
	Status string `json:"status"`
}

func (p *PaymentAPI) InitiateMobilePayment(ctx context.Context, req InitiatePaymentRequest) (*InitiatePaymentResponse, error) {
	var resp InitiatePaymentResponse
	if err := p.client.do(ctx, http.MethodPost, "/payments/initiate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (p *PaymentAPI) CheckPaymentStatus(ctx context.Context, reference string) (string, error) {
	var resp PaymentStatusResponse
	if err := p.client.do(ctx, http.MethodGet, "/payments/status/"+reference, nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}
