package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	AuthToken   string    `json:"auth_token"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	Image    string          `json:"image"`
	Stock    int             `json:"stock"`
}

type CartLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image"`
	Category  string          `json:"category"`
}

type Cart struct {
	Lines []CartLine `json:"lines"`
}

// Count is the quantity sum across all lines, not the line count.
func (c *Cart) Count() int {
	total := 0
	for _, l := range c.Lines {
		total += l.Quantity
	}
	return total
}

func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

type PaymentMethod string

const (
	PaymentCard        PaymentMethod = "card"
	PaymentPayPal      PaymentMethod = "paypal"
	PaymentMobileMoney PaymentMethod = "mobile_money"
)

type OrderDraft struct {
	Lines           []CartLine    `json:"lines"`
	ShippingAddress string        `json:"shipping_address"`
	Phone           string        `json:"phone,omitempty"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	Operator        string        `json:"operator,omitempty"`
}

type PaymentStatus string

const (
	PaymentInitiating PaymentStatus = "initiating"
	PaymentPending    PaymentStatus = "pending"
	PaymentSuccessful PaymentStatus = "successful"
	PaymentFailed     PaymentStatus = "failed"
)

type PaymentSession struct {
	ID               string          `json:"id"`
	SessionID        string          `json:"session_id,omitempty"`
	OrderID          string          `json:"order_id"`
	Amount           decimal.Decimal `json:"amount"`
	PhoneNumber      string          `json:"phone_number"`
	Operator         string          `json:"operator"`
	Reference        string          `json:"reference,omitempty"`
	USSDCode         string          `json:"ussd_code,omitempty"`
	Status           PaymentStatus   `json:"status"`
	CountdownSeconds int             `json:"countdown_seconds"`
	Message          string          `json:"message,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type SaleRecord struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
	BuyerID     string          `json:"buyer_id"`
	SoldAt      time.Time       `json:"sold_at"`
}

type LineError struct {
	ProductID string `json:"product_id"`
	Message   string `json:"message"`
}

// SaleResult carries a bulk order outcome; partial success is normal,
// with rejected lines itemized in Errors.
type SaleResult struct {
	Sales  []SaleRecord `json:"sales"`
	Errors []LineError  `json:"errors,omitempty"`
}

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Blocked   bool      `json:"blocked"`
	CreatedAt time.Time `json:"created_at"`
}

type StockRecord struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Quantity  int       `json:"quantity"`
	Location  string    `json:"location"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SupplyRecord struct {
	ID         string          `json:"id"`
	Supplier   string          `json:"supplier"`
	Category   string          `json:"category"`
	Quantity   int             `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	ReceivedAt time.Time       `json:"received_at"`
}

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

type Review struct {
	ID           string       `json:"id"`
	ProductID    string       `json:"product_id"`
	AuthorID     string       `json:"author_id"`
	AuthorName   string       `json:"author_name"`
	Rating       int          `json:"rating"`
	Body         string       `json:"body"`
	Status       ReviewStatus `json:"status"`
	HelpfulCount int          `json:"helpful_count"`
	CreatedAt    time.Time    `json:"created_at"`
}

type NewsletterSubscriber struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Active       bool      `json:"active"`
	SubscribedAt time.Time `json:"subscribed_at"`
}
