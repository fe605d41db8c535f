package api

import (
	"context"
	"net/http"

	"thriftmarket/internal/models"
)

type AdminAPI struct {
	client *Client
}

func NewAdminAPI(client *Client) *AdminAPI {
	return &AdminAPI{client: client}
}

type ProductStats struct {
	Total         int            `json:"total"`
	OutOfStock    int            `json:"out_of_stock"`
	ByCategory    map[string]int `json:"by_category"`
	TotalQuantity int            `json:"total_quantity"`
}

type UserStats struct {
	Total   int            `json:"total"`
	Blocked int            `json:"blocked"`
	ByRole  map[string]int `json:"by_role"`
}

type NewsletterStats struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	Unsubscribed int `json:"unsubscribed"`
}

func (a *AdminAPI) ListProducts(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	if err := a.client.do(ctx, http.MethodGet, "/admin/products", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *AdminAPI) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	var out models.Product
	if err := a.client.do(ctx, http.MethodPost, "/admin/products", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AdminAPI) UpdateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	var out models.Product
	if err := a.client.do(ctx, http.MethodPut, "/admin/products/"+p.ID, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AdminAPI) DeleteProduct(ctx context.Context, id string) error {
	return a.client.do(ctx, http.MethodDelete, "/admin/products/"+id, nil, nil)
}

func (a *AdminAPI) GetProductStats(ctx context.Context) (*ProductStats, error) {
	var out ProductStats
	if err := a.client.do(ctx, http.MethodGet, "/admin/products/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AdminAPI) ListUsers(ctx context.Context) ([]models.User, error) {
	var out []models.User
	if err := a.client.do(ctx, http.MethodGet, "/admin/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *AdminAPI) UpdateUser(ctx context.Context, u *models.User) (*models.User, error) {
	var out models.User
	if err := a.client.do(ctx, http.MethodPut, "/admin/users/"+u.ID, u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AdminAPI) DeleteUser(ctx context.Context, id string) error {
	return a.client.do(ctx, http.MethodDelete, "/admin/users/"+id, nil, nil)
}

func (a *AdminAPI) GetUserStats(ctx context.Context) (*UserStats, error) {
	var out UserStats
	if err := a.client.do(ctx, http.MethodGet, "/admin/users/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AdminAPI) ListSales(ctx context.Context) ([]models.SaleRecord, error) {
	var out []models.SaleRecord
	if err := a.client.do(ctx, http.MethodGet, "/admin/sales", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *AdminAPI) ListReviews(ctx context.Context) ([]models.Review, error) {
	var out []models.Review
	if err := a.client.do(ctx, http.MethodGet, "/admin/reviews", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *AdminAPI) MarkReviewHelpful(ctx context.Context, id string) (*models.Review, error) {
	var out models.Review
	if err := a.client.do(ctx, http.MethodPost, "/admin/reviews/"+id+"/helpful", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AdminAPI) SetReviewStatus(ctx context.Context, id string, status models.ReviewStatus) (*models.Review, error) {
	var out models.Review
	body := map[string]models.ReviewStatus{"status": status}
	if err := a.client.do(ctx, http.MethodPatch, "/admin/reviews/"+id+"/status", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AdminAPI) DeleteReview(ctx context.Context, id string) error {
	return a.client.do(ctx, http.MethodDelete, "/admin/reviews/"+id, nil, nil)
}

func (a *AdminAPI) ListNewsletterSubscribers(ctx context.Context) ([]models.NewsletterSubscriber, error) {
	var out []models.NewsletterSubscriber
	if err := a.client.do(ctx, http.MethodGet, "/admin/newsletters", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *AdminAPI) UnsubscribeNewsletter(ctx context.Context, id string) error {
	return a.client.do(ctx, http.MethodPost, "/admin/newsletters/"+id+"/unsubscribe", nil, nil)
}

func (a *AdminAPI) ReactivateNewsletter(ctx context.Context, id string) error {
	return a.client.do(ctx, http.MethodPost, "/admin/newsletters/"+id+"/reactivate", nil, nil)
}

func (a *AdminAPI) GetNewsletterStats(ctx context.Context) (*NewsletterStats, error) {
	var out NewsletterStats
	if err := a.client.do(ctx, http.MethodGet, "/admin/newsletters/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
