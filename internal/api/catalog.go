package api

import (
	"context"
	"net/http"

	"thriftmarket/internal/models"
)

type CatalogAPI struct {
	client *Client
}

func NewCatalogAPI(client *Client) *CatalogAPI {
	return &CatalogAPI{client: client}
}

func (c *CatalogAPI) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := c.client.do(ctx, http.MethodGet, "/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *CatalogAPI) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := c.client.do(ctx, http.MethodGet, "/products/"+id, nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}
