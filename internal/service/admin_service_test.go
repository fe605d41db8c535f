package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"thriftmarket/internal/api"
	"thriftmarket/internal/config"
	"thriftmarket/internal/listing"
	"thriftmarket/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPageSizes() config.PageSizes {
	return config.PageSizes{
		Products:    9,
		Users:       10,
		Stock:       8,
		Supply:      8,
		Sales:       15,
		Reviews:     6,
		Newsletters: 10,
	}
}

func adminBackend(t *testing.T, handlerFn http.HandlerFunc) *AdminService {
	t.Helper()
	server := httptest.NewServer(handlerFn)
	t.Cleanup(server.Close)
	adminAPI := api.NewAdminAPI(api.NewClient(server.URL, 5*time.Second, testLogger()))
	return NewAdminService(testLogger(), adminAPI, testPageSizes())
}

func inMemoryAdmin() *AdminService {
	return NewAdminService(testLogger(), nil, testPageSizes())
}

func TestListUsersFiltersAndDefaultPageSize(t *testing.T) {
	users := make([]models.User, 0, 25)
	for i := 0; i < 25; i++ {
		role := models.RoleBuyer
		if i%5 == 0 {
			role = models.RoleSeller
		}
		users = append(users, models.User{
			ID:      string(rune('a' + i)),
			Name:    "User",
			Email:   "user@shop.test",
			Role:    role,
			Blocked: i%2 == 0,
		})
	}
	svc := adminBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/users", r.URL.Path)
		json.NewEncoder(w).Encode(users)
	})

	page, err := svc.ListUsers(context.Background(), listing.Query{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 25, page.TotalItems)
	assert.Len(t, page.Items, 10)
	assert.Equal(t, 3, page.TotalPages)

	page, err = svc.ListUsers(context.Background(), listing.Query{
		Page:    1,
		Filters: map[string]string{"role": "seller"},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalItems)
	for _, u := range page.Items {
		assert.Equal(t, models.RoleSeller, u.Role)
	}
}

func TestListProductsBackendFailure(t *testing.T) {
	svc := adminBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"catalog down"}`, http.StatusInternalServerError)
	})

	_, err := svc.ListProducts(context.Background(), listing.Query{Page: 1})
	assert.ErrorIs(t, err, api.ErrBackend)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	backendHit := false
	svc := adminBackend(t, func(w http.ResponseWriter, r *http.Request) {
		backendHit = true
		w.WriteHeader(http.StatusNoContent)
	})

	err := svc.DeleteProduct(context.Background(), "p1", false)
	assert.ErrorIs(t, err, ErrConfirmRequired)
	assert.False(t, backendHit, "unconfirmed delete must not reach the backend")

	require.NoError(t, svc.DeleteProduct(context.Background(), "p1", true))
	assert.True(t, backendHit)
}

func TestSaveUserWithoutIDRejected(t *testing.T) {
	svc := inMemoryAdmin()

	_, err := svc.SaveUser(context.Background(), &models.User{Name: "New"})
	assert.Error(t, err)
}

func TestStockCreateUpdateDelete(t *testing.T) {
	svc := inMemoryAdmin()

	created := svc.SaveStock(&models.StockRecord{Name: "Denim Jacket", Category: "jackets", Quantity: 4, Location: "shelf A"})
	require.NotEmpty(t, created.ID)
	assert.False(t, created.UpdatedAt.IsZero())

	created.Quantity = 2
	updated := svc.SaveStock(created)
	assert.Equal(t, created.ID, updated.ID)

	page := svc.ListStock(listing.Query{Page: 1})
	require.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.Items[0].Quantity)

	assert.ErrorIs(t, svc.DeleteStock(created.ID, false), ErrConfirmRequired)
	require.NoError(t, svc.DeleteStock(created.ID, true))
	assert.ErrorIs(t, svc.DeleteStock(created.ID, true), ErrRecordNotFound)
	assert.Empty(t, svc.ListStock(listing.Query{Page: 1}).Items)
}

func TestStockFilterByCategory(t *testing.T) {
	svc := inMemoryAdmin()
	svc.SaveStock(&models.StockRecord{Name: "Denim Jacket", Category: "jackets", Quantity: 4})
	svc.SaveStock(&models.StockRecord{Name: "Silk Scarf", Category: "accessories", Quantity: 9})
	svc.SaveStock(&models.StockRecord{Name: "Leather Jacket", Category: "jackets", Quantity: 1})

	page := svc.ListStock(listing.Query{
		Page:    1,
		Filters: map[string]string{"category": "jackets"},
	})
	assert.Equal(t, 2, page.TotalItems)

	page = svc.ListStock(listing.Query{Page: 1, SortBy: "quantity"})
	require.Len(t, page.Items, 3)
	assert.Equal(t, "Leather Jacket", page.Items[0].Name)
}

func TestSupplyDefaultsReceivedAt(t *testing.T) {
	svc := inMemoryAdmin()

	record := svc.SaveSupply(&models.SupplyRecord{Supplier: "Kantamanto Traders", Category: "shirts", Quantity: 40})
	require.NotEmpty(t, record.ID)
	assert.False(t, record.ReceivedAt.IsZero())

	page := svc.ListSupply(listing.Query{Page: 1, Search: "kantamanto"})
	assert.Equal(t, 1, page.TotalItems)

	require.NoError(t, svc.DeleteSupply(record.ID, true))
	assert.ErrorIs(t, svc.DeleteSupply(record.ID, true), ErrRecordNotFound)
}
