package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"thriftmarket/internal/api"
	"thriftmarket/internal/config"
	"thriftmarket/internal/listing"
	"thriftmarket/internal/models"

	"github.com/google/uuid"
)

var (
	ErrConfirmRequired = errors.New("delete requires explicit confirmation")
	ErrRecordNotFound  = errors.New("record not found")
)

// AdminService backs the admin and seller list surfaces. Every view fetches
// its full collection and filters, sorts, and paginates it here. Products,
// users, sales, reviews, and newsletters are live backend views saved via
// API call; stock and supply have no backend and are merged optimistically
// in memory.
type AdminService struct {
	logger   *log.Logger
	adminAPI *api.AdminAPI
	pages    config.PageSizes

	mu     sync.Mutex
	stock  []models.StockRecord
	supply []models.SupplyRecord
}

func NewAdminService(logger *log.Logger, adminAPI *api.AdminAPI, pages config.PageSizes) *AdminService {
	return &AdminService{
		logger:   logger,
		adminAPI: adminAPI,
		pages:    pages,
	}
}

// ---- products ----

func (s *AdminService) ListProducts(ctx context.Context, q listing.Query) (listing.Page[models.Product], error) {
	products, err := s.adminAPI.ListProducts(ctx)
	if err != nil {
		return listing.Page[models.Product]{}, err
	}
	if q.PageSize == 0 {
		q.PageSize = s.pages.Products
	}
	return listing.Apply(products, q,
		func(p models.Product) []string { return []string{p.Name, p.Category} },
		func(p models.Product, key, value string) bool {
			switch key {
			case "category":
				return p.Category == value
			case "in_stock":
				return (p.Stock > 0) == (value == "true")
			default:
				return true
			}
		},
		productLess,
	), nil
}

func productLess(a, b models.Product, sortBy string) bool {
	switch sortBy {
	case "price":
		return a.Price.LessThan(b.Price)
	case "stock":
		return a.Stock < b.Stock
	default:
		return a.Name < b.Name
	}
}

func (s *AdminService) SaveProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	if p.ID == "" {
		return s.adminAPI.CreateProduct(ctx, p)
	}
	return s.adminAPI.UpdateProduct(ctx, p)
}

func (s *AdminService) DeleteProduct(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmRequired
	}
	return s.adminAPI.DeleteProduct(ctx, id)
}

func (s *AdminService) ProductStats(ctx context.Context) (*api.ProductStats, error) {
	return s.adminAPI.GetProductStats(ctx)
}

// ---- users ----

func (s *AdminService) ListUsers(ctx context.Context, q listing.Query) (listing.Page[models.User], error) {
	users, err := s.adminAPI.ListUsers(ctx)
	if err != nil {
		return listing.Page[models.User]{}, err
	}
	if q.PageSize == 0 {
		q.PageSize = s.pages.Users
	}
	return listing.Apply(users, q,
		func(u models.User) []string { return []string{u.Name, u.Email} },
		func(u models.User, key, value string) bool {
			switch key {
			case "role":
				return string(u.Role) == value
			case "blocked":
				return u.Blocked == (value == "true")
			default:
				return true
			}
		},
		func(a, b models.User, sortBy string) bool {
			if sortBy == "created_at" {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.Name < b.Name
		},
	), nil
}

func (s *AdminService) SaveUser(ctx context.Context, u *models.User) (*models.User, error) {
	if u.ID == "" {
		return nil, fmt.Errorf("users are created through signup, not the admin console")
	}
	return s.adminAPI.UpdateUser(ctx, u)
}

func (s *AdminService) DeleteUser(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmRequired
	}
	return s.adminAPI.DeleteUser(ctx, id)
}

func (s *AdminService) UserStats(ctx context.Context) (*api.UserStats, error) {
	return s.adminAPI.GetUserStats(ctx)
}

// ---- sales ----

func (s *AdminService) ListSales(ctx context.Context, q listing.Query) (listing.Page[models.SaleRecord], error) {
	sales, err := s.adminAPI.ListSales(ctx)
	if err != nil {
		return listing.Page[models.SaleRecord]{}, err
	}
	if q.PageSize == 0 {
		q.PageSize = s.pages.Sales
	}
	return listing.Apply(sales, q,
		func(sr models.SaleRecord) []string { return []string{sr.ProductName, sr.BuyerID} },
		func(sr models.SaleRecord, key, value string) bool {
			if key == "product" {
				return sr.ProductID == value
			}
			return true
		},
		func(a, b models.SaleRecord, sortBy string) bool {
			if sortBy == "total" {
				return a.Total.LessThan(b.Total)
			}
			return a.SoldAt.Before(b.SoldAt)
		},
	), nil
}

// ---- reviews ----

func (s *AdminService) ListReviews(ctx context.Context, q listing.Query) (listing.Page[models.Review], error) {
	reviews, err := s.adminAPI.ListReviews(ctx)
	if err != nil {
		return listing.Page[models.Review]{}, err
	}
	if q.PageSize == 0 {
		q.PageSize = s.pages.Reviews
	}
	return listing.Apply(reviews, q,
		func(r models.Review) []string { return []string{r.AuthorName, r.Body} },
		func(r models.Review, key, value string) bool {
			switch key {
			case "status":
				return string(r.Status) == value
			case "rating":
				rating, err := strconv.Atoi(value)
				return err == nil && r.Rating == rating
			default:
				return true
			}
		},
		func(a, b models.Review, sortBy string) bool {
			switch sortBy {
			case "helpful":
				return a.HelpfulCount < b.HelpfulCount
			case "rating":
				return a.Rating < b.Rating
			default:
				return a.CreatedAt.Before(b.CreatedAt)
			}
		},
	), nil
}

func (s *AdminService) MarkReviewHelpful(ctx context.Context, id string) (*models.Review, error) {
	return s.adminAPI.MarkReviewHelpful(ctx, id)
}

func (s *AdminService) SetReviewStatus(ctx context.Context, id string, status models.ReviewStatus) (*models.Review, error) {
	return s.adminAPI.SetReviewStatus(ctx, id, status)
}

func (s *AdminService) DeleteReview(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmRequired
	}
	return s.adminAPI.DeleteReview(ctx, id)
}

// ---- newsletters ----

func (s *AdminService) ListNewsletterSubscribers(ctx context.Context, q listing.Query) (listing.Page[models.NewsletterSubscriber], error) {
	subs, err := s.adminAPI.ListNewsletterSubscribers(ctx)
	if err != nil {
		return listing.Page[models.NewsletterSubscriber]{}, err
	}
	if q.PageSize == 0 {
		q.PageSize = s.pages.Newsletters
	}
	return listing.Apply(subs, q,
		func(n models.NewsletterSubscriber) []string { return []string{n.Email} },
		func(n models.NewsletterSubscriber, key, value string) bool {
			if key == "active" {
				return n.Active == (value == "true")
			}
			return true
		},
		func(a, b models.NewsletterSubscriber, sortBy string) bool {
			return a.SubscribedAt.Before(b.SubscribedAt)
		},
	), nil
}

func (s *AdminService) UnsubscribeNewsletter(ctx context.Context, id string) error {
	return s.adminAPI.UnsubscribeNewsletter(ctx, id)
}

func (s *AdminService) ReactivateNewsletter(ctx context.Context, id string) error {
	return s.adminAPI.ReactivateNewsletter(ctx, id)
}

func (s *AdminService) NewsletterStats(ctx context.Context) (*api.NewsletterStats, error) {
	return s.adminAPI.GetNewsletterStats(ctx)
}

// ---- stock (optimistic, no live backend) ----

func (s *AdminService) ListStock(q listing.Query) listing.Page[models.StockRecord] {
	s.mu.Lock()
	records := make([]models.StockRecord, len(s.stock))
	copy(records, s.stock)
	s.mu.Unlock()

	if q.PageSize == 0 {
		q.PageSize = s.pages.Stock
	}
	return listing.Apply(records, q,
		func(r models.StockRecord) []string { return []string{r.Name, r.Category, r.Location} },
		func(r models.StockRecord, key, value string) bool {
			if key == "category" {
				return r.Category == value
			}
			return true
		},
		func(a, b models.StockRecord, sortBy string) bool {
			if sortBy == "quantity" {
				return a.Quantity < b.Quantity
			}
			return a.Name < b.Name
		},
	)
}

func (s *AdminService) SaveStock(record *models.StockRecord) *models.StockRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.UpdatedAt = time.Now()
	if record.ID == "" {
		record.ID = uuid.NewString()
		s.stock = append(s.stock, *record)
		return record
	}
	for i := range s.stock {
		if s.stock[i].ID == record.ID {
			s.stock[i] = *record
			return record
		}
	}
	s.stock = append(s.stock, *record)
	return record
}

func (s *AdminService) DeleteStock(id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.stock {
		if s.stock[i].ID == id {
			s.stock = append(s.stock[:i], s.stock[i+1:]...)
			return nil
		}
	}
	return ErrRecordNotFound
}

// ---- supply (optimistic, no live backend) ----

func (s *AdminService) ListSupply(q listing.Query) listing.Page[models.SupplyRecord] {
	s.mu.Lock()
	records := make([]models.SupplyRecord, len(s.supply))
	copy(records, s.supply)
	s.mu.Unlock()

	if q.PageSize == 0 {
		q.PageSize = s.pages.Supply
	}
	return listing.Apply(records, q,
		func(r models.SupplyRecord) []string { return []string{r.Supplier, r.Category} },
		func(r models.SupplyRecord, key, value string) bool {
			if key == "category" {
				return r.Category == value
			}
			return true
		},
		func(a, b models.SupplyRecord, sortBy string) bool {
			if sortBy == "quantity" {
				return a.Quantity < b.Quantity
			}
			return a.ReceivedAt.Before(b.ReceivedAt)
		},
	)
}

func (s *AdminService) SaveSupply(record *models.SupplyRecord) *models.SupplyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
		if record.ReceivedAt.IsZero() {
			record.ReceivedAt = time.Now()
		}
		s.supply = append(s.supply, *record)
		return record
	}
	for i := range s.supply {
		if s.supply[i].ID == record.ID {
			s.supply[i] = *record
			return record
		}
	}
	s.supply = append(s.supply, *record)
	return record
}

func (s *AdminService) DeleteSupply(id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.supply {
		if s.supply[i].ID == id {
			s.supply = append(s.supply[:i], s.supply[i+1:]...)
			return nil
		}
	}
	return ErrRecordNotFound
}
