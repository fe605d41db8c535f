package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"thriftmarket/internal/models"
	"thriftmarket/internal/store"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrLineNotFound    = errors.New("product is not in the cart")
)

// CartService holds one cart per client. Mutations are serialized under a
// single lock, matching the one-writer-at-a-time rule the cart requires.
type CartService struct {
	logger      *log.Logger
	redisStore  *store.RedisStore
	snapshotTTL time.Duration

	mu    sync.Mutex
	carts map[string]*models.Cart
}

func NewCartService(logger *log.Logger, redisStore *store.RedisStore, snapshotTTL time.Duration) *CartService {
	return &CartService{
		logger:      logger,
		redisStore:  redisStore,
		snapshotTTL: snapshotTTL,
		carts:       make(map[string]*models.Cart),
	}
}

func (s *CartService) cart(clientID string) *models.Cart {
	c, ok := s.carts[clientID]
	if !ok {
		c = &models.Cart{}
		s.carts[clientID] = c
	}
	return c
}

// AddToCart merges into an existing line for the same product rather than
// duplicating it; the cart never holds two lines for one product ID.
func (s *CartService) AddToCart(clientID string, product models.Product, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.cart(clientID)
	for i := range cart.Lines {
		if cart.Lines[i].ProductID == product.ID {
			cart.Lines[i].Quantity += quantity
			return nil
		}
	}

	cart.Lines = append(cart.Lines, models.CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  quantity,
		Image:     product.Image,
		Category:  product.Category,
	})
	return nil
}

// UpdateQuantity applies a signed delta with a floor of 1. Driving the
// quantity to zero is not possible here; removal is its own operation.
func (s *CartService) UpdateQuantity(clientID, productID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.cart(clientID)
	for i := range cart.Lines {
		if cart.Lines[i].ProductID == productID {
			next := cart.Lines[i].Quantity + delta
			if next < 1 {
				next = 1
			}
			cart.Lines[i].Quantity = next
			return nil
		}
	}
	return ErrLineNotFound
}

func (s *CartService) RemoveItem(clientID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.cart(clientID)
	for i := range cart.Lines {
		if cart.Lines[i].ProductID == productID {
			cart.Lines = append(cart.Lines[:i], cart.Lines[i+1:]...)
			return nil
		}
	}
	return ErrLineNotFound
}

func (s *CartService) Clear(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart(clientID).Lines = nil
}

// Get returns a copy; callers never see later mutations.
func (s *CartService) Get(clientID string) models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.cart(clientID)
	lines := make([]models.CartLine, len(cart.Lines))
	copy(lines, cart.Lines)
	return models.Cart{Lines: lines}
}

func (s *CartService) Count(clientID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart(clientID).Count()
}

func (s *CartService) Subtotal(clientID string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart(clientID).Subtotal()
}

// Adopt moves an anonymous client's cart onto a freshly established session,
// merging line quantities by product on collision.
func (s *CartService) Adopt(fromClientID, toClientID string) {
	if fromClientID == "" || fromClientID == toClientID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	from, ok := s.carts[fromClientID]
	if !ok || len(from.Lines) == 0 {
		return
	}
	mergeLines(s.cart(toClientID), from.Lines)
	delete(s.carts, fromClientID)
}

// mergeLines folds src into dst, adding quantities on product collision.
func mergeLines(dst *models.Cart, src []models.CartLine) {
	for _, line := range src {
		merged := false
		for i := range dst.Lines {
			if dst.Lines[i].ProductID == line.ProductID {
				dst.Lines[i].Quantity += line.Quantity
				merged = true
				break
			}
		}
		if !merged {
			dst.Lines = append(dst.Lines, line)
		}
	}
}

// SaveSnapshot persists the cart before a forced login redirect.
func (s *CartService) SaveSnapshot(ctx context.Context, clientID string) error {
	cart := s.Get(clientID)
	if len(cart.Lines) == 0 {
		return nil
	}
	if err := s.redisStore.SavePendingCart(ctx, clientID, &cart, s.snapshotTTL); err != nil {
		return fmt.Errorf("failed to snapshot cart: %w", err)
	}
	return nil
}

// RestoreSnapshot merges a pending cart saved before a login redirect into
// the live cart and clears the snapshot. Merging keeps anything the client
// added after the snapshot was taken. A missing snapshot is not an error.
func (s *CartService) RestoreSnapshot(ctx context.Context, clientID string) error {
	snapshot, err := s.redisStore.GetPendingCart(ctx, clientID)
	if err != nil {
		return fmt.Errorf("failed to load cart snapshot: %w", err)
	}
	if snapshot == nil {
		return nil
	}

	s.mu.Lock()
	cart := s.cart(clientID)
	mergeLines(cart, snapshot.Lines)
	s.mu.Unlock()

	if err := s.redisStore.DeletePendingCart(ctx, clientID); err != nil {
		s.logger.Printf("Warning: failed to clear cart snapshot for %s: %v", clientID, err)
	}
	return nil
}

// DiscardSnapshot drops a pending cart once checkout has completed.
func (s *CartService) DiscardSnapshot(ctx context.Context, clientID string) error {
	return s.redisStore.DeletePendingCart(ctx, clientID)
}
