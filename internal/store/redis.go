package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"thriftmarket/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	Client *redis.Client
}

func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{Client: client}
}

func (s *RedisStore) Close() error {
	if s.Client != nil {
		return s.Client.Close()
	}
	return nil
}

func (s *RedisStore) SaveSession(ctx context.Context, session *models.Session, ttl time.Duration) error {
	key := fmt.Sprintf("session:%s", session.ID)

	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.Client.Set(ctx, key, sessionJSON, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	key := fmt.Sprintf("session:%s", sessionID)
	val, err := s.Client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session from redis: %w", err)
	}
	return &session, nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, sessionID string) error {
	key := fmt.Sprintf("session:%s", sessionID)
	if err := s.Client.Del(ctx, key).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}

// SavePendingCart snapshots a cart before a forced login redirect so checkout
// can resume after authentication.
func (s *RedisStore) SavePendingCart(ctx context.Context, sessionID string, cart *models.Cart, ttl time.Duration) error {
	key := fmt.Sprintf("pending_cart:%s", sessionID)

	cartJSON, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to marshal pending cart: %w", err)
	}

	if err := s.Client.Set(ctx, key, cartJSON, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set pending cart in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) GetPendingCart(ctx context.Context, sessionID string) (*models.Cart, error) {
	key := fmt.Sprintf("pending_cart:%s", sessionID)
	val, err := s.Client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending cart from redis: %w", err)
	}

	var cart models.Cart
	if err := json.Unmarshal([]byte(val), &cart); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending cart from redis: %w", err)
	}
	return &cart, nil
}

func (s *RedisStore) DeletePendingCart(ctx context.Context, sessionID string) error {
	key := fmt.Sprintf("pending_cart:%s", sessionID)
	if err := s.Client.Del(ctx, key).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to delete pending cart from redis: %w", err)
	}
	return nil
}

// SavePaymentSession persists the payment session record on every transition;
// only the record survives a restart, the timers do not.
func (s *RedisStore) SavePaymentSession(ctx context.Context, ps *models.PaymentSession, ttl time.Duration) error {
	key := fmt.Sprintf("payment_session:%s", ps.ID)

	psJSON, err := json.Marshal(ps)
	if err != nil {
		return fmt.Errorf("failed to marshal payment session: %w", err)
	}

	if err := s.Client.Set(ctx, key, psJSON, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set payment session in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) GetPaymentSession(ctx context.Context, id string) (*models.PaymentSession, error) {
	key := fmt.Sprintf("payment_session:%s", id)
	val, err := s.Client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment session from redis: %w", err)
	}

	var ps models.PaymentSession
	if err := json.Unmarshal([]byte(val), &ps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment session from redis: %w", err)
	}
	return &ps, nil
}

func (s *RedisStore) DeletePaymentSession(ctx context.Context, id string) error {
	key := fmt.Sprintf("payment_session:%s", id)
	if err := s.Client.Del(ctx, key).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to delete payment session from redis: %w", err)
	}
	return nil
}

// ListStalePaymentSessions returns non-terminal payment sessions older than
// the cutoff, for the background reaper.
func (s *RedisStore) ListStalePaymentSessions(ctx context.Context, cutoff time.Time) ([]*models.PaymentSession, error) {
	var stale []*models.PaymentSession

	iter := s.Client.Scan(ctx, 0, "payment_session:*", 100).Iterator()
	for iter.Next(ctx) {
		val, err := s.Client.Get(ctx, iter.Val()).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, fmt.Errorf("failed to read payment session during scan: %w", err)
		}

		var ps models.PaymentSession
		if err := json.Unmarshal([]byte(val), &ps); err != nil {
			continue
		}
		if ps.Status == models.PaymentSuccessful || ps.Status == models.PaymentFailed {
			continue
		}
		if ps.UpdatedAt.Before(cutoff) {
			stale = append(stale, &ps)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan payment sessions: %w", err)
	}

	return stale, nil
}
