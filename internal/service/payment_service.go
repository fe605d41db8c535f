package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"thriftmarket/internal/api"
	"thriftmarket/internal/models"
	"thriftmarket/internal/payment"
	"thriftmarket/internal/store"

	"github.com/google/uuid"
)

var ErrPaymentNotFound = errors.New("payment session not found")

// PaymentService owns the live mobile-money flows, keyed by payment session
// ID, and persists their records so a status probe survives a restart.
type PaymentService struct {
	logger      *log.Logger
	gateway     payment.Gateway
	orderAPI    *api.OrderAPI
	cartService *CartService
	redisStore  *store.RedisStore

	flowCfg    payment.Config
	sessionTTL time.Duration

	mu    sync.Mutex
	flows map[string]*payment.Flow
}

func NewPaymentService(logger *log.Logger, gateway payment.Gateway, orderAPI *api.OrderAPI, cartService *CartService, redisStore *store.RedisStore, flowCfg payment.Config, sessionTTL time.Duration) *PaymentService {
	return &PaymentService{
		logger:      logger,
		gateway:     gateway,
		orderAPI:    orderAPI,
		cartService: cartService,
		redisStore:  redisStore,
		flowCfg:     flowCfg,
		sessionTTL:  sessionTTL,
		flows:       make(map[string]*payment.Flow),
	}
}

// StartMobilePayment validates the draft the same way the card path does,
// then creates and starts a flow. The returned record is the initial state;
// callers follow up via Status, CheckNow, and Retry.
func (s *PaymentService) StartMobilePayment(ctx context.Context, session *models.Session, clientID string, draft models.OrderDraft) (models.PaymentSession, error) {
	if session == nil {
		if err := s.cartService.SaveSnapshot(ctx, clientID); err != nil {
			s.logger.Printf("Warning: failed to snapshot cart before login redirect: %v", err)
		}
		return models.PaymentSession{}, ErrLoginRequired
	}
	if len(draft.Lines) == 0 {
		return models.PaymentSession{}, ErrEmptyCart
	}

	cart := models.Cart{Lines: draft.Lines}
	now := time.Now()
	record := models.PaymentSession{
		ID:          uuid.NewString(),
		SessionID:   session.ID,
		OrderID:     uuid.NewString(),
		Amount:      cart.Subtotal(),
		PhoneNumber: draft.Phone,
		Operator:    draft.Operator,
		Status:      models.PaymentInitiating,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// The flow outlives the initiating request; its background work runs on a
	// detached context that still carries the caller's backend auth.
	baseCtx := api.WithAuth(context.Background(), session.ID, session.AuthToken)

	flow := payment.NewFlow(
		s.logger,
		s.gateway,
		s.orderCreator(clientID, draft),
		s.persistFunc(),
		s.flowCfg,
		baseCtx,
		record,
	)

	s.mu.Lock()
	s.flows[record.ID] = flow
	s.mu.Unlock()

	if err := flow.Start(ctx); err != nil {
		s.logger.Printf("Payment %s failed to start: %v", record.ID, err)
	}
	return flow.Record(), nil
}

// orderCreator builds the exactly-once order call the flow issues after the
// gateway confirms payment. A created order clears the cart.
func (s *PaymentService) orderCreator(clientID string, draft models.OrderDraft) payment.CreateOrder {
	return func(ctx context.Context, reference string) (*payment.Result, error) {
		req := api.CreateBulkRequest{
			Items:            draftItems(draft),
			PaymentMethod:    models.PaymentMobileMoney,
			ShippingAddress:  draft.ShippingAddress,
			PaymentReference: reference,
		}
		result, err := s.orderAPI.CreateBulk(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(result.Sales) == 0 {
			return &payment.Result{Errors: result.Errors}, nil
		}

		s.cartService.Clear(clientID)
		if err := s.cartService.DiscardSnapshot(ctx, clientID); err != nil {
			s.logger.Printf("Warning: failed to discard cart snapshot after payment: %v", err)
		}
		return &payment.Result{
			Sales:  result.Sales,
			Errors: result.Errors,
			Total:  salesTotal(result.Sales),
		}, nil
	}
}

func (s *PaymentService) persistFunc() payment.Persist {
	return func(ps models.PaymentSession) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.redisStore.SavePaymentSession(ctx, &ps, s.sessionTTL); err != nil {
			s.logger.Printf("Warning: failed to persist payment session %s: %v", ps.ID, err)
		}
	}
}

func (s *PaymentService) flow(id string) *payment.Flow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flows[id]
}

// Status reports the current record and, once the order exists, the
// confirmation. Falls back to the persisted record when no live flow exists.
func (s *PaymentService) Status(ctx context.Context, id string) (models.PaymentSession, *payment.Result, error) {
	if flow := s.flow(id); flow != nil {
		return flow.Record(), flow.Result(), nil
	}

	record, err := s.redisStore.GetPaymentSession(ctx, id)
	if err != nil {
		return models.PaymentSession{}, nil, err
	}
	if record == nil {
		return models.PaymentSession{}, nil, ErrPaymentNotFound
	}
	return *record, nil, nil
}

// CheckNow runs the status query on demand without resetting the countdown.
func (s *PaymentService) CheckNow(ctx context.Context, id string) (models.PaymentSession, error) {
	flow := s.flow(id)
	if flow == nil {
		return models.PaymentSession{}, ErrPaymentNotFound
	}
	return flow.CheckNow(ctx)
}

// Retry re-enters initiating from failed with a full countdown budget.
func (s *PaymentService) Retry(ctx context.Context, id string) (models.PaymentSession, error) {
	flow := s.flow(id)
	if flow == nil {
		return models.PaymentSession{}, ErrPaymentNotFound
	}
	if err := flow.Retry(ctx); err != nil {
		return flow.Record(), err
	}
	return flow.Record(), nil
}

// Teardown stops a flow without waiting for a terminal state, e.g. when the
// owning session logs out.
func (s *PaymentService) Teardown(id string) {
	s.mu.Lock()
	flow := s.flows[id]
	delete(s.flows, id)
	s.mu.Unlock()

	if flow != nil {
		flow.Stop()
	}
}

// TeardownSession stops every flow owned by a user session, e.g. when the
// session logs out or is invalidated by the backend.
func (s *PaymentService) TeardownSession(sessionID string) {
	if sessionID == "" {
		return
	}

	s.mu.Lock()
	var owned []*payment.Flow
	for id, flow := range s.flows {
		if flow.Record().SessionID == sessionID {
			owned = append(owned, flow)
			delete(s.flows, id)
		}
	}
	s.mu.Unlock()

	for _, flow := range owned {
		flow.Stop()
	}
}

// ReapStale drops long-finished flows from memory (deleting their persisted
// records) and expires persisted non-terminal records whose flow is gone, for
// instance after a restart. The in-memory sweep runs even when the store scan
// cannot.
func (s *PaymentService) ReapStale(ctx context.Context) error {
	s.mu.Lock()
	var finished []string
	for id, flow := range s.flows {
		status := flow.Record().Status
		if status == models.PaymentSuccessful || status == models.PaymentFailed {
			if time.Since(flow.Record().UpdatedAt) > s.sessionTTL {
				flow.Stop()
				delete(s.flows, id)
				finished = append(finished, id)
			}
		}
	}
	s.mu.Unlock()

	// A record this old has been terminal for a full TTL; nothing will ask
	// for it again, so drop it rather than waiting out the key expiry.
	for _, id := range finished {
		if err := s.redisStore.DeletePaymentSession(ctx, id); err != nil {
			s.logger.Printf("Warning: failed to drop finished payment session %s: %v", id, err)
		}
	}

	cutoff := time.Now().Add(-time.Duration(s.flowCfg.CountdownSeconds) * time.Second * 2)
	stale, err := s.redisStore.ListStalePaymentSessions(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, ps := range stale {
		if flow := s.flow(ps.ID); flow != nil {
			continue
		}
		ps.Status = models.PaymentFailed
		ps.Message = "payment session expired"
		ps.UpdatedAt = time.Now()
		if err := s.redisStore.SavePaymentSession(ctx, ps, s.sessionTTL); err != nil {
			s.logger.Printf("Warning: failed to expire payment session %s: %v", ps.ID, err)
			continue
		}
		s.logger.Printf("Expired stale payment session %s", ps.ID)
	}

	return nil
}
