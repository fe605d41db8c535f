package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"thriftmarket/internal/api"
	"thriftmarket/internal/models"
	"thriftmarket/internal/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedGateway struct {
	mu     sync.Mutex
	accept bool
	status string
	got    api.InitiatePaymentRequest
}

func (g *scriptedGateway) InitiateMobilePayment(ctx context.Context, req api.InitiatePaymentRequest) (*api.InitiatePaymentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.got = req
	return &api.InitiatePaymentResponse{Success: g.accept, Reference: "MOMO-REF-77", USSDCode: "*126*1#"}, nil
}

func (g *scriptedGateway) CheckPaymentStatus(ctx context.Context, reference string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status, nil
}

func TestMobileMoneyScenario(t *testing.T) {
	var (
		mu         sync.Mutex
		orderCalls int
		gotOrder   api.CreateBulkRequest
	)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sales/bulk", r.URL.Path)
		mu.Lock()
		orderCalls++
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotOrder))
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.SaleResult{
			Sales: []models.SaleRecord{{ID: "s1", ProductID: "p1", Quantity: 2, Total: decimal.NewFromInt(15000)}},
		})
	}))
	defer backend.Close()

	logger := testLogger()
	carts := NewCartService(logger, deadRedis(), 0)
	orderAPI := api.NewOrderAPI(api.NewClient(backend.URL, 5*time.Second, logger))
	gateway := &scriptedGateway{accept: true, status: api.GatewaySuccessful}

	flowCfg := payment.Config{CountdownSeconds: 300, TickInterval: time.Hour, PollInterval: 2 * time.Millisecond}
	payments := NewPaymentService(logger, gateway, orderAPI, carts, deadRedis(), flowCfg, time.Hour)

	require.NoError(t, carts.AddToCart("sess-1", product("p1", "Vintage Boubou", 7500), 2))
	draft := models.OrderDraft{
		Lines:           carts.Get("sess-1").Lines,
		ShippingAddress: "12 Market Street, Douala",
		PaymentMethod:   models.PaymentMobileMoney,
		Phone:           "677000111",
		Operator:        "mtn",
	}

	record, err := payments.StartMobilePayment(context.Background(), testSession(), "sess-1", draft)
	require.NoError(t, err)
	defer payments.Teardown(record.ID)

	assert.Equal(t, "15000", record.Amount.String())
	assert.Equal(t, "mtn", record.Operator)
	assert.Equal(t, 300, record.CountdownSeconds)
	assert.Equal(t, models.PaymentPending, record.Status)
	assert.Equal(t, "MOMO-REF-77", record.Reference)

	gateway.mu.Lock()
	assert.Equal(t, "677000111", gateway.got.PhoneNumber)
	assert.Equal(t, "mtn", gateway.got.Operator)
	assert.Equal(t, "15000", gateway.got.Amount.String())
	gateway.mu.Unlock()

	assert.Eventually(t, func() bool {
		current, _, err := payments.Status(context.Background(), record.ID)
		return err == nil && current.Status == models.PaymentSuccessful
	}, time.Second, time.Millisecond)

	// The order call runs after the successful transition; wait for it to
	// land rather than assuming how long the handoff takes.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return orderCalls == 1
	}, time.Second, time.Millisecond)

	// Extra poll ticks may fire before teardown; still exactly one order call.
	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, orderCalls)
	assert.Equal(t, models.PaymentMobileMoney, gotOrder.PaymentMethod)
	assert.Equal(t, "MOMO-REF-77", gotOrder.PaymentReference)
	assert.Equal(t, "12 Market Street, Douala", gotOrder.ShippingAddress)
	mu.Unlock()

	assert.Eventually(t, func() bool {
		_, result, err := payments.Status(context.Background(), record.ID)
		return err == nil && result != nil
	}, time.Second, time.Millisecond)

	assert.Empty(t, carts.Get("sess-1").Lines, "cart clears once the order exists")

	_, result, err := payments.Status(context.Background(), record.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "15000", result.Total.String())
}

func TestStartMobilePaymentGuards(t *testing.T) {
	logger := testLogger()
	carts := NewCartService(logger, deadRedis(), 0)
	gateway := &scriptedGateway{accept: true, status: api.GatewayPending}
	payments := NewPaymentService(logger, gateway, nil, carts, deadRedis(), payment.Config{CountdownSeconds: 300}, time.Hour)

	_, err := payments.StartMobilePayment(context.Background(), nil, "anon-1", models.OrderDraft{
		Lines: []models.CartLine{{ProductID: "p1", Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrLoginRequired)

	_, err = payments.StartMobilePayment(context.Background(), testSession(), "sess-1", models.OrderDraft{})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestTeardownSessionStopsOwnedFlows(t *testing.T) {
	logger := testLogger()
	carts := NewCartService(logger, deadRedis(), 0)
	gateway := &scriptedGateway{accept: true, status: api.GatewayPending}
	payments := NewPaymentService(logger, gateway, nil, carts, deadRedis(), payment.Config{CountdownSeconds: 300, TickInterval: time.Hour, PollInterval: time.Hour}, time.Hour)

	require.NoError(t, carts.AddToCart("sess-1", product("p1", "Vintage Boubou", 7500), 1))
	record, err := payments.StartMobilePayment(context.Background(), testSession(), "sess-1", models.OrderDraft{
		Lines: carts.Get("sess-1").Lines,
		Phone: "677000111",
	})
	require.NoError(t, err)
	assert.Equal(t, "sess-1", record.SessionID)

	_, err = payments.CheckNow(context.Background(), record.ID)
	require.NoError(t, err)

	payments.TeardownSession("sess-1")

	_, err = payments.CheckNow(context.Background(), record.ID)
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestReapStaleDropsFinishedFlows(t *testing.T) {
	logger := testLogger()
	carts := NewCartService(logger, deadRedis(), 0)
	gateway := &scriptedGateway{accept: false}
	payments := NewPaymentService(logger, gateway, nil, carts, deadRedis(), payment.Config{CountdownSeconds: 300}, time.Nanosecond)

	record, err := payments.StartMobilePayment(context.Background(), testSession(), "sess-1", models.OrderDraft{
		Lines: []models.CartLine{{ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(500)}},
		Phone: "677000111",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, record.Status)

	// The scan against the unreachable store fails, but the in-memory sweep
	// still retires the finished flow.
	assert.Error(t, payments.ReapStale(context.Background()))

	_, err = payments.CheckNow(context.Background(), record.ID)
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestPaymentRetryAndCheckRequireKnownSession(t *testing.T) {
	logger := testLogger()
	payments := NewPaymentService(logger, &scriptedGateway{}, nil, NewCartService(logger, deadRedis(), 0), deadRedis(), payment.Config{CountdownSeconds: 300}, time.Hour)

	_, err := payments.CheckNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	_, err = payments.Retry(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}
