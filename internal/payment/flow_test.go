package payment

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"thriftmarket/internal/api"
	"thriftmarket/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu       sync.Mutex
	accept   bool
	status   string
	initErr  error
	pollErr  error
	poll     int
	initiate int
}

func (g *fakeGateway) InitiateMobilePayment(ctx context.Context, req api.InitiatePaymentRequest) (*api.InitiatePaymentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initiate++
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &api.InitiatePaymentResponse{
		Success:   g.accept,
		Reference: "REF-123",
		USSDCode:  "*126#",
		Message:   "declined by operator",
	}, nil
}

func (g *fakeGateway) CheckPaymentStatus(ctx context.Context, reference string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.poll++
	if g.pollErr != nil {
		return "", g.pollErr
	}
	return g.status, nil
}

func (g *fakeGateway) polls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.poll
}

func (g *fakeGateway) setStatus(status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = status
}

type orderCounter struct {
	mu     sync.Mutex
	calls  int
	refs   []string
	result *Result
	err    error
}

func (o *orderCounter) create(ctx context.Context, reference string) (*Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	o.refs = append(o.refs, reference)
	return o.result, o.err
}

func (o *orderCounter) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

func confirmedOrder() *Result {
	return &Result{
		Sales: []models.SaleRecord{{ID: "s1", ProductID: "p1", Quantity: 2, Total: decimal.NewFromInt(90)}},
		Total: decimal.NewFromInt(90),
	}
}

func flowRecord() models.PaymentSession {
	return models.PaymentSession{
		ID:          "pay-1",
		OrderID:     "ord-1",
		Amount:      decimal.NewFromInt(15000),
		PhoneNumber: "677000111",
		Operator:    "mtn",
	}
}

func newTestFlow(gw *fakeGateway, orders *orderCounter, cfg Config) *Flow {
	logger := log.New(io.Discard, "", 0)
	return NewFlow(logger, gw, orders.create, nil, cfg, context.Background(), flowRecord())
}

func TestFlowSuccessCreatesOrderExactlyOnce(t *testing.T) {
	gw := &fakeGateway{accept: true, status: api.GatewaySuccessful}
	orders := &orderCounter{result: confirmedOrder()}
	flow := newTestFlow(gw, orders, Config{CountdownSeconds: 300, TickInterval: time.Hour, PollInterval: 2 * time.Millisecond})
	defer flow.Stop()

	require.NoError(t, flow.Start(context.Background()))
	assert.Equal(t, models.PaymentPending, flow.Record().Status)
	assert.Equal(t, "REF-123", flow.Record().Reference)
	assert.Equal(t, "*126#", flow.Record().USSDCode)

	assert.Eventually(t, func() bool {
		return flow.Record().Status == models.PaymentSuccessful
	}, time.Second, time.Millisecond)

	// Let any stray poll ticks fire; none may trigger a second order call.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, orders.count())
	assert.Equal(t, []string{"REF-123"}, orders.refs)

	result := flow.Result()
	require.NotNil(t, result)
	assert.Len(t, result.Sales, 1)
	assert.Equal(t, "90", result.Total.String())
}

func TestFlowCountdownTimeoutStopsPolling(t *testing.T) {
	gw := &fakeGateway{accept: true, status: api.GatewayPending}
	orders := &orderCounter{result: confirmedOrder()}
	flow := newTestFlow(gw, orders, Config{CountdownSeconds: 4, TickInterval: 2 * time.Millisecond, PollInterval: time.Millisecond})
	defer flow.Stop()

	require.NoError(t, flow.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return flow.Record().Status == models.PaymentFailed
	}, time.Second, time.Millisecond)
	assert.Equal(t, 0, flow.Record().CountdownSeconds)
	assert.Contains(t, flow.Record().Message, "timed out")

	// No poll requests after the timeout.
	time.Sleep(5 * time.Millisecond)
	settled := gw.polls()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, settled, gw.polls())
	assert.Equal(t, 0, orders.count())
}

func TestFlowGatewayRejectFailsImmediately(t *testing.T) {
	gw := &fakeGateway{accept: false}
	orders := &orderCounter{result: confirmedOrder()}
	flow := newTestFlow(gw, orders, Config{CountdownSeconds: 300})

	err := flow.Start(context.Background())
	assert.ErrorIs(t, err, ErrGatewayRejected)
	assert.Equal(t, models.PaymentFailed, flow.Record().Status)
	assert.Equal(t, "declined by operator", flow.Record().Message)
	assert.Equal(t, 0, orders.count())
}

func TestFlowDeclinedPollFails(t *testing.T) {
	gw := &fakeGateway{accept: true, status: api.GatewayFailed}
	orders := &orderCounter{result: confirmedOrder()}
	flow := newTestFlow(gw, orders, Config{CountdownSeconds: 300, TickInterval: time.Hour, PollInterval: 2 * time.Millisecond})
	defer flow.Stop()

	require.NoError(t, flow.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return flow.Record().Status == models.PaymentFailed
	}, time.Second, time.Millisecond)
	assert.Contains(t, flow.Record().Message, "declined")
	assert.Equal(t, 0, orders.count())
}

func TestFlowReconciliationGapSurfacesReference(t *testing.T) {
	gw := &fakeGateway{accept: true, status: api.GatewaySuccessful}
	orders := &orderCounter{result: &Result{}}
	flow := newTestFlow(gw, orders, Config{CountdownSeconds: 300, TickInterval: time.Hour, PollInterval: 2 * time.Millisecond})
	defer flow.Stop()

	require.NoError(t, flow.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return flow.Record().Status == models.PaymentFailed
	}, time.Second, time.Millisecond)
	assert.Contains(t, flow.Record().Message, "contact support")
	assert.Contains(t, flow.Record().Message, "REF-123")
	assert.Equal(t, 1, orders.count())
	assert.Nil(t, flow.Result())
}

func TestFlowOrderCreationErrorIsReconciliationFailure(t *testing.T) {
	gw := &fakeGateway{accept: true, status: api.GatewaySuccessful}
	orders := &orderCounter{err: errors.New("backend down")}
	flow := newTestFlow(gw, orders, Config{CountdownSeconds: 300, TickInterval: time.Hour, PollInterval: 2 * time.Millisecond})
	defer flow.Stop()

	require.NoError(t, flow.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return flow.Record().Status == models.PaymentFailed
	}, time.Second, time.Millisecond)
	assert.Contains(t, flow.Record().Message, "contact support")
}

func TestFlowCheckNowDoesNotTouchCountdown(t *testing.T) {
	gw := &fakeGateway{accept: true, status: api.GatewayPending}
	orders := &orderCounter{result: confirmedOrder()}
	flow := newTestFlow(gw, orders, Config{CountdownSeconds: 300, TickInterval: time.Hour, PollInterval: time.Hour})
	defer flow.Stop()

	require.NoError(t, flow.Start(context.Background()))
	before := flow.Record().CountdownSeconds

	record, err := flow.CheckNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, record.Status)
	assert.Equal(t, before, flow.Record().CountdownSeconds)

	gw.setStatus(api.GatewaySuccessful)
	record, err = flow.CheckNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSuccessful, record.Status)
	assert.Equal(t, 1, orders.count())

	// A further manual check on a finished payment is refused.
	_, err = flow.CheckNow(context.Background())
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestFlowRetryAfterReject(t *testing.T) {
	gw := &fakeGateway{accept: false}
	orders := &orderCounter{result: confirmedOrder()}
	flow := newTestFlow(gw, orders, Config{CountdownSeconds: 300, TickInterval: time.Hour, PollInterval: 2 * time.Millisecond})
	defer flow.Stop()

	require.ErrorIs(t, flow.Start(context.Background()), ErrGatewayRejected)

	gw.mu.Lock()
	gw.accept = true
	gw.status = api.GatewaySuccessful
	gw.mu.Unlock()

	require.NoError(t, flow.Retry(context.Background()))
	assert.Eventually(t, func() bool {
		return flow.Record().Status == models.PaymentSuccessful
	}, time.Second, time.Millisecond)
	assert.Equal(t, 2, gw.initiate)

	// Retry only applies to failed payments.
	assert.ErrorIs(t, flow.Retry(context.Background()), ErrNotFailed)
}

func TestFlowRetryDuringSlowFailurePersist(t *testing.T) {
	gw := &fakeGateway{accept: true, status: api.GatewayFailed}
	orders := &orderCounter{result: confirmedOrder()}

	// The first failed-record persist stalls until released, keeping the
	// previous attempt's exit handler in flight while Retry starts a new one.
	release := make(chan struct{})
	var once sync.Once
	persist := func(ps models.PaymentSession) {
		if ps.Status == models.PaymentFailed {
			once.Do(func() { <-release })
		}
	}
	logger := log.New(io.Discard, "", 0)
	flow := NewFlow(logger, gw, orders.create, persist,
		Config{CountdownSeconds: 2, TickInterval: 5 * time.Millisecond, PollInterval: 2 * time.Millisecond},
		context.Background(), flowRecord())
	defer flow.Stop()

	require.NoError(t, flow.Start(context.Background()))
	assert.Eventually(t, func() bool {
		return flow.Record().Status == models.PaymentFailed
	}, time.Second, time.Millisecond)

	gw.setStatus(api.GatewayPending)
	require.NoError(t, flow.Retry(context.Background()))
	assert.Equal(t, models.PaymentPending, flow.Record().Status)

	// Waking the stalled handler must not cancel the new attempt's timers;
	// its countdown still has to reach zero and force failed.
	close(release)
	assert.Eventually(t, func() bool {
		return flow.Record().Status == models.PaymentFailed
	}, time.Second, time.Millisecond)
	assert.Equal(t, 0, flow.Record().CountdownSeconds)
	assert.Contains(t, flow.Record().Message, "timed out")
}

func TestFlowStopCancelsTimers(t *testing.T) {
	gw := &fakeGateway{accept: true, status: api.GatewayPending}
	orders := &orderCounter{result: confirmedOrder()}
	flow := newTestFlow(gw, orders, Config{CountdownSeconds: 300, TickInterval: time.Millisecond, PollInterval: time.Millisecond})

	require.NoError(t, flow.Start(context.Background()))
	time.Sleep(5 * time.Millisecond)
	flow.Stop()
	time.Sleep(5 * time.Millisecond)

	settled := gw.polls()
	countdown := flow.Record().CountdownSeconds
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, settled, gw.polls())
	assert.Equal(t, countdown, flow.Record().CountdownSeconds)
}
