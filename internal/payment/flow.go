package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"thriftmarket/internal/api"
	"thriftmarket/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrGatewayRejected = errors.New("payment gateway rejected the request")
	ErrNotPending      = errors.New("payment is not awaiting confirmation")
	ErrNotFailed       = errors.New("payment is not in a failed state")
)

// Gateway is the mobile-money provider surface the flow needs.
type Gateway interface {
	InitiateMobilePayment(ctx context.Context, req api.InitiatePaymentRequest) (*api.InitiatePaymentResponse, error)
	CheckPaymentStatus(ctx context.Context, reference string) (string, error)
}

// Result carries the order produced after a confirmed payment.
type Result struct {
	Sales  []models.SaleRecord `json:"sales"`
	Errors []models.LineError  `json:"errors,omitempty"`
	Total  decimal.Decimal     `json:"total"`
}

// CreateOrder places the order once payment is confirmed. An error or an
// empty sale list means no order exists for captured money.
type CreateOrder func(ctx context.Context, reference string) (*Result, error)

// Persist is called with the updated record on every transition.
type Persist func(ps models.PaymentSession)

type Config struct {
	CountdownSeconds int
	TickInterval     time.Duration
	PollInterval     time.Duration
}

// Flow owns one payment attempt: the initiation call, the countdown and
// status-poll tickers, and the single order creation after success. Both
// tickers run in one goroutine and are torn down whenever the machine leaves
// pending or Stop is called; a tick can never act on a finished payment.
type Flow struct {
	logger      *log.Logger
	gateway     Gateway
	createOrder CreateOrder
	persist     Persist
	cfg         Config

	// baseCtx is detached from any request and carries the backend auth
	// needed for the post-payment order call.
	baseCtx context.Context

	machine *Machine

	mu          sync.Mutex
	record      models.PaymentSession
	result      *Result
	orderIssued bool
	cancel      context.CancelFunc
	attempt     int
}

func NewFlow(logger *log.Logger, gateway Gateway, createOrder CreateOrder, persist Persist, cfg Config, baseCtx context.Context, record models.PaymentSession) *Flow {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	record.Status = models.PaymentInitiating
	record.CountdownSeconds = cfg.CountdownSeconds

	return &Flow{
		logger:      logger,
		gateway:     gateway,
		createOrder: createOrder,
		persist:     persist,
		cfg:         cfg,
		baseCtx:     baseCtx,
		machine:     NewMachine(cfg.CountdownSeconds),
		record:      record,
	}
}

// Start calls the gateway and, on acceptance, enters pending and spins up the
// countdown and poll tickers.
func (f *Flow) Start(ctx context.Context) error {
	f.mu.Lock()
	req := api.InitiatePaymentRequest{
		OrderID:     f.record.OrderID,
		PhoneNumber: f.record.PhoneNumber,
		Amount:      f.record.Amount,
		Operator:    f.record.Operator,
	}
	f.mu.Unlock()

	resp, err := f.gateway.InitiateMobilePayment(ctx, req)
	if err != nil || !resp.Success {
		f.machine.Reject()
		message := "payment initiation failed"
		if err != nil {
			message = fmt.Sprintf("payment initiation failed: %v", err)
		} else if resp.Message != "" {
			message = resp.Message
		}
		f.updateRecord(func(ps *models.PaymentSession) {
			ps.Status = models.PaymentFailed
			ps.Message = message
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrGatewayRejected, err)
		}
		return ErrGatewayRejected
	}

	if !f.machine.Begin() {
		return fmt.Errorf("payment %s cannot start from state %s", f.record.ID, f.machine.Status())
	}

	runCtx, cancel := context.WithCancel(f.baseCtx)
	f.updateRecord(func(ps *models.PaymentSession) {
		ps.Status = models.PaymentPending
		ps.Reference = resp.Reference
		ps.USSDCode = resp.USSDCode
		ps.Message = ""
	})
	f.mu.Lock()
	f.attempt++
	attempt := f.attempt
	f.cancel = cancel
	f.mu.Unlock()

	go f.run(runCtx, attempt)
	return nil
}

func (f *Flow) run(ctx context.Context, attempt int) {
	tick := time.NewTicker(f.cfg.TickInterval)
	defer tick.Stop()
	poll := time.NewTicker(f.cfg.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if done := f.handleTick(attempt); done {
				return
			}
		case <-poll.C:
			if done := f.handlePoll(ctx, attempt); done {
				return
			}
		}
	}
}

func (f *Flow) handleTick(attempt int) (done bool) {
	applied, timedOut := f.machine.Tick()
	if !applied {
		f.stopTimers(attempt)
		return true
	}
	if timedOut {
		f.logger.Printf("Payment %s timed out waiting for confirmation", f.record.ID)
		f.stopTimers(attempt)
		f.updateRecord(func(ps *models.PaymentSession) {
			ps.Status = models.PaymentFailed
			ps.CountdownSeconds = 0
			ps.Message = "payment confirmation timed out"
		})
		return true
	}
	f.updateRecord(func(ps *models.PaymentSession) {
		ps.CountdownSeconds = f.machine.Countdown()
	})
	return false
}

func (f *Flow) handlePoll(ctx context.Context, attempt int) (done bool) {
	f.mu.Lock()
	reference := f.record.Reference
	f.mu.Unlock()

	status, err := f.gateway.CheckPaymentStatus(ctx, reference)
	if err != nil {
		// Transient probe failure; the countdown decides when to give up.
		f.logger.Printf("Payment %s status check failed: %v", f.record.ID, err)
		return false
	}
	return f.applyGatewayStatus(status, attempt)
}

func (f *Flow) applyGatewayStatus(status string, attempt int) (done bool) {
	transitioned, to := f.machine.Poll(status)
	if !transitioned {
		return f.machine.Status() != models.PaymentPending
	}

	switch to {
	case models.PaymentSuccessful:
		f.stopTimers(attempt)
		f.completeOrder()
		return true
	case models.PaymentFailed:
		f.stopTimers(attempt)
		f.updateRecord(func(ps *models.PaymentSession) {
			ps.Status = models.PaymentFailed
			ps.Message = "payment was declined"
		})
		return true
	default:
		return false
	}
}

// completeOrder issues the post-payment order creation exactly once per
// payment session, however many poll results arrive.
func (f *Flow) completeOrder() {
	f.mu.Lock()
	if f.orderIssued {
		f.mu.Unlock()
		return
	}
	f.orderIssued = true
	reference := f.record.Reference
	// Mark successful in memory only; the order call must not wait on a slow
	// persist. The terminal updateRecord below writes the full record out.
	f.record.Status = models.PaymentSuccessful
	f.record.UpdatedAt = time.Now()
	f.mu.Unlock()

	result, err := f.createOrder(f.baseCtx, reference)
	if err != nil || result == nil || len(result.Sales) == 0 {
		if err != nil {
			f.logger.Printf("Payment %s succeeded but order creation failed: %v", f.record.ID, err)
		} else {
			f.logger.Printf("Payment %s succeeded but no order was created", f.record.ID)
		}
		f.machine.ReconcileFailed()
		f.updateRecord(func(ps *models.PaymentSession) {
			ps.Status = models.PaymentFailed
			ps.Message = fmt.Sprintf("payment was captured but the order could not be created; contact support with reference %s", reference)
		})
		return
	}

	f.mu.Lock()
	f.result = result
	f.mu.Unlock()
	f.updateRecord(func(ps *models.PaymentSession) {
		ps.Message = ""
	})
	f.logger.Printf("Payment %s confirmed, %d sale(s) created", f.record.ID, len(result.Sales))
}

// CheckNow re-runs the status query on demand. The countdown is untouched.
func (f *Flow) CheckNow(ctx context.Context) (models.PaymentSession, error) {
	if f.machine.Status() != models.PaymentPending {
		return f.Record(), ErrNotPending
	}

	f.mu.Lock()
	reference := f.record.Reference
	attempt := f.attempt
	f.mu.Unlock()

	status, err := f.gateway.CheckPaymentStatus(ctx, reference)
	if err != nil {
		return f.Record(), fmt.Errorf("status check failed: %w", err)
	}
	f.applyGatewayStatus(status, attempt)
	return f.Record(), nil
}

// Retry re-enters initiating from failed with a fresh countdown and calls the
// gateway again.
func (f *Flow) Retry(ctx context.Context) error {
	if !f.machine.Retry() {
		return ErrNotFailed
	}

	f.mu.Lock()
	f.record.Status = models.PaymentInitiating
	f.record.CountdownSeconds = f.cfg.CountdownSeconds
	f.record.Reference = ""
	f.record.USSDCode = ""
	f.record.Message = ""
	f.result = nil
	f.orderIssued = false
	f.mu.Unlock()

	return f.Start(ctx)
}

// Stop tears the flow down, cancelling both tickers. Safe to call at any
// point and more than once.
func (f *Flow) Stop() {
	f.mu.Lock()
	attempt := f.attempt
	f.mu.Unlock()
	f.stopTimers(attempt)
}

// stopTimers cancels the attempt's run goroutine. The attempt guard keeps an
// exit handler that was delayed inside a slow persist from cancelling the
// timers of a newer attempt started by Retry in the meantime.
func (f *Flow) stopTimers(attempt int) {
	f.mu.Lock()
	if f.attempt != attempt {
		f.mu.Unlock()
		return
	}
	cancel := f.cancel
	f.cancel = nil
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (f *Flow) Record() models.PaymentSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record
}

// Result returns the created order, or nil while none exists.
func (f *Flow) Result() *Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

func (f *Flow) updateRecord(mutate func(ps *models.PaymentSession)) {
	f.mu.Lock()
	mutate(&f.record)
	f.record.UpdatedAt = time.Now()
	snapshot := f.record
	f.mu.Unlock()

	if f.persist != nil {
		f.persist(snapshot)
	}
}
