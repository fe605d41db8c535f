// Package payment drives a mobile-money payment attempt from initiation to a
// terminal outcome. The deterministic transition rules live in Machine; Flow
// owns the timers, the gateway calls, and the order creation that follows a
// confirmed payment.
package payment

import (
	"sync"

	"thriftmarket/internal/api"
	"thriftmarket/internal/models"
)

// Machine holds the payment state transitions:
//
//	initiating -> pending -> successful
//	initiating -> failed            (gateway rejects)
//	pending    -> failed            (explicit failure, or countdown reaches 0)
//	successful -> failed            (order creation failed after capture)
//	failed     -> initiating        (manual retry, countdown reset)
//
// Every input is a no-op outside the state it applies to, so a timer that
// fires after the machine has left pending cannot move it.
type Machine struct {
	mu        sync.Mutex
	status    models.PaymentStatus
	countdown int
	budget    int
}

func NewMachine(budgetSeconds int) *Machine {
	return &Machine{
		status:    models.PaymentInitiating,
		countdown: budgetSeconds,
		budget:    budgetSeconds,
	}
}

func (m *Machine) Status() models.PaymentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Machine) Countdown() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countdown
}

// Begin moves initiating -> pending once the gateway has accepted.
func (m *Machine) Begin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != models.PaymentInitiating {
		return false
	}
	m.status = models.PaymentPending
	return true
}

// Reject moves initiating -> failed when the gateway declines the request.
func (m *Machine) Reject() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != models.PaymentInitiating {
		return false
	}
	m.status = models.PaymentFailed
	return true
}

// Tick consumes one countdown second. Reaching zero forces failed. The first
// return reports whether the tick was applied, the second whether it timed
// the payment out.
func (m *Machine) Tick() (applied, timedOut bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != models.PaymentPending {
		return false, false
	}
	if m.countdown > 0 {
		m.countdown--
	}
	if m.countdown == 0 {
		m.status = models.PaymentFailed
		return true, true
	}
	return true, false
}

// Poll applies a gateway status report. Only SUCCESSFUL and FAILED move the
// machine; PENDING and unknown strings leave it where it is.
func (m *Machine) Poll(gatewayStatus string) (transitioned bool, to models.PaymentStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != models.PaymentPending {
		return false, m.status
	}
	switch gatewayStatus {
	case api.GatewaySuccessful:
		m.status = models.PaymentSuccessful
		return true, m.status
	case api.GatewayFailed:
		m.status = models.PaymentFailed
		return true, m.status
	default:
		return false, m.status
	}
}

// Fail forces pending -> failed (explicit gateway failure signal outside a
// poll, e.g. a status endpoint error treated as terminal).
func (m *Machine) Fail() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != models.PaymentPending {
		return false
	}
	m.status = models.PaymentFailed
	return true
}

// ReconcileFailed moves successful -> failed when the post-payment order
// creation did not produce an order. Money may already be captured; the
// caller surfaces the support message.
func (m *Machine) ReconcileFailed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != models.PaymentSuccessful {
		return false
	}
	m.status = models.PaymentFailed
	return true
}

// Retry moves failed -> initiating and resets the countdown to the full
// budget.
func (m *Machine) Retry() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != models.PaymentFailed {
		return false
	}
	m.status = models.PaymentInitiating
	m.countdown = m.budget
	return true
}
