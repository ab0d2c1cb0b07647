package statemachine

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/sjperalta/autolease-api/internal/models"
)

// PaymentFSM wraps a payment with its state machine
type PaymentFSM struct {
	payment *models.Payment
	fsm     *fsm.FSM
}

// Payment events
const (
	PaymentEventFail     = "fail"
	PaymentEventComplete = "complete"
)

// NewPaymentFSM creates a new payment state machine
func NewPaymentFSM(payment *models.Payment) *PaymentFSM {
	pfsm := &PaymentFSM{
		payment: payment,
	}

	pfsm.fsm = fsm.NewFSM(
		payment.Status,
		fsm.Events{
			// completed → failed (admin marks a charge as reversed)
			{Name: PaymentEventFail, Src: []string{models.PaymentStatusCompleted}, Dst: models.PaymentStatusFailed},

			// failed → completed (admin confirms)
			{Name: PaymentEventComplete, Src: []string{models.PaymentStatusFailed}, Dst: models.PaymentStatusCompleted},
		},
		fsm.Callbacks{},
	)

	return pfsm
}

// EventFor maps a target status to the event reaching it
func EventFor(status string) (string, bool) {
	switch status {
	case models.PaymentStatusFailed:
		return PaymentEventFail, true
	case models.PaymentStatusCompleted:
		return PaymentEventComplete, true
	}
	return "", false
}

// Transition moves the payment to the target status
func (p *PaymentFSM) Transition(ctx context.Context, status string) error {
	event, ok := EventFor(status)
	if !ok {
		return fmt.Errorf("unknown payment status: %s", status)
	}
	if !p.fsm.Can(event) {
		return fmt.Errorf("payment cannot move from %s to %s", p.payment.Status, status)
	}
	if err := p.fsm.Event(ctx, event); err != nil {
		return fmt.Errorf("failed to %s payment: %w", event, err)
	}
	p.payment.Status = p.fsm.Current()
	return nil
}

// Current returns the current state
func (p *PaymentFSM) Current() string {
	return p.fsm.Current()
}

// Can checks if a transition is possible
func (p *PaymentFSM) Can(event string) bool {
	return p.fsm.Can(event)
}
