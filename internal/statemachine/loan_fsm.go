package statemachine

import (
	"context"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"github.com/sjperalta/autolease-api/internal/models"
)

// LoanFSM wraps a loan with its state machine. There is no reopen event:
// a closed loan stays closed.
type LoanFSM struct {
	loan *models.Loan
	fsm  *fsm.FSM
}

// NewLoanFSM creates a new loan state machine
func NewLoanFSM(loan *models.Loan) *LoanFSM {
	lfsm := &LoanFSM{loan: loan}

	lfsm.fsm = fsm.NewFSM(
		loan.Status,
		fsm.Events{
			// active → closed (balance settled)
			{Name: "close", Src: []string{models.LoanStatusActive}, Dst: models.LoanStatusClosed},
		},
		fsm.Callbacks{
			"enter_" + models.LoanStatusClosed: func(_ context.Context, e *fsm.Event) {
				now := time.Now().UTC()
				if len(e.Args) > 0 {
					if at, ok := e.Args[0].(time.Time); ok {
						now = at.UTC()
					}
				}
				lfsm.loan.ClosedAt = &now
			},
		},
	)

	return lfsm
}

// Close marks the loan closed at the given time
func (l *LoanFSM) Close(ctx context.Context, at time.Time) error {
	if err := l.fsm.Event(ctx, "close", at); err != nil {
		return fmt.Errorf("failed to close loan: %w", err)
	}
	l.loan.Status = l.fsm.Current()
	return nil
}

// Current returns the current state
func (l *LoanFSM) Current() string {
	return l.fsm.Current()
}

// Can checks if a transition is possible
func (l *LoanFSM) Can(event string) bool {
	return l.fsm.Can(event)
}
