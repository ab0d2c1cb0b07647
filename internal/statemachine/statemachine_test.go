package statemachine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/autolease-api/internal/models"
)

func TestLoanFSM_CloseIsOneWay(t *testing.T) {
	loan := &models.Loan{Status: models.LoanStatusActive}
	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	lf := NewLoanFSM(loan)
	require.NoError(t, lf.Close(context.Background(), at))
	assert.Equal(t, models.LoanStatusClosed, loan.Status)
	require.NotNil(t, loan.ClosedAt)
	assert.Equal(t, at, *loan.ClosedAt)

	again := NewLoanFSM(loan)
	assert.False(t, again.Can("close"))
	assert.Error(t, again.Close(context.Background(), at))
	assert.Equal(t, models.LoanStatusClosed, loan.Status)
}

func TestPaymentFSM_Transitions(t *testing.T) {
	p := &models.Payment{Status: models.PaymentStatusCompleted}
	pf := NewPaymentFSM(p)

	require.NoError(t, pf.Transition(context.Background(), models.PaymentStatusFailed))
	assert.Equal(t, models.PaymentStatusFailed, p.Status)

	require.NoError(t, pf.Transition(context.Background(), models.PaymentStatusCompleted))
	assert.Equal(t, models.PaymentStatusCompleted, p.Status)

	assert.Error(t, pf.Transition(context.Background(), models.PaymentStatusCompleted))
	assert.Error(t, pf.Transition(context.Background(), "refunded"))
}
