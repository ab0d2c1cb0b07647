package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/autolease-api/internal/models"
)

func TestAuditService_ListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := Actor{UserID: f.customer.ID, IP: "10.0.0.1"}

	f.audit.Record(ctx, actor, AuditCreate, models.EntityLoan, f.loan.ID, "sale")
	f.audit.Record(ctx, actor, AuditPayment, models.EntityPayment, 7, "cash")
	f.audit.Record(ctx, actor, AuditWaive, models.EntityPayment, 8, "waived")

	all, total, err := f.audit.List(ctx, AuditFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	require.NotNil(t, all[0].User)
	assert.Equal(t, f.customer.Email, all[0].User.Email)

	payments, total, err := f.audit.List(ctx, AuditFilter{Entity: models.EntityPayment}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, payments, 2)

	one, total, err := f.audit.List(ctx, AuditFilter{Entity: models.EntityPayment, EntityID: 8}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, one, 1)
	assert.Equal(t, AuditWaive, one[0].Action)

	byAction, total, err := f.audit.List(ctx, AuditFilter{Action: "payment"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, uint(7), byAction[0].EntityID)

	page, total, err := f.audit.List(ctx, AuditFilter{}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 1)
}
