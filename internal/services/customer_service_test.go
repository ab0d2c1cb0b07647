package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/autolease-api/internal/models"
	"github.com/sjperalta/autolease-api/internal/repository"
)

func newCustomerService(f *fixture) *CustomerService {
	return NewCustomerService(f.repos, nil, nil, f.notifier, f.audit, nil)
}

func TestCustomerCreate_NotifiesAdmins(t *testing.T) {
	f := newFixture(t)
	svc := newCustomerService(f)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateCustomerInput{
		Email:     "  Luis@Example.com ",
		Password:  "s3cretpass",
		FirstName: "Luis",
		LastName:  "Mejia",
	}, Actor{})
	require.NoError(t, err)
	assert.Equal(t, "luis@example.com", user.Email)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.NotEqual(t, "s3cretpass", user.EncryptedPassword)

	var notices int64
	require.NoError(t, f.db.Model(&models.Notification{}).Count(&notices).Error)
	assert.Equal(t, int64(1), notices)

	_, err = svc.Create(ctx, CreateCustomerInput{Email: "luis@example.com", Password: "s3cretpass", FirstName: "L", LastName: "M"}, Actor{})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestCustomerCreate_Validation(t *testing.T) {
	svc := newCustomerService(newFixture(t))
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateCustomerInput{Email: "not-an-email", Password: "s3cretpass", FirstName: "A", LastName: "B"}, Actor{})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Create(ctx, CreateCustomerInput{Email: "a@b.com", Password: "short", FirstName: "A", LastName: "B"}, Actor{})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Create(ctx, CreateCustomerInput{Email: "a@b.com", Password: "s3cretpass", FirstName: " "}, Actor{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCustomerList_OnlyCustomers(t *testing.T) {
	f := newFixture(t)
	svc := newCustomerService(f)

	users, total, err := svc.List(context.Background(), repository.NewListQuery())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, users, 1)
	assert.Equal(t, f.customer.ID, users[0].ID)
}

func TestCustomerSetActive_RevokesTokens(t *testing.T) {
	f := newFixture(t)
	svc := newCustomerService(f)
	ctx := context.Background()
	expires := day(12, 1)
	require.NoError(t, f.repos.RefreshToken.Create(ctx, &models.RefreshToken{UserID: f.customer.ID, TokenHash: models.HashToken("rt-1"), ExpiresAt: &expires}))

	user, err := svc.SetActive(ctx, f.customer.ID, false, Actor{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, user.Status)

	_, err = f.repos.RefreshToken.FindByToken(ctx, "rt-1")
	assert.Error(t, err)
}

func TestCustomerSchedule(t *testing.T) {
	f := newFixture(t)
	svc := newCustomerService(f)
	ctx := context.Background()

	_, err := svc.Schedule(ctx, f.customer.ID+1, f.loan.ID, day(2, 10))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.payments(nil, day(2, 10)).ApplyFlexible(ctx, ApplyFlexibleInput{
		LoanID:        f.loan.ID,
		Amount:        dec("50"),
		PaymentMethod: models.PaymentMethodCash,
	})
	require.NoError(t, err)

	sched, err := svc.Schedule(ctx, f.customer.ID, f.loan.ID, day(2, 10))
	require.NoError(t, err)
	require.Len(t, sched.Entries, 3)
	assert.Equal(t, "overdue", sched.Entries[0].Status)
	assert.Equal(t, "50.00", sched.Entries[0].Remaining)
	assert.True(t, sched.Entries[0].Attempted)
	assert.False(t, sched.Entries[1].Attempted)
	assert.Equal(t, "0.00", sched.TotalCollected)
	assert.Equal(t, "50.00", sched.OverdueAmount)
	assert.Equal(t, "200.00", sched.PendingAmount)
	assert.Equal(t, "250.00", sched.RemainingBalance)
}

func TestCustomerHomePage(t *testing.T) {
	f := newFixture(t)
	svc := newCustomerService(f)

	page, err := svc.HomePage(context.Background(), f.customer.ID, day(2, 10))
	require.NoError(t, err)
	require.Len(t, page.Loans, 1)
	home := page.Loans[0]
	require.NotNil(t, home.NextDueDate)
	assert.Equal(t, "2026-03-01", *home.NextDueDate)
	assert.Equal(t, 3, home.PaymentsRemaining)
	assert.Equal(t, 1, home.OverdueCount)
	assert.Equal(t, "100.00", home.OverdueAmount)
	assert.True(t, strings.Contains(home.VehicleName, "Honda"))
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	svc := newCustomerService(f)
	ctx := context.Background()
	hash, err := HashPassword("old-password")
	require.NoError(t, err)
	f.customer.EncryptedPassword = hash
	require.NoError(t, f.repos.User.Update(ctx, f.customer))

	err = svc.ChangePassword(ctx, f.customer.ID, "wrong-password", "new-password")
	assert.ErrorIs(t, err, ErrInvalidPassword)
	err = svc.ChangePassword(ctx, f.customer.ID, "old-password", "short")
	assert.ErrorIs(t, err, ErrValidation)
	require.NoError(t, svc.ChangePassword(ctx, f.customer.ID, "old-password", "new-password"))

	user, err := f.repos.User.FindByID(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.True(t, VerifyPassword("new-password", user.EncryptedPassword))
}

func TestUploadProfilePicture_NoStorage(t *testing.T) {
	f := newFixture(t)
	_, err := newCustomerService(f).UploadProfilePicture(context.Background(), f.customer.ID, "me.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidState)
}
