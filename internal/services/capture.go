package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/autolease-api/internal/config"
	"github.com/sjperalta/autolease-api/internal/money"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// CaptureRequest is one card charge for a loan payment
type CaptureRequest struct {
	LoanID         uint
	CustomerID     uint
	CustomerEmail  string
	AmountCents    int64
	CardToken      string
	Description    string
	IdempotencyKey string
}

// CaptureResult is what the processor actually collected
type CaptureResult struct {
	Reference      string
	AmountReceived decimal.Decimal
}

// PaymentCapturer charges a card. A failed or incomplete charge returns an
// error wrapping ErrCaptureFailed.
type PaymentCapturer interface {
	Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error)
}

// NewPaymentCapturer returns a Stripe capturer when a secret key is
// configured.
func NewPaymentCapturer(cfg *config.Config) PaymentCapturer {
	if !cfg.PaymentsEnabled() {
		return disabledCapturer{}
	}
	sc := &client.API{}
	sc.Init(cfg.StripeSecretKey, nil)
	currency := cfg.StripeCurrency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &stripeCapturer{client: sc, currency: currency}
}

type stripeCapturer struct {
	client   *client.API
	currency string
}

func (c *stripeCapturer) Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error) {
	if req.CardToken == "" {
		return nil, validationError("card_token is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(c.currency),
		PaymentMethod: stripe.String(req.CardToken),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if req.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.AddMetadata("loan_id", strconv.FormatUint(uint64(req.LoanID), 10))
	params.AddMetadata("customer_id", strconv.FormatUint(uint64(req.CustomerID), 10))
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := c.client.PaymentIntents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
			return nil, fmt.Errorf("%w: %s", ErrCaptureFailed, stripeErr.Msg)
		}
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("%w: payment not completed (status: %s)", ErrCaptureFailed, pi.Status)
	}

	received := pi.AmountReceived
	if received == 0 {
		received = pi.Amount
	}
	return &CaptureResult{
		Reference:      pi.ID,
		AmountReceived: money.NonNegative(money.FromCents(received)),
	}, nil
}

type disabledCapturer struct{}

func (disabledCapturer) Capture(context.Context, CaptureRequest) (*CaptureResult, error) {
	return nil, ErrPaymentsNotConfigured
}
