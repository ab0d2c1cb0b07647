package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNonNegative(t *testing.T) {
	assert.True(t, NonNegative(decimal.NewFromFloat(-3.5)).IsZero())
	assert.Equal(t, "4.25", NonNegative(decimal.NewFromFloat(4.25)).StringFixed(2))
}

func TestSettled(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want bool
	}{
		{"zero", 0, true},
		{"one cent", 0.01, true},
		{"negative drift", -0.004, true},
		{"two cents", 0.02, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Settled(decimal.NewFromFloat(tt.in)))
		})
	}
}

func TestCentsRoundTrip(t *testing.T) {
	assert.Equal(t, int64(10050), ToCents(decimal.NewFromFloat(100.499)))
	assert.Equal(t, "0.50", FromCents(50).StringFixed(2))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "$100.00", Format(decimal.NewFromInt(100)))
	assert.Equal(t, "$0.00", Format(decimal.NewFromInt(-7)))
}
