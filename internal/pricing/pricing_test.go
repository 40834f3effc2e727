package pricing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
)

func TestFixed(t *testing.T) {
	c, err := Fixed{TaxCents: 300, ShippingCents: 500}.Quote(context.Background(), Quote{SubtotalCents: 4500})
	require.NoError(t, err)
	assert.Equal(t, Charges{TaxCents: 300, ShippingCents: 500}, c)

	zero, err := Fixed{}.Quote(context.Background(), Quote{SubtotalCents: 4500})
	require.NoError(t, err)
	assert.Zero(t, zero)
}

func TestRate(t *testing.T) {
	r, err := NewRate("0.0825", 599, 10000)
	require.NoError(t, err)

	cases := []struct {
		name     string
		subtotal int64
		want     Charges
	}{
		{"rounds half up", 1000, Charges{TaxCents: 83, ShippingCents: 599}},
		{"fractional cent", 1234, Charges{TaxCents: 102, ShippingCents: 599}},
		{"free shipping threshold", 10000, Charges{TaxCents: 825, ShippingCents: 0}},
		{"empty", 0, Charges{TaxCents: 0, ShippingCents: 599}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Quote(context.Background(), Quote{SubtotalCents: tc.subtotal})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRateRejectsBadInput(t *testing.T) {
	_, err := NewRate("abc", 0, 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = NewRate("-0.1", 0, 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = Rate{TaxRate: decimal.Zero}.Quote(context.Background(), Quote{SubtotalCents: -1})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestAmountConversions(t *testing.T) {
	assert.Equal(t, "45.00", Amount(4500))
	assert.Equal(t, "0.05", Amount(5))

	c, err := ParseCents("5.25")
	require.NoError(t, err)
	assert.EqualValues(t, 525, c)
	c, err = ParseCents("3")
	require.NoError(t, err)
	assert.EqualValues(t, 300, c)
	_, err = ParseCents("x")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}
