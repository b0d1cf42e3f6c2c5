package services_test

import (
	"testing"

	"github.com/kingjethro999/the-ecommerce-api/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     int64
	}{
		{"20", "usd", 2000},
		{"19.99", "USD", 1999},
		{"0.005", "eur", 1},
		{"0.004", "eur", 0},
		{"1500", "jpy", 1500},
		{"1500.5", "krw", 1501},
	}
	for _, tt := range tests {
		got, err := services.ToMinorUnits(decimal.RequireFromString(tt.amount), tt.currency)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %s", tt.amount, tt.currency)
	}
}

func TestToMinorUnits_OutOfRange(t *testing.T) {
	for _, amount := range []string{"184467440737095566.16", "92233720368547758.08", "-1"} {
		_, err := services.ToMinorUnits(decimal.RequireFromString(amount), "usd")
		assert.ErrorIs(t, err, services.ErrAmountOutOfRange, amount)
	}

	got, err := services.ToMinorUnits(services.MaxOrderAmount, "usd")
	require.NoError(t, err)
	assert.Equal(t, int64(999999999999), got)
}

func TestFromMinorUnits(t *testing.T) {
	assert.Equal(t, "20", services.FromMinorUnits(2000, "usd").String())
	assert.Equal(t, "1500", services.FromMinorUnits(1500, "jpy").String())
}
