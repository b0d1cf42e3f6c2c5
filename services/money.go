package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kingjethro999/the-ecommerce-api/models"
	"github.com/shopspring/decimal"
)

// Currencies the gateway charges in whole units.
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true,
	"jpy": true, "kmf": true, "krw": true, "mga": true,
	"pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// MaxOrderAmount is the largest value the numeric(12,2) amount columns hold.
// Unit prices and cart totals above it are rejected.
var MaxOrderAmount = decimal.RequireFromString("9999999999.99")

var ErrAmountOutOfRange = errors.New("amount out of range")

func minorUnitExponent(currency string) int32 {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return 0
	}
	return 2
}

// ToMinorUnits converts a major-unit amount to the gateway's integer
// representation, rounding half away from zero. Negative amounts and
// amounts that do not fit an int64 return ErrAmountOutOfRange.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	minor := amount.Shift(minorUnitExponent(currency)).Round(0)
	if minor.IsNegative() || !minor.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %s %s", ErrAmountOutOfRange, amount.String(), currency)
	}
	return minor.IntPart(), nil
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -minorUnitExponent(currency))
}

// checkCartAmounts bounds every unit price and the cart total by
// MaxOrderAmount.
func checkCartAmounts(cart models.Cart) error {
	for _, item := range cart {
		if item.Price.GreaterThan(MaxOrderAmount) {
			return fmt.Errorf("%w: unit price %s exceeds %s", ErrAmountOutOfRange, item.Price.String(), MaxOrderAmount.String())
		}
	}
	if total := cart.Total(); total.GreaterThan(MaxOrderAmount) {
		return fmt.Errorf("%w: cart total %s exceeds %s", ErrAmountOutOfRange, total.String(), MaxOrderAmount.String())
	}
	return nil
}
