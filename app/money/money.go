// Package money holds the decimal rules shared by every balance mutation:
// amounts carry two fractional digits and fees round half away from zero.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const Scale int32 = 2

// MaxAmount is the largest value the DECIMAL(20, 2) amount columns hold.
var MaxAmount = decimal.RequireFromString("999999999999999999.99")

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrTooManyDecimals   = errors.New("amount has more than two decimal places")
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
	ErrAmountTooLarge    = errors.New("amount exceeds the maximum of 999999999999999999.99")
)

// Parse reads a positive amount with at most two decimal places.
func Parse(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, Validate(amount)
}

func Validate(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if !amount.Equal(amount.Round(Scale)) {
		return ErrTooManyDecimals
	}
	if amount.GreaterThan(MaxAmount) {
		return ErrAmountTooLarge
	}
	return nil
}

func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(Scale)
}

// Fee returns amount x rate rounded to the currency scale.
func Fee(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Round(Scale)
}

func Format(amount decimal.Decimal) string {
	return amount.StringFixed(Scale)
}

func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
