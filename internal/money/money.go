package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
)

// ParseMinor converts a decimal currency string ("12.34") into integer minor
// units. At most two fractional digits are accepted.
func ParseMinor(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, ErrInvalidAmount
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if amount.Exponent() < -2 {
		return 0, ErrTooManyDecimals
	}
	return amount.Shift(2).IntPart(), nil
}

// FormatMinor renders integer minor units as a fixed two-decimal string.
func FormatMinor(value int64) string {
	return decimal.New(value, -2).StringFixed(2)
}
