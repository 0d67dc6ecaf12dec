// Package money parses and formats NUMERIC(12,2) amounts.
package money

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalid  = errors.New("must be a decimal number")
	ErrNegative = errors.New("must not be negative")
	ErrScale    = errors.New("must have at most 2 decimal places")
	ErrTooLarge = errors.New("must be at most 9999999999.99")
)

// MaxQuantity is the largest count an INTEGER column holds.
const MaxQuantity = math.MaxInt32

// Fits reports whether d fits a NUMERIC(precision,2) column.
func Fits(d decimal.Decimal, precision int) bool {
	return d.Abs().LessThan(decimal.New(1, int32(precision-2)))
}

// Parse reads a non-negative amount with at most two decimal places that
// fits NUMERIC(12,2).
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, ErrInvalid
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegative
	}
	if !d.Equal(d.Round(2)) {
		return decimal.Zero, ErrScale
	}
	if !Fits(d, 12) {
		return decimal.Zero, ErrTooLarge
	}
	return d, nil
}

// Must parses a value read back from the database.
func Must(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func Format(d decimal.Decimal) string { return d.StringFixed(2) }

// Line returns quantity × unit price.
func Line(qty int, unit decimal.Decimal) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}
