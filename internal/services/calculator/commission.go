package calculator

import (
	"fmt"

	"edudebt_collection/internal/models"

	"github.com/shopspring/decimal"
)

var (
	DefaultCommissionPercentage = decimal.NewFromInt(10)

	hundred = decimal.NewFromInt(100)
)

// Commission is settled * percentage / 100, rounded to cents.
func Commission(settled, percentage decimal.Decimal) (decimal.Decimal, error) {
	if settled.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative settled amount %s", models.ErrInvalidInput, settled)
	}
	if percentage.IsNegative() || percentage.GreaterThan(hundred) {
		return decimal.Zero, fmt.Errorf("%w: commission percentage %s outside [0, 100]", models.ErrInvalidInput, percentage)
	}
	return Round(settled.Mul(percentage).Div(hundred)), nil
}
