package calculator

import (
	"fmt"

	"edudebt_collection/internal/models"

	"github.com/shopspring/decimal"
)

const (
	MinInstallments = 1
	MaxInstallments = 12
)

// Interest surcharge per installment count. Hand-curated, not derived.
var installmentRates = [MaxInstallments + 1]string{
	1:  "0.0000",
	2:  "0.0539",
	3:  "0.0612",
	4:  "0.0685",
	5:  "0.0757",
	6:  "0.0828",
	7:  "0.0899",
	8:  "0.0969",
	9:  "0.1038",
	10: "0.1106",
	11: "0.1174",
	12: "0.1240",
}

// Schedule is the installment rate table. The zero value is empty; use
// DefaultSchedule. Safe for concurrent reads.
type Schedule struct {
	rates [MaxInstallments + 1]decimal.Decimal
	ok    bool
}

func DefaultSchedule() Schedule {
	var s Schedule
	for n := MinInstallments; n <= MaxInstallments; n++ {
		s.rates[n] = decimal.RequireFromString(installmentRates[n])
	}
	s.ok = true
	return s
}

func ValidInstallmentCount(n int) bool {
	return n >= MinInstallments && n <= MaxInstallments
}

func (s Schedule) Rate(n int) (decimal.Decimal, error) {
	if !s.ok || !ValidInstallmentCount(n) {
		return decimal.Zero, fmt.Errorf("%w: %d (allowed %d-%d)",
			models.ErrInvalidInstallmentCount, n, MinInstallments, MaxInstallments)
	}
	return s.rates[n], nil
}
