package calculator

import (
	"fmt"

	"edudebt_collection/internal/models"

	"github.com/shopspring/decimal"
)

// AccrualPolicy turns a principal and the number of calendar days overdue
// into the value owed today. Implementations must be pure.
type AccrualPolicy interface {
	UpdatedValue(principal decimal.Decimal, daysOverdue int) (decimal.Decimal, error)
}

type AccrualFunc func(principal decimal.Decimal, daysOverdue int) (decimal.Decimal, error)

func (f AccrualFunc) UpdatedValue(principal decimal.Decimal, daysOverdue int) (decimal.Decimal, error) {
	return f(principal, daysOverdue)
}

// SimpleMonthly charges LateFee once on the first day overdue, then MonthlyRate
// of simple interest for every started PeriodDays window after the first one.
//
// The legacy accrual formula is not known; the defaults (2% fee, 1%/month)
// follow common educational-contract terms and are an assumption.
type SimpleMonthly struct {
	MonthlyRate decimal.Decimal
	LateFee     decimal.Decimal
	PeriodDays  int
}

func DefaultAccrual() SimpleMonthly {
	return SimpleMonthly{
		MonthlyRate: decimal.RequireFromString("0.01"),
		LateFee:     decimal.RequireFromString("0.02"),
		PeriodDays:  30,
	}
}

func (p SimpleMonthly) UpdatedValue(principal decimal.Decimal, daysOverdue int) (decimal.Decimal, error) {
	if principal.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative principal %s", models.ErrInvalidInput, principal)
	}
	if daysOverdue < 0 {
		return decimal.Zero, fmt.Errorf("%w: negative days overdue %d", models.ErrInvalidInput, daysOverdue)
	}
	if daysOverdue == 0 {
		return principal, nil
	}

	period := p.PeriodDays
	if period <= 0 {
		period = 30
	}
	months := (daysOverdue - 1) / period

	factor := decimal.NewFromInt(1).
		Add(p.LateFee).
		Add(p.MonthlyRate.Mul(decimal.NewFromInt(int64(months))))
	return principal.Mul(factor), nil
}
