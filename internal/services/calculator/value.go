package calculator

import (
	"fmt"
	"time"

	"edudebt_collection/internal/models"

	"github.com/shopspring/decimal"
)

// Config carries the accrual policy and the installment schedule. Pass it
// explicitly; nothing in this package reads global state.
type Config struct {
	Accrual  AccrualPolicy
	Schedule Schedule
}

func DefaultConfig() Config {
	return Config{Accrual: DefaultAccrual(), Schedule: DefaultSchedule()}
}

func (c Config) policy() AccrualPolicy {
	if c.Accrual == nil {
		return DefaultAccrual()
	}
	return c.Accrual
}

func (c Config) schedule() Schedule {
	if !c.Schedule.ok {
		return DefaultSchedule()
	}
	return c.Schedule
}

// DaysOverdue counts calendar days from due to eval, comparing dates only.
// Negative when eval precedes due.
func DaysOverdue(due, eval time.Time) int {
	d := dateOnly(due)
	e := dateOnly(eval.In(due.Location()))
	return int(e.Sub(d).Hours() / 24)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// UpdatedValue is the amount owed on eval. Up to and including the due date
// it equals principal. The result is not rounded.
func (c Config) UpdatedValue(principal decimal.Decimal, due, eval time.Time) (decimal.Decimal, error) {
	if principal.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative principal %s", models.ErrInvalidInput, principal)
	}
	days := DaysOverdue(due, eval)
	if days <= 0 {
		return principal, nil
	}
	v, err := c.policy().UpdatedValue(principal, days)
	if err != nil {
		return decimal.Zero, err
	}
	if v.LessThan(principal) {
		return decimal.Zero, fmt.Errorf("%w: accrual policy reduced %s to %s", models.ErrInvalidInput, principal, v)
	}
	return v, nil
}

// Accrued returns the charges on top of principal at eval. Unlike
// UpdatedValue it rejects an evaluation date before the due date.
func (c Config) Accrued(principal decimal.Decimal, due, eval time.Time) (decimal.Decimal, error) {
	if DaysOverdue(due, eval) < 0 {
		return decimal.Zero, fmt.Errorf("%w: evaluation %s precedes due date %s",
			models.ErrInvalidInput, eval.Format(time.DateOnly), due.Format(time.DateOnly))
	}
	v, err := c.UpdatedValue(principal, due, eval)
	if err != nil {
		return decimal.Zero, err
	}
	return v.Sub(principal), nil
}

// InstallmentValue is (updated * (1 + rate[n])) / n, unrounded.
func (c Config) InstallmentValue(updated decimal.Decimal, n int) (decimal.Decimal, error) {
	if updated.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative value %s", models.ErrInvalidInput, updated)
	}
	rate, err := c.schedule().Rate(n)
	if err != nil {
		return decimal.Zero, err
	}
	return updated.Mul(decimal.NewFromInt(1).Add(rate)).Div(decimal.NewFromInt(int64(n))), nil
}

// Quote is a rounded installment plan ready for display or persistence.
type Quote struct {
	InstallmentCount int             `json:"installment_count"`
	Rate             decimal.Decimal `json:"rate"`
	UpdatedValue     decimal.Decimal `json:"updated_value"`
	TotalValue       decimal.Decimal `json:"total_value"`
	InstallmentValue decimal.Decimal `json:"installment_value"`
}

func (c Config) Quote(updated decimal.Decimal, n int) (Quote, error) {
	inst, err := c.InstallmentValue(updated, n)
	if err != nil {
		return Quote{}, err
	}
	rate, _ := c.schedule().Rate(n)
	return Quote{
		InstallmentCount: n,
		Rate:             rate,
		UpdatedValue:     Round(updated),
		TotalValue:       Round(updated.Mul(decimal.NewFromInt(1).Add(rate))),
		InstallmentValue: Round(inst),
	}, nil
}

// Quotes lists every plan in the schedule for one updated value.
func (c Config) Quotes(updated decimal.Decimal) ([]Quote, error) {
	out := make([]Quote, 0, MaxInstallments)
	for n := MinInstallments; n <= MaxInstallments; n++ {
		q, err := c.Quote(updated, n)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// Round applies half-up rounding to cents.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
