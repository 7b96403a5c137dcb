package negotiation

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"edudebt_collection/internal/models"
	"edudebt_collection/internal/services/calculator"
	"edudebt_collection/internal/services/stage"

	"github.com/shopspring/decimal"
)

// Case is the read-time join of a debt with everything needed to negotiate it.
// Debtor, School and Agreement are nil when the record is missing.
type Case struct {
	Debt                models.Debt       `json:"debt"`
	Debtor              *models.Debtor    `json:"debtor"`
	School              *models.School    `json:"school"`
	Attempts            []models.Attempt  `json:"attempts"`
	Agreement           *models.Agreement `json:"agreement,omitempty"`
	UpdatedValue        decimal.Decimal   `json:"updated_value"`
	DaysOverdue         int               `json:"days_overdue"`
	LastActivity        *time.Time        `json:"last_activity,omitempty"`
	ReadyForLegalAction bool              `json:"ready_for_legal_action"`
	CanAdvance          bool              `json:"can_advance"`
	CanRetreat          bool              `json:"can_retreat"`
}

// SortNewestFirst orders attempts by timestamp, newest first. Ties keep a
// stable order by id.
func SortNewestFirst(attempts []models.Attempt) {
	sort.SliceStable(attempts, func(i, j int) bool {
		if !attempts[i].At.Equal(attempts[j].At) {
			return attempts[i].At.After(attempts[j].At)
		}
		return attempts[i].ID > attempts[j].ID
	})
}

// Case assembles the aggregate for debtID evaluated at eval. A missing debt is
// ErrNotFound; a missing debtor, school or agreement is left nil.
func (s *Service) Case(ctx context.Context, debtID string, eval time.Time) (Case, error) {
	debt, err := s.Debts.GetDebt(ctx, debtID)
	if err != nil {
		return Case{}, err
	}
	c := Case{Debt: debt}

	if debt.DebtorID != nil {
		d, err := s.Directory.GetDebtor(ctx, *debt.DebtorID)
		switch {
		case err == nil:
			c.Debtor = &d
		case errors.Is(err, models.ErrNotFound):
			log.Printf("[NEG][CASE][WARN] debt=%s debtor=%s missing", debtID, *debt.DebtorID)
		default:
			return Case{}, err
		}
	}
	if debt.SchoolID != nil {
		sc, err := s.Directory.GetSchool(ctx, *debt.SchoolID)
		switch {
		case err == nil:
			c.School = &sc
		case errors.Is(err, models.ErrNotFound):
			log.Printf("[NEG][CASE][WARN] debt=%s school=%s missing", debtID, *debt.SchoolID)
		default:
			return Case{}, err
		}
	}

	attempts, err := s.Attempts.ListAttempts(ctx, debtID)
	if err != nil {
		return Case{}, err
	}
	SortNewestFirst(attempts)
	c.Attempts = attempts
	if len(attempts) > 0 {
		last := attempts[0].At
		c.LastActivity = &last
	}
	c.ReadyForLegalAction = stage.IsReadyForLegalAction(attempts)

	agr, err := s.Agreements.FindAgreement(ctx, debtID)
	switch {
	case err == nil:
		c.Agreement = &agr
	case errors.Is(err, models.ErrNotFound):
	default:
		return Case{}, err
	}

	c.UpdatedValue, c.DaysOverdue, err = s.valueOf(debt, eval)
	if err != nil {
		return Case{}, err
	}

	facts := stage.FactsOf(debt, c.Agreement != nil)
	c.CanAdvance = stage.Allowed(facts, stage.EventAdvance)
	c.CanRetreat = stage.Allowed(facts, stage.EventRetreat)
	return c, nil
}

func (s *Service) valueOf(debt models.Debt, eval time.Time) (decimal.Decimal, int, error) {
	if debt.Status == models.StatusPaid {
		return calculator.Round(debt.Amount), 0, nil
	}
	v, err := s.Calc.UpdatedValue(debt.Amount, debt.DueDate, eval)
	if err != nil {
		return decimal.Zero, 0, err
	}
	days := calculator.DaysOverdue(debt.DueDate, eval)
	if days < 0 {
		days = 0
	}
	return calculator.Round(v), days, nil
}

// Summary is one row of a tenant's overdue portfolio.
type Summary struct {
	Debt                   models.Debt     `json:"debt"`
	UpdatedValue           decimal.Decimal `json:"updated_value"`
	DaysOverdue            int             `json:"days_overdue"`
	AdministrativeAttempts int             `json:"administrative_attempts"`
	ReadyForLegalAction    bool            `json:"ready_for_legal_action"`
	LastActivity           *time.Time      `json:"last_activity,omitempty"`
}

func (s *Service) ListOverdue(ctx context.Context, tenantID string, eval time.Time) ([]Summary, error) {
	debts, err := s.Debts.ListOverdueDebtsForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(debts))
	for _, d := range debts {
		attempts, err := s.Attempts.ListAttempts(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		SortNewestFirst(attempts)
		v, days, err := s.valueOf(d, eval)
		if err != nil {
			return nil, err
		}
		row := Summary{
			Debt:                   d,
			UpdatedValue:           v,
			DaysOverdue:            days,
			AdministrativeAttempts: stage.AdministrativeAttempts(attempts),
			ReadyForLegalAction:    stage.IsReadyForLegalAction(attempts),
		}
		if len(attempts) > 0 {
			last := attempts[0].At
			row.LastActivity = &last
		}
		out = append(out, row)
	}
	return out, nil
}
