package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"edudebt_collection/internal/models"
	"edudebt_collection/internal/ports"
	"edudebt_collection/internal/services/calculator"
	"edudebt_collection/internal/services/stage"

	"github.com/shopspring/decimal"
)

type Service struct {
	Debts   ports.DebtStore
	Tenants ports.TenantConfig
	Locks   ports.Locker
	Events  ports.EventSink

	// DefaultPercentage applies when the tenant has no configured percentage.
	// Nil means calculator.DefaultCommissionPercentage; an explicit zero is honoured.
	DefaultPercentage *decimal.Decimal
	Now               func() time.Time
}

type Result struct {
	Debt       models.Debt     `json:"debt"`
	Commission decimal.Decimal `json:"commission"`
	Percentage decimal.Decimal `json:"percentage"`
	Replayed   bool            `json:"replayed"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Settle marks a debt paid and stores the commission owed on settled. The
// commission is computed once; settling an already paid debt returns the
// stored value.
func (s *Service) Settle(ctx context.Context, debtID string, settled decimal.Decimal, actor string) (Result, error) {
	if settled.IsNegative() {
		return Result{}, fmt.Errorf("%w: settled amount %s is negative", models.ErrInvalidInput, settled)
	}

	unlock, err := s.Locks.Lock(ctx, debtID)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	debt, err := s.Debts.GetDebt(ctx, debtID)
	if err != nil {
		return Result{}, err
	}

	if debt.Status == models.StatusPaid {
		res := Result{Debt: debt, Replayed: true}
		if debt.Commission != nil {
			res.Commission = *debt.Commission
		}
		log.Printf("[SETTLE][SKIP] debt=%s already paid commission=%s", debtID, res.Commission.StringFixed(2))
		return res, nil
	}

	if _, err := stage.Apply(stage.FactsOf(debt, false), stage.EventPaymentReceived); err != nil {
		return Result{}, err
	}

	pct := decimal.Zero
	if debt.Status == models.StatusOverdue {
		pct, err = s.percentage(ctx, debt.TenantID)
		if err != nil {
			return Result{}, err
		}
	}
	commission, err := calculator.Commission(settled, pct)
	if err != nil {
		return Result{}, err
	}

	if err := s.Debts.MarkPaid(ctx, debt.ID, commission, debt.Version); err != nil {
		log.Printf("[SETTLE][ERR] debt=%s err=%v", debtID, err)
		return Result{}, err
	}
	paid, err := s.Debts.GetDebt(ctx, debt.ID)
	if err != nil {
		return Result{}, err
	}

	if s.Events != nil {
		e := models.Event{
			Type: models.EventDebtSettled, DebtID: debt.ID, TenantID: debt.TenantID, Actor: actor,
			From: debt.StageOrEmpty(), To: debt.StageOrEmpty(), At: s.now().UTC(),
			Data: map[string]string{
				"settled":    settled.StringFixed(2),
				"percentage": pct.String(),
				"commission": commission.StringFixed(2),
			},
		}
		if err := s.Events.Record(ctx, e); err != nil {
			log.Printf("[SETTLE][EVENT][ERR] debt=%s err=%v", debtID, err)
		}
	}

	log.Printf("[SETTLE][DONE] debt=%s settled=%s pct=%s commission=%s", debtID, settled.StringFixed(2), pct, commission.StringFixed(2))
	return Result{Debt: paid, Commission: commission, Percentage: pct}, nil
}

func (s *Service) percentage(ctx context.Context, tenantID string) (decimal.Decimal, error) {
	pct, err := s.Tenants.GetCommissionPercentage(ctx, tenantID)
	if errors.Is(err, models.ErrNotFound) {
		if s.DefaultPercentage == nil {
			return calculator.DefaultCommissionPercentage, nil
		}
		return *s.DefaultPercentage, nil
	}
	return pct, err
}
