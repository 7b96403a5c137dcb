package agreement

import (
	"fmt"
	"time"

	"edudebt_collection/internal/models"
	"edudebt_collection/internal/services/calculator"

	"github.com/google/uuid"
)

// Builder turns a debt and a chosen installment count into an agreement.
// It does not touch any store.
type Builder struct {
	Calc      calculator.Config
	Protocols *ProtocolGenerator
	Now       func() time.Time
}

func NewBuilder(calc calculator.Config) *Builder {
	return &Builder{Calc: calc, Protocols: NewProtocolGenerator(), Now: time.Now}
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *Builder) Build(debt models.Debt, installments int, eval time.Time) (models.Agreement, error) {
	if !calculator.ValidInstallmentCount(installments) {
		return models.Agreement{}, fmt.Errorf("%w: %d", models.ErrInvalidInstallmentCount, installments)
	}
	updated, err := b.Calc.UpdatedValue(debt.Amount, debt.DueDate, eval)
	if err != nil {
		return models.Agreement{}, err
	}
	q, err := b.Calc.Quote(updated, installments)
	if err != nil {
		return models.Agreement{}, err
	}

	created := b.now().UTC()
	return models.Agreement{
		ID:               uuid.NewString(),
		DebtID:           debt.ID,
		InstallmentCount: installments,
		InstallmentValue: q.InstallmentValue,
		UpdatedValue:     q.UpdatedValue,
		TotalValue:       q.TotalValue,
		Protocol:         b.Protocols.Next(debt.ID, created),
		CreatedAt:        created,
	}, nil
}
