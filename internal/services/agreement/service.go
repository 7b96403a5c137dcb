package agreement

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
)

type Service struct {
	Debts      ports.DebtStore
	Agreements ports.AgreementStore
	Locks      ports.Locker
	Events     ports.EventSink
	Builder    *Builder
}

type Request struct {
	DebtID       string
	Installments int
	EvaluatedAt  time.Time
	Approved     bool
	Actor        string
}

// Create builds and persists the agreement for a debt in negotiation and moves
// it to AgreementMade in the same write. Retrying with the same installment
// count returns the stored agreement.
func (s *Service) Create(ctx context.Context, req Request) (models.Agreement, error) {
	if !calculator.ValidInstallmentCount(req.Installments) {
		return models.Agreement{}, fmt.Errorf("%w: %d", models.ErrInvalidInstallmentCount, req.Installments)
	}
	if req.EvaluatedAt.IsZero() {
		req.EvaluatedAt = s.Builder.now()
	}

	unlock, err := s.Locks.Lock(ctx, req.DebtID)
	if err != nil {
		return models.Agreement{}, err
	}
	defer unlock()

	log.Printf("[AGR][START] debt=%s installments=%d actor=%s", req.DebtID, req.Installments, req.Actor)

	debt, err := s.Debts.GetDebt(ctx, req.DebtID)
	if err != nil {
		return models.Agreement{}, err
	}

	existing, err := s.Agreements.FindAgreement(ctx, req.DebtID)
	switch {
	case err == nil:
		if existing.InstallmentCount == req.Installments {
			log.Printf("[AGR][DONE] debt=%s protocol=%s (existing)", req.DebtID, existing.Protocol)
			return existing, nil
		}
		return models.Agreement{}, fmt.Errorf("debt %s: %w (protocol %s)", req.DebtID, models.ErrAgreementExists, existing.Protocol)
	case errors.Is(err, models.ErrNotFound):
	default:
		return models.Agreement{}, err
	}

	out, err := stage.Apply(stage.FactsOf(debt, false), stage.EventAgreementCreated)
	if err != nil {
		log.Printf("[AGR][REJECT] debt=%s err=%v", req.DebtID, err)
		return models.Agreement{}, err
	}

	agr, err := s.Builder.Build(debt, req.Installments, req.EvaluatedAt)
	if err != nil {
		return models.Agreement{}, err
	}
	agr.Approved = req.Approved
	agr.CreatedBy = req.Actor

	if err := s.Agreements.SaveAgreement(ctx, debt.ID, agr, out.Stage, debt.Version); err != nil {
		log.Printf("[AGR][ERR] debt=%s err=%v", req.DebtID, err)
		return models.Agreement{}, err
	}

	s.record(ctx, models.Event{
		Type: models.EventAgreementCreated, DebtID: debt.ID, TenantID: debt.TenantID, Actor: req.Actor,
		Data: map[string]string{
			"protocol":          agr.Protocol,
			"installments":      fmt.Sprint(agr.InstallmentCount),
			"installment_value": agr.InstallmentValue.StringFixed(2),
		},
	})
	s.record(ctx, models.Event{
		Type: models.EventStageChanged, DebtID: debt.ID, TenantID: debt.TenantID, Actor: req.Actor,
		From: debt.StageOrEmpty(), To: out.Stage,
	})

	log.Printf("[AGR][DONE] debt=%s protocol=%s installment=%s", req.DebtID, agr.Protocol, agr.InstallmentValue.StringFixed(2))
	return agr, nil
}

// Quotes lists every installment option for a debt at eval.
func (s *Service) Quotes(ctx context.Context, debtID string, eval time.Time) ([]calculator.Quote, error) {
	debt, err := s.Debts.GetDebt(ctx, debtID)
	if err != nil {
		return nil, err
	}
	updated, err := s.Builder.Calc.UpdatedValue(debt.Amount, debt.DueDate, eval)
	if err != nil {
		return nil, err
	}
	return s.Builder.Calc.Quotes(updated)
}

func (s *Service) record(ctx context.Context, e models.Event) {
	if s.Events == nil {
		return
	}
	if e.At.IsZero() {
		e.At = s.Builder.now().UTC()
	}
	if err := s.Events.Record(ctx, e); err != nil {
		log.Printf("[AGR][EVENT][ERR] type=%s debt=%s err=%v", e.Type, e.DebtID, err)
	}
}
