package negotiation

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

	"github.com/google/uuid"
)

// Service owns the negotiation side of a case: the read-time aggregate,
// contact attempts, petitions and the manual stage stepper.
type Service struct {
	Debts      ports.DebtStore
	Attempts   ports.AttemptStore
	Agreements ports.AgreementStore
	Directory  ports.Directory
	Locks      ports.Locker
	Events     ports.EventSink
	Calc       calculator.Config
	Now        func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) record(ctx context.Context, e models.Event) {
	if s.Events == nil {
		return
	}
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}
	if err := s.Events.Record(ctx, e); err != nil {
		log.Printf("[NEG][EVENT][ERR] type=%s debt=%s err=%v", e.Type, e.DebtID, err)
	}
}

func (s *Service) hasAgreement(ctx context.Context, debtID string) (bool, error) {
	_, err := s.Agreements.FindAgreement(ctx, debtID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, models.ErrNotFound):
		return false, nil
	}
	return false, err
}

// AttemptInput describes one contact. ID is optional; passing the same ID on
// retry makes the call idempotent.
type AttemptInput struct {
	ID      string
	Channel models.Channel
	Notes   string
	Author  string
	At      time.Time
}

// LogAttempt appends an administrative contact and applies "contact logged"
// to the stage. Petitions go through RecordPetition.
func (s *Service) LogAttempt(ctx context.Context, debtID string, in AttemptInput) (models.Attempt, models.Debt, error) {
	kind, ok := in.Channel.KindFor()
	if !ok {
		return models.Attempt{}, models.Debt{}, fmt.Errorf("%w: unknown channel %q", models.ErrInvalidInput, in.Channel)
	}
	if kind != models.AttemptAdministrative {
		return models.Attempt{}, models.Debt{}, fmt.Errorf("%w: channel %q is not an administrative contact", models.ErrInvalidInput, in.Channel)
	}
	if in.Author == "" {
		return models.Attempt{}, models.Debt{}, fmt.Errorf("%w: attempt author is required", models.ErrInvalidInput)
	}

	unlock, err := s.Locks.Lock(ctx, debtID)
	if err != nil {
		return models.Attempt{}, models.Debt{}, err
	}
	defer unlock()

	debt, err := s.Debts.GetDebt(ctx, debtID)
	if err != nil {
		return models.Attempt{}, models.Debt{}, err
	}
	out, err := stage.Apply(stage.FactsOf(debt, false), stage.EventContactLogged)
	if err != nil {
		return models.Attempt{}, models.Debt{}, err
	}

	a := s.newAttempt(debtID, kind, in)
	log.Printf("[NEG][ATTEMPT][START] debt=%s channel=%s author=%s", debtID, a.Channel, a.Author)
	if err := s.Attempts.AppendAttempt(ctx, a); err != nil {
		log.Printf("[NEG][ATTEMPT][ERR] debt=%s err=%v", debtID, err)
		return models.Attempt{}, models.Debt{}, err
	}
	s.record(ctx, models.Event{
		Type: models.EventAttemptLogged, DebtID: debtID, TenantID: debt.TenantID, Actor: a.Author,
		Data: map[string]string{"attempt_id": a.ID, "channel": string(a.Channel)},
	})

	if out.Changed {
		debt, err = s.moveStage(ctx, debt, out.Stage, a.Author)
		if err != nil {
			return a, models.Debt{}, err
		}
	}
	log.Printf("[NEG][ATTEMPT][DONE] debt=%s attempt=%s stage=%s", debtID, a.ID, debt.StageOrEmpty())
	return a, debt, nil
}

// RecordPetition logs a generated judicial petition. Only cases that are
// ready for legal action may produce one.
func (s *Service) RecordPetition(ctx context.Context, debtID, author, notes string) (models.Attempt, error) {
	if author == "" {
		return models.Attempt{}, fmt.Errorf("%w: petition author is required", models.ErrInvalidInput)
	}

	unlock, err := s.Locks.Lock(ctx, debtID)
	if err != nil {
		return models.Attempt{}, err
	}
	defer unlock()

	debt, err := s.Debts.GetDebt(ctx, debtID)
	if err != nil {
		return models.Attempt{}, err
	}
	if !debt.InCollection() {
		return models.Attempt{}, fmt.Errorf("%w: debt %s is %s, not in collection",
			models.ErrStageTransitionRejected, debtID, debt.Status)
	}
	attempts, err := s.Attempts.ListAttempts(ctx, debtID)
	if err != nil {
		return models.Attempt{}, err
	}
	if !stage.IsReadyForLegalAction(attempts) {
		return models.Attempt{}, fmt.Errorf("%w: %d of %d administrative attempts logged",
			models.ErrStageTransitionRejected, stage.AdministrativeAttempts(attempts), stage.LegalActionThreshold)
	}

	a := s.newAttempt(debtID, models.AttemptJudicialPreparation, AttemptInput{
		Channel: models.ChannelPetitionGenerated,
		Notes:   notes,
		Author:  author,
	})
	if err := s.Attempts.AppendAttempt(ctx, a); err != nil {
		log.Printf("[NEG][PETITION][ERR] debt=%s err=%v", debtID, err)
		return models.Attempt{}, err
	}
	s.record(ctx, models.Event{
		Type: models.EventAttemptLogged, DebtID: debtID, TenantID: debt.TenantID, Actor: author,
		Data: map[string]string{"attempt_id": a.ID, "channel": string(a.Channel)},
	})
	log.Printf("[NEG][PETITION][DONE] debt=%s attempt=%s", debtID, a.ID)
	return a, nil
}

func (s *Service) newAttempt(debtID string, kind models.AttemptKind, in AttemptInput) models.Attempt {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	at := in.At
	if at.IsZero() {
		at = s.now()
	}
	return models.Attempt{
		ID:      id,
		DebtID:  debtID,
		At:      at.UTC(),
		Kind:    kind,
		Channel: in.Channel,
		Notes:   in.Notes,
		Author:  in.Author,
	}
}

func (s *Service) Advance(ctx context.Context, debtID, actor string) (models.Debt, error) {
	return s.step(ctx, debtID, actor, stage.EventAdvance)
}

func (s *Service) Retreat(ctx context.Context, debtID, actor string) (models.Debt, error) {
	return s.step(ctx, debtID, actor, stage.EventRetreat)
}

// Decline records the debtor's refusal to pay.
func (s *Service) Decline(ctx context.Context, debtID, actor string) (models.Debt, error) {
	return s.step(ctx, debtID, actor, stage.EventDebtorDeclined)
}

func (s *Service) step(ctx context.Context, debtID, actor string, ev stage.Event) (models.Debt, error) {
	unlock, err := s.Locks.Lock(ctx, debtID)
	if err != nil {
		return models.Debt{}, err
	}
	defer unlock()

	debt, err := s.Debts.GetDebt(ctx, debtID)
	if err != nil {
		return models.Debt{}, err
	}
	has, err := s.hasAgreement(ctx, debtID)
	if err != nil {
		return models.Debt{}, err
	}
	out, err := stage.Apply(stage.FactsOf(debt, has), ev)
	if err != nil {
		log.Printf("[NEG][STAGE][REJECT] debt=%s event=%s err=%v", debtID, ev, err)
		return models.Debt{}, err
	}
	if !out.Changed {
		return debt, nil
	}
	return s.moveStage(ctx, debt, out.Stage, actor)
}

func (s *Service) moveStage(ctx context.Context, debt models.Debt, to models.Stage, actor string) (models.Debt, error) {
	from := debt.StageOrEmpty()
	if err := s.Debts.UpdateDebtStage(ctx, debt.ID, to, debt.Version); err != nil {
		log.Printf("[NEG][STAGE][ERR] debt=%s %s->%s err=%v", debt.ID, from, to, err)
		return models.Debt{}, err
	}
	debt.Stage = to.Ptr()
	debt.Version++
	s.record(ctx, models.Event{
		Type: models.EventStageChanged, DebtID: debt.ID, TenantID: debt.TenantID,
		From: from, To: to, Actor: actor,
	})
	log.Printf("[NEG][STAGE] debt=%s %s->%s actor=%s", debt.ID, from, to, actor)
	return debt, nil
}
