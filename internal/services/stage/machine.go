package stage

import (
	"fmt"

	"edudebt_collection/internal/models"
)

type Event string

const (
	EventContactLogged    Event = "contact_logged"
	EventAgreementCreated Event = "agreement_created"
	EventDebtorDeclined   Event = "debtor_declined"
	EventAdvance          Event = "advance"
	EventRetreat          Event = "retreat"
	EventPaymentReceived  Event = "payment_received"
)

// Facts is everything the guards look at.
type Facts struct {
	Status       models.Status
	Stage        models.Stage
	HasAgreement bool
}

func FactsOf(d models.Debt, hasAgreement bool) Facts {
	return Facts{Status: d.Status, Stage: d.StageOrEmpty(), HasAgreement: hasAgreement}
}

type Outcome struct {
	Status  models.Status
	Stage   models.Stage
	Changed bool
}

func rejected(f Facts, ev Event, why string) error {
	return fmt.Errorf("%w: %s from %s/%s: %s", models.ErrStageTransitionRejected, ev, f.Status, f.Stage, why)
}

// Apply returns the state that results from ev. Stepping past either end of
// the canonical order is a no-op, not an error. Entering AgreementMade always
// requires an agreement on record.
func Apply(f Facts, ev Event) (Outcome, error) {
	same := Outcome{Status: f.Status, Stage: f.Stage}
	moved := func(to models.Stage) (Outcome, error) {
		return Outcome{Status: f.Status, Stage: to, Changed: to != f.Stage}, nil
	}

	switch f.Status {
	case models.StatusPaid:
		return same, rejected(f, ev, "debt is paid, stage is frozen")
	case models.StatusPending:
		if ev == EventPaymentReceived {
			return Outcome{Status: models.StatusPaid, Stage: f.Stage, Changed: true}, nil
		}
		return same, rejected(f, ev, "debt is not in collection")
	case models.StatusOverdue:
	default:
		return same, rejected(f, ev, "unknown status")
	}

	if !f.Stage.Valid() {
		return same, rejected(f, ev, "debt has no collection stage")
	}

	switch ev {
	case EventContactLogged:
		if f.Stage == models.StageAwaitingContact {
			return moved(models.StageInNegotiation)
		}
		return same, nil

	case EventAgreementCreated:
		if f.Stage != models.StageInNegotiation {
			return same, rejected(f, ev, "agreements are only made while negotiating")
		}
		return moved(models.StageAgreementMade)

	case EventDebtorDeclined:
		if f.Stage != models.StageInNegotiation {
			return same, rejected(f, ev, "only a debtor in negotiation can decline")
		}
		return moved(models.StagePaymentRefused)

	case EventAdvance:
		switch f.Stage {
		case models.StageAwaitingContact:
			return moved(models.StageInNegotiation)
		case models.StageInNegotiation:
			if !f.HasAgreement {
				return same, rejected(f, ev, "no agreement on record")
			}
			return moved(models.StageAgreementMade)
		case models.StageAgreementMade, models.StagePaymentRefused:
			return moved(models.StageJudicialPreparation)
		case models.StageJudicialPreparation:
			return same, nil
		}

	case EventRetreat:
		switch f.Stage {
		case models.StageAwaitingContact:
			return same, nil
		case models.StageInNegotiation:
			return moved(models.StageAwaitingContact)
		case models.StageAgreementMade, models.StagePaymentRefused:
			return moved(models.StageInNegotiation)
		case models.StageJudicialPreparation:
			if !f.HasAgreement {
				return same, rejected(f, ev, "no agreement on record")
			}
			return moved(models.StageAgreementMade)
		}

	case EventPaymentReceived:
		return Outcome{Status: models.StatusPaid, Stage: f.Stage, Changed: true}, nil
	}

	return same, rejected(f, ev, "unknown event")
}

// Allowed reports whether ev would move the debt. Used to enable stepper
// controls.
func Allowed(f Facts, ev Event) bool {
	out, err := Apply(f, ev)
	return err == nil && out.Changed
}
