package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusOverdue Status = "overdue"
	StatusPaid    Status = "paid"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusOverdue, StatusPaid:
		return true
	}
	return false
}

// Stage is the administrative collection position of an overdue debt.
type Stage string

const (
	StageAwaitingContact     Stage = "awaiting_contact"
	StageInNegotiation       Stage = "in_negotiation"
	StageAgreementMade       Stage = "agreement_made"
	StagePaymentRefused      Stage = "payment_refused"
	StageJudicialPreparation Stage = "judicial_preparation"
)

// StageOrder is the canonical ordering walked by the manual stepper.
// PaymentRefused is deliberately absent.
var StageOrder = [...]Stage{
	StageAwaitingContact,
	StageInNegotiation,
	StageAgreementMade,
	StageJudicialPreparation,
}

func (s Stage) Valid() bool {
	switch s {
	case StageAwaitingContact, StageInNegotiation, StageAgreementMade,
		StagePaymentRefused, StageJudicialPreparation:
		return true
	}
	return false
}

func (s Stage) Ptr() *Stage { return &s }

// Debt is one billing obligation owed by a guardian to a school.
type Debt struct {
	ID         string           `json:"id"`
	TenantID   string           `json:"tenant_id"`
	DebtorID   *string          `json:"debtor_id,omitempty"`
	SchoolID   *string          `json:"school_id,omitempty"`
	Number     string           `json:"number"`
	Amount     decimal.Decimal  `json:"amount"`
	DueDate    time.Time        `json:"due_date"`
	Status     Status           `json:"status"`
	Stage      *Stage           `json:"stage,omitempty"`
	Commission *decimal.Decimal `json:"commission,omitempty"`
	RiskScore  *int             `json:"risk_score,omitempty"`
	Version    int64            `json:"version"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// InCollection reports whether the debt carries a live collection stage.
func (d Debt) InCollection() bool {
	return d.Status == StatusOverdue && d.Stage != nil
}

func (d Debt) StageOrEmpty() Stage {
	if d.Stage == nil {
		return ""
	}
	return *d.Stage
}
