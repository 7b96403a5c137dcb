package models

import "time"

type EventType string

const (
	EventDebtOverdue      EventType = "collection.debt.overdue"
	EventStageChanged     EventType = "collection.stage.changed"
	EventAttemptLogged    EventType = "collection.attempt.logged"
	EventAgreementCreated EventType = "collection.agreement.created"
	EventDebtSettled      EventType = "collection.debt.settled"
)

// Event is a lifecycle fact written to the journal and published to the broker.
type Event struct {
	Type     EventType         `json:"type" bson:"type"`
	DebtID   string            `json:"debt_id" bson:"debt_id"`
	TenantID string            `json:"tenant_id" bson:"tenant_id"`
	From     Stage             `json:"from,omitempty" bson:"from,omitempty"`
	To       Stage             `json:"to,omitempty" bson:"to,omitempty"`
	Actor    string            `json:"actor,omitempty" bson:"actor,omitempty"`
	Data     map[string]string `json:"data,omitempty" bson:"data,omitempty"`
	At       time.Time         `json:"at" bson:"at"`
}
