package models

import "time"

type AttemptKind string

const (
	AttemptAdministrative      AttemptKind = "administrative"
	AttemptJudicialPreparation AttemptKind = "judicial_preparation"
)

func (k AttemptKind) Valid() bool {
	switch k {
	case AttemptAdministrative, AttemptJudicialPreparation:
		return true
	}
	return false
}

type Channel string

const (
	ChannelWhatsApp          Channel = "whatsapp"
	ChannelEmail             Channel = "email"
	ChannelPhoneCall         Channel = "phone_call"
	ChannelPetitionGenerated Channel = "petition_generated"
)

// KindFor returns the only attempt kind a channel may be logged under.
func (c Channel) KindFor() (AttemptKind, bool) {
	switch c {
	case ChannelWhatsApp, ChannelEmail, ChannelPhoneCall:
		return AttemptAdministrative, true
	case ChannelPetitionGenerated:
		return AttemptJudicialPreparation, true
	}
	return "", false
}

// Attempt is one logged contact or judicial-preparation event. Never mutated.
type Attempt struct {
	ID      string      `json:"id"`
	DebtID  string      `json:"debt_id"`
	At      time.Time   `json:"at"`
	Kind    AttemptKind `json:"kind"`
	Channel Channel     `json:"channel"`
	Notes   string      `json:"notes,omitempty"`
	Author  string      `json:"author"`
}
