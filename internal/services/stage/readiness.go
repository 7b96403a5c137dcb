package stage

import "edudebt_collection/internal/models"

// LegalActionThreshold is the number of administrative attempts required
// before a judicial petition may be generated.
const LegalActionThreshold = 2

func AdministrativeAttempts(attempts []models.Attempt) int {
	n := 0
	for _, a := range attempts {
		switch a.Kind {
		case models.AttemptAdministrative:
			n++
		case models.AttemptJudicialPreparation:
		}
	}
	return n
}

func IsReadyForLegalAction(attempts []models.Attempt) bool {
	return AdministrativeAttempts(attempts) >= LegalActionThreshold
}
