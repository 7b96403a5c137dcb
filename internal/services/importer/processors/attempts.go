package processors

import (
	"context"
	"log"
	"strings"

	"edudebt_collection/internal/models"
	"edudebt_collection/internal/ports"
	"edudebt_collection/internal/services/negotiation"
)

// AttemptLogger is the part of the negotiation service the attempt import needs.
type AttemptLogger interface {
	LogAttempt(ctx context.Context, debtID string, in negotiation.AttemptInput) (models.Attempt, models.Debt, error)
}

// AttemptsProcessor replays historical contact attempts. Each row goes through
// the same path as a live attempt, so stage changes apply as usual.
type AttemptsProcessor struct {
	*BaseProcessor
	Debts    ports.DebtStore
	Attempts AttemptLogger
}

func (p *AttemptsProcessor) Type() string { return "import_attempts" }

func (p *AttemptsProcessor) Missing() []string {
	missing := p.BaseProcessor.Missing()
	if p.Debts == nil {
		missing = append(missing, "debt store")
	}
	if p.Attempts == nil {
		missing = append(missing, "negotiation service")
	}
	return missing
}

func (p *AttemptsProcessor) ProcessBatch(ctx context.Context, batch []map[string]string) error {
	if err := CheckDeps(p); err != nil {
		return err
	}

	log.Printf("[PROC][attempts][START] rows=%d import_record_id=%s", len(batch), ports.ValueFrom(ctx, ports.CtxImportRecordID))

	success, failed := 0, 0
	for i, m := range batch {
		debtID := strings.TrimSpace(m["debt_id"])
		if debtID == "" {
			failed++
			p.failed(ctx, "attempts", m, "", "missing debt_id")
			continue
		}
		if err := ownDebt(ctx, p.Debts, debtID); err != nil {
			failed++
			log.Printf("[PROC][attempts][ERR] row=%d debt=%s err=%v", i, debtID, err)
			p.failed(ctx, "attempts", m, debtID, err.Error())
			continue
		}

		in := negotiation.AttemptInput{
			ID:      strings.TrimSpace(m["attempt_id"]),
			Channel: models.Channel(strings.ToLower(strings.TrimSpace(m["channel"]))),
			Notes:   strings.TrimSpace(m["notes"]),
			Author:  firstNonEmpty(m["author"], "import"),
		}
		var warnings []string
		if at := parseTimeLoose(m["at"]); at != nil {
			in.At = *at
		} else if strings.TrimSpace(m["at"]) != "" {
			warnings = append(warnings, "bad at "+m["at"]+" -> now")
		}

		a, _, err := p.Attempts.LogAttempt(ctx, debtID, in)
		if err != nil {
			failed++
			log.Printf("[PROC][attempts][ERR] row=%d debt=%s err=%v", i, debtID, err)
			p.failed(ctx, "attempts", m, debtID, err.Error())
			continue
		}

		success++
		p.done(ctx, "attempts", m, a.ID, warnings)
	}

	log.Printf("[PROC][attempts][DONE] total=%d success=%d failed=%d", len(batch), success, failed)
	return nil
}
