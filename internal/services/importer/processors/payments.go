package processors

import (
	"context"
	"log"
	"strings"

	"edudebt_collection/internal/ports"
	"edudebt_collection/internal/services/settlement"

	"github.com/shopspring/decimal"
)

// Settler is the part of the settlement service the payment import needs.
type Settler interface {
	Settle(ctx context.Context, debtID string, settled decimal.Decimal, actor string) (settlement.Result, error)
}

// PaymentsProcessor settles debts from a bank or school payment report. Each
// row is one full settlement; re-importing the same report is harmless since
// settling a paid debt returns the stored commission.
type PaymentsProcessor struct {
	*BaseProcessor
	Debts      ports.DebtStore
	Settlement Settler
}

func (p *PaymentsProcessor) Type() string { return "import_payments" }

func (p *PaymentsProcessor) Missing() []string {
	missing := p.BaseProcessor.Missing()
	if p.Debts == nil {
		missing = append(missing, "debt store")
	}
	if p.Settlement == nil {
		missing = append(missing, "settlement service")
	}
	return missing
}

func (p *PaymentsProcessor) ProcessBatch(ctx context.Context, batch []map[string]string) error {
	if err := CheckDeps(p); err != nil {
		return err
	}

	log.Printf("[PROC][payments][START] rows=%d import_record_id=%s", len(batch), ports.ValueFrom(ctx, ports.CtxImportRecordID))

	success, replayed, failed := 0, 0, 0
	for i, m := range batch {
		debtID := strings.TrimSpace(m["debt_id"])
		if debtID == "" {
			failed++
			p.failed(ctx, "payments", m, "", "missing debt_id")
			continue
		}
		if err := ownDebt(ctx, p.Debts, debtID); err != nil {
			failed++
			log.Printf("[PROC][payments][ERR] row=%d debt=%s err=%v", i, debtID, err)
			p.failed(ctx, "payments", m, debtID, err.Error())
			continue
		}

		raw := firstNonEmpty(m["amount"], m["settled_amount"])
		if raw == "" {
			failed++
			p.failed(ctx, "payments", m, debtID, "missing amount")
			continue
		}
		amount, err := decimal.NewFromString(normalizeAmount(raw))
		if err != nil {
			failed++
			p.failed(ctx, "payments", m, debtID, "bad amount "+raw)
			continue
		}

		res, err := p.Settlement.Settle(ctx, debtID, amount, firstNonEmpty(m["author"], "import"))
		if err != nil {
			failed++
			log.Printf("[PROC][payments][ERR] row=%d debt=%s err=%v", i, debtID, err)
			p.failed(ctx, "payments", m, debtID, err.Error())
			continue
		}

		var warnings []string
		if res.Replayed {
			replayed++
			warnings = append(warnings, "already paid, commission "+res.Commission.StringFixed(2))
		}
		success++
		p.done(ctx, "payments", m, debtID, warnings)
	}

	log.Printf("[PROC][payments][DONE] total=%d success=%d replayed=%d failed=%d", len(batch), success, replayed, failed)
	return nil
}
