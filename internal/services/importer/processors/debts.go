package processors

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"edudebt_collection/internal/models"
	"edudebt_collection/internal/ports"

	"github.com/shopspring/decimal"
)

// DebtsProcessor imports billed invoices. A row whose due date has already
// passed enters collection directly as Overdue / AwaitingContact.
type DebtsProcessor struct {
	*BaseProcessor
	Debts   ports.DebtStore
	Debtors ports.DebtorWriter
	Now     func() time.Time
}

func (p *DebtsProcessor) Type() string { return "import_debts" }

func (p *DebtsProcessor) Missing() []string {
	missing := p.BaseProcessor.Missing()
	if p.Debts == nil {
		missing = append(missing, "debt store")
	}
	return missing
}

func (p *DebtsProcessor) today() time.Time {
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (p *DebtsProcessor) ProcessBatch(ctx context.Context, batch []map[string]string) error {
	if err := CheckDeps(p); err != nil {
		return err
	}

	tenantID := ports.ValueFrom(ctx, ports.CtxImportTenantID)
	log.Printf("[PROC][debts][START] rows=%d import_record_id=%s tenant=%s",
		len(batch), ports.ValueFrom(ctx, ports.CtxImportRecordID), tenantID)

	today := p.today()
	success, failed := 0, 0

	for i, m := range batch {
		number := strings.TrimSpace(firstNonEmpty(m["number"], m["debt_number"], m["invoice"]))
		rowTenant := strings.TrimSpace(m["tenant_id"])
		if tenantID != "" && rowTenant != "" && rowTenant != tenantID {
			failed++
			p.failed(ctx, "debts", m, number, "tenant_id "+rowTenant+" does not match import tenant "+tenantID)
			continue
		}
		debt, warnings, err := p.buildDebt(ctx, m, firstNonEmpty(rowTenant, tenantID), number, today)
		if err != nil {
			failed++
			p.failed(ctx, "debts", m, number, err.Error())
			continue
		}

		created, err := p.Debts.CreateDebt(ctx, debt)
		if err != nil {
			failed++
			log.Printf("[PROC][debts][ERR] row=%d number=%s err=%v", i, number, err)
			p.failed(ctx, "debts", m, number, err.Error())
			continue
		}

		success++
		p.done(ctx, "debts", m, created.ID, warnings)
	}

	log.Printf("[PROC][debts][DONE] total=%d success=%d failed=%d", len(batch), success, failed)
	return nil
}

func (p *DebtsProcessor) buildDebt(ctx context.Context, m map[string]string, tenantID, number string, today time.Time) (models.Debt, []string, error) {
	var warnings []string

	if tenantID == "" {
		return models.Debt{}, nil, fmt.Errorf("missing tenant_id")
	}
	if number == "" {
		return models.Debt{}, nil, fmt.Errorf("missing number")
	}

	amount, err := decimal.NewFromString(normalizeAmount(m["amount"]))
	if err != nil {
		return models.Debt{}, nil, fmt.Errorf("bad amount %q", m["amount"])
	}
	if amount.IsNegative() {
		return models.Debt{}, nil, fmt.Errorf("negative amount %s", amount)
	}

	due := parseDateStrict(m["due_date"])
	if due == nil {
		return models.Debt{}, nil, fmt.Errorf("bad due_date %q", m["due_date"])
	}

	d := models.Debt{
		TenantID: tenantID,
		Number:   number,
		Amount:   amount,
		DueDate:  *due,
		Status:   models.StatusPending,
		SchoolID: nullIfEmpty(m["school_id"]),
	}
	if due.Before(today) {
		d.Status = models.StatusOverdue
		d.Stage = models.StageAwaitingContact.Ptr()
	}

	if raw := strings.TrimSpace(m["risk_score"]); raw != "" {
		if score, err := strconv.Atoi(raw); err == nil && score >= 0 && score <= 100 {
			d.RiskScore = &score
		} else {
			warnings = append(warnings, "risk_score ignored: "+raw)
		}
	}

	if doc := strings.TrimSpace(m["debtor_document"]); doc != "" && p.Debtors != nil {
		debtor, err := p.Debtors.UpsertDebtor(ctx, models.Debtor{
			FullName: strings.TrimSpace(m["debtor_name"]),
			Document: doc,
			Email:    strings.TrimSpace(m["debtor_email"]),
			Phone:    strings.TrimSpace(m["debtor_phone"]),
		})
		if err != nil {
			warnings = append(warnings, "debtor upsert failed: "+err.Error())
		} else {
			d.DebtorID = &debtor.ID
		}
	} else if id := nullIfEmpty(m["debtor_id"]); id != nil {
		d.DebtorID = id
	} else {
		warnings = append(warnings, "no debtor -> debtor_id=NULL")
	}

	return d, warnings, nil
}
