package processors

import (
	"context"
	"fmt"
	"log"
	"strings"

	"edudebt_collection/internal/models"
	"edudebt_collection/internal/ports"
)

// BaseProcessor carries the import log shared by every processor.
type BaseProcessor struct {
	Log ports.ImportLog
}

type DepProvider interface {
	Missing() []string
}

func (b *BaseProcessor) Missing() []string {
	if b == nil || b.Log == nil {
		return []string{"import log"}
	}
	return nil
}

func CheckDeps[T DepProvider](p T) error {
	if missing := p.Missing(); len(missing) > 0 {
		return fmt.Errorf("%s not available", strings.Join(missing, ", "))
	}
	return nil
}

// item writes the per-row outcome; failures to log are reported and swallowed.
func (b *BaseProcessor) item(ctx context.Context, modelType, modelID string, row map[string]string, status, errs string) {
	err := b.Log.LogItem(ctx, models.ImportItem{
		ImportRecordID: ports.ValueFrom(ctx, ports.CtxImportRecordID),
		ModelType:      modelType,
		ModelID:        modelID,
		Payload:        mustJSON(row),
		Status:         status,
		Errors:         errs,
	})
	if err != nil {
		log.Printf("[PROC][%s][LOG][ERR] id=%s status=%s err=%v", modelType, modelID, status, err)
	}
}

func (b *BaseProcessor) done(ctx context.Context, modelType string, row map[string]string, modelID string, warnings []string) {
	b.item(ctx, modelType, modelID, row, models.ImportStatusDone, strings.Join(warnings, "; "))
}

func (b *BaseProcessor) failed(ctx context.Context, modelType string, row map[string]string, modelID, msg string) {
	b.item(ctx, modelType, modelID, row, models.ImportStatusFailed, msg)
}

// ownDebt fails with models.ErrNotFound when the import is pinned to a tenant
// and the debt belongs to another one.
func ownDebt(ctx context.Context, debts ports.DebtStore, debtID string) error {
	tenant := ports.ValueFrom(ctx, ports.CtxImportTenantID)
	if tenant == "" {
		return nil
	}
	d, err := debts.GetDebt(ctx, debtID)
	if err != nil {
		return err
	}
	if d.TenantID != tenant {
		return fmt.Errorf("debt %s: %w", debtID, models.ErrNotFound)
	}
	return nil
}
