package ports

import (
	"context"
	"time"

	"edudebt_collection/internal/models"

	"github.com/shopspring/decimal"
)

// DebtStore persists debts. Writers pass the version they read; a stale
// version fails with models.ErrVersionConflict.
type DebtStore interface {
	GetDebt(ctx context.Context, id string) (models.Debt, error)
	CreateDebt(ctx context.Context, d models.Debt) (models.Debt, error)
	UpdateDebtStage(ctx context.Context, id string, stage models.Stage, expectedVersion int64) error
	MarkOverdue(ctx context.Context, id string, expectedVersion int64) error
	MarkPaid(ctx context.Context, id string, commission decimal.Decimal, expectedVersion int64) error
	ListOverdueDebtsForTenant(ctx context.Context, tenantID string) ([]models.Debt, error)
	ListPendingDueBefore(ctx context.Context, asOf time.Time) ([]models.Debt, error)
}

// AttemptStore is append-only.
type AttemptStore interface {
	AppendAttempt(ctx context.Context, a models.Attempt) error
	ListAttempts(ctx context.Context, debtID string) ([]models.Attempt, error)
}

// AgreementStore saves an agreement together with the owning debt's stage
// change in one atomic write.
type AgreementStore interface {
	SaveAgreement(ctx context.Context, debtID string, a models.Agreement, next models.Stage, expectedVersion int64) error
	FindAgreement(ctx context.Context, debtID string) (models.Agreement, error)
}

type TenantConfig interface {
	GetCommissionPercentage(ctx context.Context, tenantID string) (decimal.Decimal, error)
}

type Directory interface {
	GetDebtor(ctx context.Context, id string) (models.Debtor, error)
	GetSchool(ctx context.Context, id string) (models.School, error)
}

// Locker serializes work on a single key (a debt id).
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type EventSink interface {
	Record(ctx context.Context, e models.Event) error
}

// ImportLog keeps the bookkeeping of bulk imports.
type ImportLog interface {
	CreateRecord(ctx context.Context, rec models.ImportRecord) (string, error)
	FindRecord(ctx context.Context, id string) (models.ImportRecord, error)
	SetStatus(ctx context.Context, id, status string, count int, errs string) error
	LogItem(ctx context.Context, item models.ImportItem) error
}

type EventHistory interface {
	ListByDebt(ctx context.Context, debtID string, limit int) ([]models.Event, error)
}

// DebtorWriter upserts debtors keyed by document.
type DebtorWriter interface {
	UpsertDebtor(ctx context.Context, d models.Debtor) (models.Debtor, error)
}
