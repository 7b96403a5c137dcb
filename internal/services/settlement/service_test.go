package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"edudebt_collection/internal/adapters/events"
	"edudebt_collection/internal/models"
	"edudebt_collection/internal/repository/locks"
	"edudebt_collection/internal/repository/memory"

	"github.com/shopspring/decimal"
)

func newService(t *testing.T, status models.Status) (*Service, *memory.Store, *events.Recorder, models.Debt) {
	t.Helper()
	store := memory.NewStore()
	d := models.Debt{
		TenantID: "tenant-1",
		Number:   "INV-1",
		Amount:   decimal.RequireFromString("500"),
		DueDate:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:   status,
	}
	if status == models.StatusOverdue {
		d.Stage = models.StageAgreementMade.Ptr()
	}
	debt, err := store.CreateDebt(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	rec := &events.Recorder{}
	return &Service{Debts: store, Tenants: store, Locks: locks.NewLocal(), Events: rec}, store, rec, debt
}

func TestSettleStoresCommissionOnce(t *testing.T) {
	svc, store, rec, debt := newService(t, models.StatusOverdue)
	store.SetCommissionPercentage("tenant-1", decimal.NewFromInt(10))

	res, err := svc.Settle(context.Background(), debt.ID, decimal.RequireFromString("500"), "ops")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Commission.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("commission: %s", res.Commission)
	}
	if res.Debt.Status != models.StatusPaid || res.Debt.StageOrEmpty() != models.StageAgreementMade {
		t.Fatalf("debt after settle: %+v", res.Debt)
	}

	store.SetCommissionPercentage("tenant-1", decimal.NewFromInt(15))
	again, err := svc.Settle(context.Background(), debt.ID, decimal.RequireFromString("500"), "ops")
	if err != nil {
		t.Fatal(err)
	}
	if !again.Replayed || !again.Commission.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("commission changed after percentage update: %+v", again)
	}
	if len(rec.OfType(models.EventDebtSettled)) != 1 {
		t.Fatalf("expected one settled event, got %d", len(rec.Events()))
	}
}

func TestSettleDefaultsToTenPercent(t *testing.T) {
	svc, _, _, debt := newService(t, models.StatusOverdue)

	res, err := svc.Settle(context.Background(), debt.ID, decimal.RequireFromString("1000"), "ops")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Commission.Equal(decimal.RequireFromString("100")) || !res.Percentage.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("default commission: %+v", res)
	}
}

func TestSettleConfiguredDefault(t *testing.T) {
	svc, _, _, debt := newService(t, models.StatusOverdue)
	five := decimal.NewFromInt(5)
	svc.DefaultPercentage = &five

	res, err := svc.Settle(context.Background(), debt.ID, decimal.RequireFromString("200"), "ops")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Commission.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("commission: %s", res.Commission)
	}
}

func TestSettleZeroDefaultIsHonoured(t *testing.T) {
	svc, _, _, debt := newService(t, models.StatusOverdue)
	zero := decimal.Zero
	svc.DefaultPercentage = &zero

	res, err := svc.Settle(context.Background(), debt.ID, decimal.RequireFromString("500"), "ops")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Commission.IsZero() || !res.Percentage.IsZero() {
		t.Fatalf("zero default: pct=%s commission=%s", res.Percentage, res.Commission)
	}
}

func TestSettlePendingDebtOwesNoCommission(t *testing.T) {
	svc, store, _, debt := newService(t, models.StatusPending)
	store.SetCommissionPercentage("tenant-1", decimal.NewFromInt(10))

	res, err := svc.Settle(context.Background(), debt.ID, decimal.RequireFromString("500"), "debtor")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Commission.IsZero() || res.Debt.Status != models.StatusPaid || res.Debt.Stage != nil {
		t.Fatalf("pending settle: %+v", res)
	}
}

func TestSettleRejectsNegativeAmount(t *testing.T) {
	svc, store, _, debt := newService(t, models.StatusOverdue)

	_, err := svc.Settle(context.Background(), debt.ID, decimal.RequireFromString("-1"), "ops")
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	stored, _ := store.GetDebt(context.Background(), debt.ID)
	if stored.Status != models.StatusOverdue {
		t.Fatalf("status changed: %s", stored.Status)
	}
}

func TestSettleRejectsOutOfRangePercentage(t *testing.T) {
	svc, store, _, debt := newService(t, models.StatusOverdue)
	store.SetCommissionPercentage("tenant-1", decimal.NewFromInt(150))

	if _, err := svc.Settle(context.Background(), debt.ID, decimal.RequireFromString("100"), "ops"); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSettleStoreUnavailable(t *testing.T) {
	svc, store, _, debt := newService(t, models.StatusOverdue)
	store.Fail = errors.New("connection reset")

	if _, err := svc.Settle(context.Background(), debt.ID, decimal.RequireFromString("100"), "ops"); !errors.Is(err, models.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
