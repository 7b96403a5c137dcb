package overdue

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

var today = time.Date(2024, 8, 9, 3, 0, 0, 0, time.UTC)

func seed(t *testing.T, store *memory.Store, id string, due time.Time, status models.Status) {
	t.Helper()
	_, err := store.CreateDebt(context.Background(), models.Debt{
		ID: id, TenantID: "t1", Number: id, Amount: decimal.NewFromInt(100), DueDate: due, Status: status,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSweepMarksPastDueDebts(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "late", time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC), models.StatusPending)
	seed(t, store, "due-today", time.Date(2024, 8, 9, 0, 0, 0, 0, time.UTC), models.StatusPending)
	seed(t, store, "future", time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC), models.StatusPending)
	seed(t, store, "paid", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), models.StatusPaid)

	rec := &events.Recorder{}
	sw := &Sweeper{Debts: store, Locks: locks.NewLocal(), Events: rec, Now: func() time.Time { return today }}

	rep, err := sw.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Marked != 1 {
		t.Fatalf("report: %+v", rep)
	}

	late, _ := store.GetDebt(context.Background(), "late")
	if late.Status != models.StatusOverdue || late.StageOrEmpty() != models.StageAwaitingContact {
		t.Fatalf("late debt: %+v", late)
	}
	for _, id := range []string{"due-today", "future"} {
		d, _ := store.GetDebt(context.Background(), id)
		if d.Status != models.StatusPending || d.Stage != nil {
			t.Fatalf("%s should stay pending: %+v", id, d)
		}
	}
	paid, _ := store.GetDebt(context.Background(), "paid")
	if paid.Status != models.StatusPaid {
		t.Fatalf("paid debt touched: %+v", paid)
	}
	if got := rec.OfType(models.EventDebtOverdue); len(got) != 1 || got[0].DebtID != "late" {
		t.Fatalf("events: %+v", got)
	}

	rep, err = sw.Run(context.Background())
	if err != nil || rep.Marked != 0 {
		t.Fatalf("second sweep: %+v %v", rep, err)
	}
}

func TestSweepStoreUnavailable(t *testing.T) {
	store := memory.NewStore()
	store.Fail = errors.New("down")
	sw := &Sweeper{Debts: store, Locks: locks.NewLocal(), Now: func() time.Time { return today }}

	if _, err := sw.Run(context.Background()); !errors.Is(err, models.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&Sweeper{}, "not a schedule")
	if err := s.Start(); err == nil {
		t.Fatal("expected schedule parse error")
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(&Sweeper{Debts: memory.NewStore(), Locks: locks.NewLocal()}, "")
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
