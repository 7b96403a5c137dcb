package agreement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"edudebt_collection/internal/adapters/events"
	"edudebt_collection/internal/models"
	"edudebt_collection/internal/ports"
	"edudebt_collection/internal/repository/locks"
	"edudebt_collection/internal/repository/memory"
	"edudebt_collection/internal/services/calculator"

	"github.com/shopspring/decimal"
)

var now = time.Date(2024, time.July, 1, 10, 0, 0, 0, time.UTC)

type noLock struct{}

func (noLock) Lock(ctx context.Context, key string) (func(), error) { return func() {}, nil }

func setup(t *testing.T, amount string, st models.Stage) (*Service, *memory.Store, *events.Recorder, models.Debt) {
	t.Helper()
	store := memory.NewStore()
	debt, err := store.CreateDebt(context.Background(), models.Debt{
		TenantID: "tenant-1",
		Number:   "INV-9",
		Amount:   decimal.RequireFromString(amount),
		DueDate:  time.Date(2024, time.July, 10, 0, 0, 0, 0, time.UTC),
		Status:   models.StatusOverdue,
		Stage:    st.Ptr(),
	})
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(calculator.DefaultConfig())
	b.Now = func() time.Time { return now }
	rec := &events.Recorder{}
	return &Service{
		Debts:      store,
		Agreements: store,
		Locks:      locks.NewLocal(),
		Events:     rec,
		Builder:    b,
	}, store, rec, debt
}

func TestCreateAgreementThreeInstallments(t *testing.T) {
	svc, store, rec, debt := setup(t, "780.00", models.StageInNegotiation)

	agr, err := svc.Create(context.Background(), Request{DebtID: debt.ID, Installments: 3, EvaluatedAt: now, Approved: true, Actor: "agent"})
	if err != nil {
		t.Fatal(err)
	}
	if !agr.TotalValue.Equal(decimal.RequireFromString("827.74")) {
		t.Errorf("total: %s", agr.TotalValue)
	}
	if !agr.InstallmentValue.Equal(decimal.RequireFromString("275.91")) {
		t.Errorf("installment: %s", agr.InstallmentValue)
	}
	if agr.Protocol == "" || !agr.Approved || agr.CreatedBy != "agent" {
		t.Errorf("agreement: %+v", agr)
	}

	stored, _ := store.GetDebt(context.Background(), debt.ID)
	if stored.StageOrEmpty() != models.StageAgreementMade {
		t.Fatalf("stage: %s", stored.StageOrEmpty())
	}
	saved, err := store.FindAgreement(context.Background(), debt.ID)
	if err != nil || saved.Protocol != agr.Protocol {
		t.Fatalf("saved: %+v %v", saved, err)
	}
	if len(rec.OfType(models.EventAgreementCreated)) != 1 || len(rec.OfType(models.EventStageChanged)) != 1 {
		t.Fatalf("events: %+v", rec.Events())
	}
}

func TestCreateAgreementAccruesOverdueValue(t *testing.T) {
	svc, _, _, debt := setup(t, "750.50", models.StageInNegotiation)

	agr, err := svc.Create(context.Background(), Request{DebtID: debt.ID, Installments: 1, EvaluatedAt: debt.DueDate.AddDate(0, 0, 30)})
	if err != nil {
		t.Fatal(err)
	}
	if !agr.UpdatedValue.Equal(decimal.RequireFromString("765.51")) || !agr.InstallmentValue.Equal(agr.UpdatedValue) {
		t.Fatalf("single payment: %+v", agr)
	}
}

func TestCreateAgreementRejectsInvalidCountAtomically(t *testing.T) {
	for _, n := range []int{0, 13, -3} {
		svc, store, rec, debt := setup(t, "780.00", models.StageInNegotiation)

		_, err := svc.Create(context.Background(), Request{DebtID: debt.ID, Installments: n, EvaluatedAt: now})
		if !errors.Is(err, models.ErrInvalidInstallmentCount) {
			t.Fatalf("n=%d: expected ErrInvalidInstallmentCount, got %v", n, err)
		}
		stored, _ := store.GetDebt(context.Background(), debt.ID)
		if stored.StageOrEmpty() != models.StageInNegotiation || stored.Version != debt.Version {
			t.Fatalf("n=%d: debt changed: %+v", n, stored)
		}
		if _, err := store.FindAgreement(context.Background(), debt.ID); !errors.Is(err, models.ErrNotFound) {
			t.Fatalf("n=%d: agreement persisted", n)
		}
		if len(rec.Events()) != 0 {
			t.Fatalf("n=%d: events recorded", n)
		}
	}
}

func TestCreateAgreementOutsideNegotiation(t *testing.T) {
	svc, store, _, debt := setup(t, "100", models.StageAwaitingContact)

	_, err := svc.Create(context.Background(), Request{DebtID: debt.ID, Installments: 2, EvaluatedAt: now})
	if !errors.Is(err, models.ErrStageTransitionRejected) {
		t.Fatalf("expected ErrStageTransitionRejected, got %v", err)
	}
	if _, err := store.FindAgreement(context.Background(), debt.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatal("agreement persisted for rejected transition")
	}
}

func TestCreateAgreementRetryReturnsExisting(t *testing.T) {
	svc, _, _, debt := setup(t, "780.00", models.StageInNegotiation)
	req := Request{DebtID: debt.ID, Installments: 6, EvaluatedAt: now}

	first, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	again, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if again.Protocol != first.Protocol {
		t.Fatalf("retry produced a new agreement: %s vs %s", again.Protocol, first.Protocol)
	}

	req.Installments = 12
	if _, err := svc.Create(context.Background(), req); !errors.Is(err, models.ErrAgreementExists) {
		t.Fatalf("different plan: expected ErrAgreementExists, got %v", err)
	}
}

func TestCreateAgreementStoreFailureLeavesNothing(t *testing.T) {
	svc, store, _, debt := setup(t, "780.00", models.StageInNegotiation)
	store.Fail = errors.New("timeout")

	_, err := svc.Create(context.Background(), Request{DebtID: debt.ID, Installments: 3, EvaluatedAt: now})
	if !errors.Is(err, models.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	store.Fail = nil
	stored, _ := store.GetDebt(context.Background(), debt.ID)
	if stored.StageOrEmpty() != models.StageInNegotiation {
		t.Fatalf("stage moved: %s", stored.StageOrEmpty())
	}
}

func TestConcurrentCreateOnlyOneWins(t *testing.T) {
	for _, locker := range []struct {
		name string
		l    ports.Locker
	}{{"local lock", locks.NewLocal()}, {"version check only", noLock{}}} {
		t.Run(locker.name, func(t *testing.T) {
			svc, store, _, debt := setup(t, "780.00", models.StageInNegotiation)
			svc.Locks = locker.l

			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				wins []models.Agreement
			)
			for n := 1; n <= 12; n++ {
				wg.Add(1)
				go func(n int) {
					defer wg.Done()
					agr, err := svc.Create(context.Background(), Request{DebtID: debt.ID, Installments: n, EvaluatedAt: now})
					if err != nil {
						if !errors.Is(err, models.ErrStageTransitionRejected) {
							t.Errorf("n=%d: unexpected error %v", n, err)
						}
						return
					}
					mu.Lock()
					wins = append(wins, agr)
					mu.Unlock()
				}(n)
			}
			wg.Wait()

			if len(wins) != 1 {
				t.Fatalf("expected exactly one agreement, got %d", len(wins))
			}
			saved, err := store.FindAgreement(context.Background(), debt.ID)
			if err != nil || saved.Protocol != wins[0].Protocol {
				t.Fatalf("stored agreement mismatch: %+v %v", saved, err)
			}
		})
	}
}

func TestQuotes(t *testing.T) {
	svc, _, _, debt := setup(t, "780.00", models.StageInNegotiation)
	qs, err := svc.Quotes(context.Background(), debt.ID, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(qs) != calculator.MaxInstallments || !qs[2].InstallmentValue.Equal(decimal.RequireFromString("275.91")) {
		t.Fatalf("quotes: %+v", qs)
	}
}

func TestProtocolNumbersAreUnique(t *testing.T) {
	g := NewProtocolGenerator()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]struct{})
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				p := g.Next("3f2a9c1e-0000-4000-8000-000000000000", at)
				mu.Lock()
				seen[p] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 8000 {
		t.Fatalf("expected 8000 unique protocols, got %d", len(seen))
	}

	if tag := debtTag(""); tag != "NODEBT" {
		t.Fatalf("empty debt tag: %s", tag)
	}
}
