package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"edudebt_collection/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is an in-process implementation of every collection store. It backs
// tests and the STORE=memory local mode.
type Store struct {
	mu          sync.Mutex
	debts       map[string]models.Debt
	attempts    map[string][]models.Attempt
	agreements  map[string]models.Agreement
	debtors     map[string]models.Debtor
	schools     map[string]models.School
	commissions map[string]decimal.Decimal

	// Fail, when set, is returned by every call.
	Fail error
}

func NewStore() *Store {
	return &Store{
		debts:       make(map[string]models.Debt),
		attempts:    make(map[string][]models.Attempt),
		agreements:  make(map[string]models.Agreement),
		debtors:     make(map[string]models.Debtor),
		schools:     make(map[string]models.School),
		commissions: make(map[string]decimal.Decimal),
	}
}

func (s *Store) fail(op string) error {
	if s.Fail != nil {
		return models.StoreError(op, s.Fail)
	}
	return nil
}

func (s *Store) PutDebtor(d models.Debtor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debtors[d.ID] = d
}

// UpsertDebtor keys debtors by document and keeps stored values for blank fields.
func (s *Store) UpsertDebtor(ctx context.Context, d models.Debtor) (models.Debtor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("upsert debtor"); err != nil {
		return models.Debtor{}, err
	}
	if d.Document == "" {
		return models.Debtor{}, fmt.Errorf("upsert debtor: %w: empty document", models.ErrInvalidInput)
	}
	for id, cur := range s.debtors {
		if cur.Document != d.Document {
			continue
		}
		if d.FullName != "" {
			cur.FullName = d.FullName
		}
		if d.Email != "" {
			cur.Email = d.Email
		}
		if d.Phone != "" {
			cur.Phone = d.Phone
		}
		s.debtors[id] = cur
		return cur, nil
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	s.debtors[d.ID] = d
	return d, nil
}

func (s *Store) PutSchool(sc models.School) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schools[sc.ID] = sc
}

func (s *Store) SetCommissionPercentage(tenantID string, pct decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commissions[tenantID] = pct
}

// ---------- debts ----------

func (s *Store) GetDebt(ctx context.Context, id string) (models.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("get debt"); err != nil {
		return models.Debt{}, err
	}
	d, ok := s.debts[id]
	if !ok {
		return models.Debt{}, fmt.Errorf("debt %s: %w", id, models.ErrNotFound)
	}
	return d, nil
}

func (s *Store) CreateDebt(ctx context.Context, d models.Debt) (models.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("create debt"); err != nil {
		return models.Debt{}, err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if _, ok := s.debts[d.ID]; ok {
		return models.Debt{}, fmt.Errorf("create debt %s: %w: duplicate id", d.ID, models.ErrInvalidInput)
	}
	now := time.Now().UTC()
	d.Version = 1
	d.CreatedAt, d.UpdatedAt = now, now
	s.debts[d.ID] = d
	return d, nil
}

func (s *Store) mutate(op, id string, expectedVersion int64, fn func(*models.Debt)) error {
	if err := s.fail(op); err != nil {
		return err
	}
	d, ok := s.debts[id]
	if !ok {
		return fmt.Errorf("%s %s: %w", op, id, models.ErrNotFound)
	}
	if d.Version != expectedVersion {
		return fmt.Errorf("%s %s: %w", op, id, models.ErrVersionConflict)
	}
	fn(&d)
	d.Version++
	d.UpdatedAt = time.Now().UTC()
	s.debts[id] = d
	return nil
}

func (s *Store) UpdateDebtStage(ctx context.Context, id string, stage models.Stage, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate("update stage", id, expectedVersion, func(d *models.Debt) {
		d.Stage = stage.Ptr()
	})
}

func (s *Store) MarkOverdue(ctx context.Context, id string, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate("mark overdue", id, expectedVersion, func(d *models.Debt) {
		d.Status = models.StatusOverdue
		d.Stage = models.StageAwaitingContact.Ptr()
	})
}

func (s *Store) MarkPaid(ctx context.Context, id string, commission decimal.Decimal, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate("mark paid", id, expectedVersion, func(d *models.Debt) {
		d.Status = models.StatusPaid
		if d.Commission == nil {
			c := commission
			d.Commission = &c
		}
	})
}

func (s *Store) ListOverdueDebtsForTenant(ctx context.Context, tenantID string) ([]models.Debt, error) {
	return s.list("list overdue", func(d models.Debt) bool {
		return d.TenantID == tenantID && d.Status == models.StatusOverdue
	})
}

func (s *Store) ListPendingDueBefore(ctx context.Context, asOf time.Time) ([]models.Debt, error) {
	return s.list("list pending", func(d models.Debt) bool {
		return d.Status == models.StatusPending && d.DueDate.Before(asOf)
	})
}

func (s *Store) list(op string, keep func(models.Debt) bool) ([]models.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(op); err != nil {
		return nil, err
	}
	out := make([]models.Debt, 0)
	for _, d := range s.debts {
		if keep(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ---------- attempts ----------

func (s *Store) AppendAttempt(ctx context.Context, a models.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("append attempt"); err != nil {
		return err
	}
	for debtID, list := range s.attempts {
		for _, existing := range list {
			if existing.ID != a.ID {
				continue
			}
			if debtID != a.DebtID {
				return fmt.Errorf("%w: attempt %s belongs to debt %s", models.ErrInvalidInput, a.ID, debtID)
			}
			return nil
		}
	}
	s.attempts[a.DebtID] = append(s.attempts[a.DebtID], a)
	return nil
}

func (s *Store) ListAttempts(ctx context.Context, debtID string) ([]models.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("list attempts"); err != nil {
		return nil, err
	}
	out := make([]models.Attempt, len(s.attempts[debtID]))
	copy(out, s.attempts[debtID])
	return out, nil
}

// ---------- agreements ----------

func (s *Store) SaveAgreement(ctx context.Context, debtID string, a models.Agreement, next models.Stage, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("save agreement"); err != nil {
		return err
	}
	if _, ok := s.agreements[debtID]; ok {
		return fmt.Errorf("save agreement %s: %w", debtID, models.ErrAgreementExists)
	}
	for _, other := range s.agreements {
		if other.Protocol == a.Protocol {
			return fmt.Errorf("save agreement %s: %w: duplicate protocol %s", debtID, models.ErrInvalidInput, a.Protocol)
		}
	}
	err := s.mutate("save agreement", debtID, expectedVersion, func(d *models.Debt) {
		d.Stage = next.Ptr()
	})
	if err != nil {
		return err
	}
	a.DebtID = debtID
	s.agreements[debtID] = a
	return nil
}

func (s *Store) FindAgreement(ctx context.Context, debtID string) (models.Agreement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("find agreement"); err != nil {
		return models.Agreement{}, err
	}
	a, ok := s.agreements[debtID]
	if !ok {
		return models.Agreement{}, fmt.Errorf("agreement for %s: %w", debtID, models.ErrNotFound)
	}
	return a, nil
}

// ---------- tenant config & directory ----------

func (s *Store) GetCommissionPercentage(ctx context.Context, tenantID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("commission percentage"); err != nil {
		return decimal.Zero, err
	}
	pct, ok := s.commissions[tenantID]
	if !ok {
		return decimal.Zero, fmt.Errorf("tenant %s: %w", tenantID, models.ErrNotFound)
	}
	return pct, nil
}

func (s *Store) GetDebtor(ctx context.Context, id string) (models.Debtor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("get debtor"); err != nil {
		return models.Debtor{}, err
	}
	d, ok := s.debtors[id]
	if !ok {
		return models.Debtor{}, fmt.Errorf("debtor %s: %w", id, models.ErrNotFound)
	}
	return d, nil
}

func (s *Store) GetSchool(ctx context.Context, id string) (models.School, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("get school"); err != nil {
		return models.School{}, err
	}
	sc, ok := s.schools[id]
	if !ok {
		return models.School{}, fmt.Errorf("school %s: %w", id, models.ErrNotFound)
	}
	return sc, nil
}
