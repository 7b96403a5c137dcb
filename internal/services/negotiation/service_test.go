package negotiation

import (
	"context"
	"errors"
	"testing"
	"time"

	"edudebt_collection/internal/adapters/events"
	"edudebt_collection/internal/models"
	"edudebt_collection/internal/repository/locks"
	"edudebt_collection/internal/repository/memory"
	"edudebt_collection/internal/services/calculator"

	"github.com/shopspring/decimal"
)

var evalDay = time.Date(2024, time.August, 9, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func newTestService(t *testing.T) (*Service, *memory.Store, *events.Recorder) {
	t.Helper()
	st := memory.NewStore()
	rec := &events.Recorder{}
	svc := &Service{
		Debts:      st,
		Attempts:   st,
		Agreements: st,
		Directory:  st,
		Locks:      locks.NewLocal(),
		Events:     rec,
		Calc:       calculator.DefaultConfig(),
		Now:        func() time.Time { return evalDay },
	}
	return svc, st, rec
}

func seedOverdue(t *testing.T, st *memory.Store, stage models.Stage) models.Debt {
	t.Helper()
	d, err := st.CreateDebt(context.Background(), models.Debt{
		TenantID: "tenant-1",
		DebtorID: strPtr("debtor-1"),
		SchoolID: strPtr("school-1"),
		Number:   "INV-1",
		Amount:   decimal.RequireFromString("750.50"),
		DueDate:  time.Date(2024, time.July, 10, 0, 0, 0, 0, time.UTC),
		Status:   models.StatusOverdue,
		Stage:    stage.Ptr(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestCaseJoinsEverything(t *testing.T) {
	svc, st, _ := newTestService(t)
	st.PutDebtor(models.Debtor{ID: "debtor-1", FullName: "Ana Souza"})
	st.PutSchool(models.School{ID: "school-1", Name: "Colégio Central"})
	debt := seedOverdue(t, st, models.StageAwaitingContact)

	base := time.Date(2024, time.July, 20, 9, 0, 0, 0, time.UTC)
	for i, ch := range []models.Channel{models.ChannelEmail, models.ChannelWhatsApp, models.ChannelPhoneCall} {
		if _, _, err := svc.LogAttempt(context.Background(), debt.ID, AttemptInput{
			Channel: ch, Author: "agent-7", At: base.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatal(err)
		}
	}

	c, err := svc.Case(context.Background(), debt.ID, evalDay)
	if err != nil {
		t.Fatal(err)
	}
	if c.Debtor == nil || c.Debtor.FullName != "Ana Souza" {
		t.Errorf("debtor: %+v", c.Debtor)
	}
	if c.School == nil || c.School.Name != "Colégio Central" {
		t.Errorf("school: %+v", c.School)
	}
	if len(c.Attempts) != 3 || c.Attempts[0].Channel != models.ChannelPhoneCall || c.Attempts[2].Channel != models.ChannelEmail {
		t.Errorf("attempts not newest-first: %+v", c.Attempts)
	}
	if c.LastActivity == nil || !c.LastActivity.Equal(base.Add(2*time.Hour)) {
		t.Errorf("last activity: %v", c.LastActivity)
	}
	if !c.ReadyForLegalAction {
		t.Error("three administrative attempts should be ready")
	}
	if c.DaysOverdue != 30 || !c.UpdatedValue.Equal(decimal.RequireFromString("765.51")) {
		t.Errorf("value: %s after %d days", c.UpdatedValue, c.DaysOverdue)
	}
	if c.Debt.StageOrEmpty() != models.StageInNegotiation {
		t.Errorf("stage: %s", c.Debt.StageOrEmpty())
	}
	if c.CanAdvance {
		t.Error("advance without agreement must be disabled")
	}
	if !c.CanRetreat {
		t.Error("retreat from negotiation should be enabled")
	}
}

func TestCaseDegradesOnMissingRelations(t *testing.T) {
	svc, st, _ := newTestService(t)
	debt := seedOverdue(t, st, models.StageAwaitingContact)

	c, err := svc.Case(context.Background(), debt.ID, evalDay)
	if err != nil {
		t.Fatalf("missing debtor/school must not fail: %v", err)
	}
	if c.Debtor != nil || c.School != nil || c.Agreement != nil {
		t.Fatalf("expected absent relations, got %+v", c)
	}
	if c.ReadyForLegalAction || c.LastActivity != nil {
		t.Fatalf("empty history: %+v", c)
	}
}

func TestCaseMissingDebtIsNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Case(context.Background(), "nope", evalDay); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCaseSurfacesStoreFailure(t *testing.T) {
	svc, st, _ := newTestService(t)
	debt := seedOverdue(t, st, models.StageAwaitingContact)
	st.Fail = errors.New("connection reset")

	if _, err := svc.Case(context.Background(), debt.ID, evalDay); !errors.Is(err, models.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestLogAttemptMovesToNegotiationOnce(t *testing.T) {
	svc, st, rec := newTestService(t)
	debt := seedOverdue(t, st, models.StageAwaitingContact)

	_, got, err := svc.LogAttempt(context.Background(), debt.ID, AttemptInput{Channel: models.ChannelWhatsApp, Author: "agent"})
	if err != nil {
		t.Fatal(err)
	}
	if got.StageOrEmpty() != models.StageInNegotiation {
		t.Fatalf("stage: %s", got.StageOrEmpty())
	}

	_, got, err = svc.LogAttempt(context.Background(), debt.ID, AttemptInput{Channel: models.ChannelEmail, Author: "agent"})
	if err != nil {
		t.Fatal(err)
	}
	if got.StageOrEmpty() != models.StageInNegotiation {
		t.Fatalf("stage after second contact: %s", got.StageOrEmpty())
	}
	if n := len(rec.OfType(models.EventStageChanged)); n != 1 {
		t.Fatalf("expected one stage change, got %d", n)
	}
	if n := len(rec.OfType(models.EventAttemptLogged)); n != 2 {
		t.Fatalf("expected two attempt events, got %d", n)
	}
}

func TestLogAttemptIsIdempotentByID(t *testing.T) {
	svc, st, _ := newTestService(t)
	debt := seedOverdue(t, st, models.StageAwaitingContact)

	in := AttemptInput{ID: "attempt-1", Channel: models.ChannelPhoneCall, Author: "agent"}
	for i := 0; i < 3; i++ {
		if _, _, err := svc.LogAttempt(context.Background(), debt.ID, in); err != nil {
			t.Fatal(err)
		}
	}
	attempts, _ := st.ListAttempts(context.Background(), debt.ID)
	if len(attempts) != 1 {
		t.Fatalf("retries duplicated the attempt: %d", len(attempts))
	}
}

func TestLogAttemptRejectsIDReusedOnAnotherDebt(t *testing.T) {
	svc, st, _ := newTestService(t)
	first := seedOverdue(t, st, models.StageAwaitingContact)
	second, err := st.CreateDebt(context.Background(), models.Debt{
		TenantID: "tenant-1",
		Number:   "INV-2",
		Amount:   decimal.RequireFromString("100"),
		DueDate:  time.Date(2024, time.July, 10, 0, 0, 0, 0, time.UTC),
		Status:   models.StatusOverdue,
		Stage:    models.StageAwaitingContact.Ptr(),
	})
	if err != nil {
		t.Fatal(err)
	}

	in := AttemptInput{ID: "attempt-1", Channel: models.ChannelEmail, Author: "agent"}
	if _, _, err := svc.LogAttempt(context.Background(), first.ID, in); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.LogAttempt(context.Background(), second.ID, in); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	got, _ := st.GetDebt(context.Background(), second.ID)
	if got.StageOrEmpty() != models.StageAwaitingContact {
		t.Fatalf("stage moved on a rejected attempt: %s", got.StageOrEmpty())
	}
	if attempts, _ := st.ListAttempts(context.Background(), second.ID); len(attempts) != 0 {
		t.Fatalf("attempts on second debt: %d", len(attempts))
	}
}

func TestLogAttemptValidation(t *testing.T) {
	svc, st, _ := newTestService(t)
	debt := seedOverdue(t, st, models.StageAwaitingContact)

	bad := []AttemptInput{
		{Channel: "fax", Author: "agent"},
		{Channel: models.ChannelPetitionGenerated, Author: "agent"},
		{Channel: models.ChannelEmail},
	}
	for _, in := range bad {
		if _, _, err := svc.LogAttempt(context.Background(), debt.ID, in); !errors.Is(err, models.ErrInvalidInput) {
			t.Errorf("%+v: expected ErrInvalidInput, got %v", in, err)
		}
	}
}

func TestLogAttemptRejectsDebtOutsideCollection(t *testing.T) {
	svc, st, _ := newTestService(t)
	d, _ := st.CreateDebt(context.Background(), models.Debt{
		TenantID: "t", Amount: decimal.NewFromInt(10), Status: models.StatusPending,
		DueDate: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	_, _, err := svc.LogAttempt(context.Background(), d.ID, AttemptInput{Channel: models.ChannelEmail, Author: "a"})
	if !errors.Is(err, models.ErrStageTransitionRejected) {
		t.Fatalf("expected ErrStageTransitionRejected, got %v", err)
	}
	attempts, _ := st.ListAttempts(context.Background(), d.ID)
	if len(attempts) != 0 {
		t.Fatal("rejected contact must not be stored")
	}
}

func TestRecordPetitionNeedsTwoAdministrativeAttempts(t *testing.T) {
	svc, st, _ := newTestService(t)
	debt := seedOverdue(t, st, models.StageAwaitingContact)
	ctx := context.Background()

	if _, err := svc.RecordPetition(ctx, debt.ID, "lawyer", ""); !errors.Is(err, models.ErrStageTransitionRejected) {
		t.Fatalf("zero attempts: expected rejection, got %v", err)
	}
	if _, _, err := svc.LogAttempt(ctx, debt.ID, AttemptInput{Channel: models.ChannelEmail, Author: "agent"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordPetition(ctx, debt.ID, "lawyer", ""); !errors.Is(err, models.ErrStageTransitionRejected) {
		t.Fatalf("one attempt: expected rejection, got %v", err)
	}
	if _, _, err := svc.LogAttempt(ctx, debt.ID, AttemptInput{Channel: models.ChannelWhatsApp, Author: "agent"}); err != nil {
		t.Fatal(err)
	}

	a, err := svc.RecordPetition(ctx, debt.ID, "lawyer", "petição inicial")
	if err != nil {
		t.Fatal(err)
	}
	if a.Kind != models.AttemptJudicialPreparation || a.Channel != models.ChannelPetitionGenerated {
		t.Fatalf("petition attempt: %+v", a)
	}

	c, _ := svc.Case(ctx, debt.ID, evalDay)
	if !c.ReadyForLegalAction {
		t.Fatal("petition must not reset readiness")
	}
	if c.Debt.StageOrEmpty() != models.StageInNegotiation {
		t.Fatalf("petition must not move the stage, got %s", c.Debt.StageOrEmpty())
	}
}

func TestStepperRespectsAgreementInvariant(t *testing.T) {
	svc, st, rec := newTestService(t)
	debt := seedOverdue(t, st, models.StageAwaitingContact)
	ctx := context.Background()

	got, err := svc.Retreat(ctx, debt.ID, "agent")
	if err != nil || got.StageOrEmpty() != models.StageAwaitingContact {
		t.Fatalf("retreat at start: %s %v", got.StageOrEmpty(), err)
	}
	got, err = svc.Advance(ctx, debt.ID, "agent")
	if err != nil || got.StageOrEmpty() != models.StageInNegotiation {
		t.Fatalf("advance: %s %v", got.StageOrEmpty(), err)
	}
	if _, err := svc.Advance(ctx, debt.ID, "agent"); !errors.Is(err, models.ErrStageTransitionRejected) {
		t.Fatalf("advance without agreement: %v", err)
	}
	stored, _ := st.GetDebt(ctx, debt.ID)
	if stored.StageOrEmpty() != models.StageInNegotiation {
		t.Fatalf("rejected advance changed stage to %s", stored.StageOrEmpty())
	}

	got, err = svc.Decline(ctx, debt.ID, "agent")
	if err != nil || got.StageOrEmpty() != models.StagePaymentRefused {
		t.Fatalf("decline: %s %v", got.StageOrEmpty(), err)
	}
	got, err = svc.Advance(ctx, debt.ID, "agent")
	if err != nil || got.StageOrEmpty() != models.StageJudicialPreparation {
		t.Fatalf("escalate: %s %v", got.StageOrEmpty(), err)
	}
	got, err = svc.Advance(ctx, debt.ID, "agent")
	if err != nil || got.StageOrEmpty() != models.StageJudicialPreparation {
		t.Fatalf("advance at end: %s %v", got.StageOrEmpty(), err)
	}

	changes := rec.OfType(models.EventStageChanged)
	if len(changes) != 3 {
		t.Fatalf("expected 3 stage events, got %d", len(changes))
	}
	last := changes[len(changes)-1]
	if last.From != models.StagePaymentRefused || last.To != models.StageJudicialPreparation {
		t.Fatalf("last event: %+v", last)
	}
}

func TestListOverdue(t *testing.T) {
	svc, st, _ := newTestService(t)
	debt := seedOverdue(t, st, models.StageAwaitingContact)
	_, _ = st.CreateDebt(context.Background(), models.Debt{
		TenantID: "tenant-2", Amount: decimal.NewFromInt(1), Status: models.StatusOverdue,
		Stage: models.StageAwaitingContact.Ptr(), DueDate: debt.DueDate,
	})
	for _, ch := range []models.Channel{models.ChannelEmail, models.ChannelPhoneCall} {
		if _, _, err := svc.LogAttempt(context.Background(), debt.ID, AttemptInput{Channel: ch, Author: "a"}); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := svc.ListOverdue(context.Background(), "tenant-1", evalDay)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row for tenant-1, got %d", len(rows))
	}
	if rows[0].AdministrativeAttempts != 2 || !rows[0].ReadyForLegalAction || rows[0].LastActivity == nil {
		t.Fatalf("row: %+v", rows[0])
	}
}
