package overdue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"edudebt_collection/internal/models"
	"edudebt_collection/internal/ports"
)

// Sweeper moves Pending debts whose due date has passed to Overdue and opens
// their collection at AwaitingContact.
type Sweeper struct {
	Debts  ports.DebtStore
	Locks  ports.Locker
	Events ports.EventSink
	Now    func() time.Time
}

type Report struct {
	Scanned int
	Marked  int
	Skipped int
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run sweeps every pending debt due before today. Failures on single debts
// are collected and do not stop the sweep.
func (s *Sweeper) Run(ctx context.Context) (Report, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	log.Printf("[SWEEP][START] as_of=%s", today.Format("2006-01-02"))

	due, err := s.Debts.ListPendingDueBefore(ctx, today)
	if err != nil {
		log.Printf("[SWEEP][ERR] list: %v", err)
		return Report{}, err
	}

	rep := Report{Scanned: len(due)}
	var errs []error
	for _, d := range due {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		marked, err := s.markOne(ctx, d.ID, today)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("debt %s: %w", d.ID, err))
		case marked:
			rep.Marked++
		default:
			rep.Skipped++
		}
	}

	log.Printf("[SWEEP][DONE] scanned=%d marked=%d skipped=%d errors=%d", rep.Scanned, rep.Marked, rep.Skipped, len(errs))
	return rep, errors.Join(errs...)
}

func (s *Sweeper) markOne(ctx context.Context, debtID string, today time.Time) (bool, error) {
	unlock, err := s.Locks.Lock(ctx, debtID)
	if err != nil {
		return false, err
	}
	defer unlock()

	// re-read under the lock; a payment may have landed since the listing
	debt, err := s.Debts.GetDebt(ctx, debtID)
	if err != nil {
		return false, err
	}
	if debt.Status != models.StatusPending || !debt.DueDate.Before(today) {
		return false, nil
	}

	if err := s.Debts.MarkOverdue(ctx, debt.ID, debt.Version); err != nil {
		return false, err
	}

	if s.Events != nil {
		e := models.Event{
			Type: models.EventDebtOverdue, DebtID: debt.ID, TenantID: debt.TenantID, Actor: "system",
			To: models.StageAwaitingContact, At: s.now().UTC(),
			Data: map[string]string{"due_date": debt.DueDate.Format("2006-01-02")},
		}
		if err := s.Events.Record(ctx, e); err != nil {
			log.Printf("[SWEEP][EVENT][ERR] debt=%s err=%v", debt.ID, err)
		}
	}
	return true, nil
}
