package events

import (
	"context"
	"errors"
	"sync"

	"edudebt_collection/internal/models"
	"edudebt_collection/internal/ports"
)

// Fanout delivers every event to all sinks and joins their errors.
type Fanout []ports.EventSink

func (f Fanout) Record(ctx context.Context, e models.Event) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *Recorder) Record(ctx context.Context, e models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Events() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) OfType(t models.EventType) []models.Event {
	var out []models.Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// ListByDebt returns the newest events for a debt first.
func (r *Recorder) ListByDebt(ctx context.Context, debtID string, limit int) ([]models.Event, error) {
	all := r.Events()
	var out []models.Event
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].DebtID != debtID {
			continue
		}
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
