package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"edudebt_collection/internal/models"

	"github.com/google/uuid"
)

// ImportLog keeps import records and items in process.
type ImportLog struct {
	mu      sync.Mutex
	records map[string]models.ImportRecord
	items   []models.ImportItem
}

func NewImportLog() *ImportLog {
	return &ImportLog{records: make(map[string]models.ImportRecord)}
}

func (l *ImportLog) CreateRecord(ctx context.Context, rec models.ImportRecord) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = models.ImportStatusParsed
	}
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	l.records[rec.ID] = rec
	return rec.ID, nil
}

func (l *ImportLog) FindRecord(ctx context.Context, id string) (models.ImportRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok {
		return models.ImportRecord{}, fmt.Errorf("import record %s: %w", id, models.ErrNotFound)
	}
	return rec, nil
}

func (l *ImportLog) SetStatus(ctx context.Context, id, status string, count int, errs string) error {
	if id == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok {
		return fmt.Errorf("import record %s: %w", id, models.ErrNotFound)
	}
	rec.Status = status
	if count > 0 {
		rec.Count = count
	}
	if errs != "" {
		rec.Errors = errs
	}
	rec.UpdatedAt = time.Now().UTC()
	l.records[id] = rec
	return nil
}

func (l *ImportLog) LogItem(ctx context.Context, item models.ImportItem) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	l.items = append(l.items, item)
	return nil
}

func (l *ImportLog) Items(recordID string) []models.ImportItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.ImportItem
	for _, it := range l.items {
		if it.ImportRecordID == recordID {
			out = append(out, it)
		}
	}
	return out
}
