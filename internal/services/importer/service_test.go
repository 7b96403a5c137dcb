package importer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"edudebt_collection/internal/models"
	"edudebt_collection/internal/ports"
	"edudebt_collection/internal/repository/memory"
	"edudebt_collection/internal/services/importer/processors"

	"github.com/xuri/excelize/v2"
)

type fakeOpener struct {
	body        []byte
	contentType string
	err         error
}

func (f fakeOpener) Open(ctx context.Context, filePath string) (io.ReadCloser, ports.Meta, error) {
	if f.err != nil {
		return nil, ports.Meta{}, f.err
	}
	return io.NopCloser(bytes.NewReader(f.body)), ports.Meta{Source: "fake", ContentType: f.contentType, Size: int64(len(f.body))}, nil
}

type captureProcessor struct {
	batches [][]map[string]string
	tenant  string
	failAt  int
}

func (c *captureProcessor) Type() string { return "capture" }

func (c *captureProcessor) ProcessBatch(ctx context.Context, batch []map[string]string) error {
	c.tenant = ports.ValueFrom(ctx, ports.CtxImportTenantID)
	if c.failAt > 0 && len(c.batches)+1 == c.failAt {
		return errors.New("processor down")
	}
	cp := make([]map[string]string, len(batch))
	copy(cp, batch)
	c.batches = append(c.batches, cp)
	return nil
}

const debtsCSV = "Number,Amount,Due_Date\nINV-1,100.00,2024-01-10\nINV-2,200.00,2024-02-10\nINV-3,300.00,2099-03-10\n"

func TestImportCSVInBatches(t *testing.T) {
	proc := &captureProcessor{}
	log := memory.NewImportLog()
	recID, _ := log.CreateRecord(context.Background(), models.ImportRecord{Type: "capture"})

	svc := NewService(fakeOpener{body: []byte(debtsCSV)}, map[string]ports.Processor{"capture": proc}, log, 2)
	res, err := svc.Import(context.Background(), Request{Type: "capture", FilePath: "s3://bucket/debts.csv", ImportRecordID: recID, TenantID: "t1"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Format != "csv" || res.RowsProcessed != 3 || res.SHA256 == "" {
		t.Fatalf("result: %+v", res)
	}
	if len(proc.batches) != 2 || len(proc.batches[0]) != 2 || len(proc.batches[1]) != 1 {
		t.Fatalf("batches: %v", proc.batches)
	}
	if proc.batches[0][0]["number"] != "INV-1" || proc.batches[0][0]["due_date"] != "2024-01-10" {
		t.Fatalf("header keys should be normalized: %v", proc.batches[0][0])
	}
	if proc.tenant != "t1" {
		t.Fatalf("tenant not propagated: %q", proc.tenant)
	}

	rec, _ := log.FindRecord(context.Background(), recID)
	if rec.Status != models.ImportStatusDone || rec.Count != 3 {
		t.Fatalf("record: %+v", rec)
	}
}

func TestImportXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{{"number", "amount", "due_date"}, {"INV-9", "99.90", "2024-05-01"}}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	proc := &captureProcessor{}
	svc := NewService(fakeOpener{body: buf.Bytes()}, map[string]ports.Processor{"capture": proc}, nil, 0)
	res, err := svc.Import(context.Background(), Request{Type: "capture", FilePath: "https://files.example/upload?id=1"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Format != "xlsx" || res.RowsProcessed != 1 || proc.batches[0][0]["amount"] != "99.90" {
		t.Fatalf("result: %+v batches=%v", res, proc.batches)
	}
}

func TestImportFallsBackToCSV(t *testing.T) {
	proc := &captureProcessor{}
	svc := NewService(fakeOpener{body: []byte(debtsCSV), contentType: "application/octet-stream"}, map[string]ports.Processor{"capture": proc}, nil, 10)
	res, err := svc.Import(context.Background(), Request{Type: "capture", FilePath: "upload.bin"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Format != "csv" || res.RowsProcessed != 3 {
		t.Fatalf("result: %+v", res)
	}
}

func TestImportUnknownType(t *testing.T) {
	svc := NewService(fakeOpener{}, processors.Registry(), nil, 10)
	if _, err := svc.Import(context.Background(), Request{Type: "import_nothing", FilePath: "a.csv"}); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestImportProcessorFailureMarksRecordFailed(t *testing.T) {
	proc := &captureProcessor{failAt: 2}
	log := memory.NewImportLog()
	recID, _ := log.CreateRecord(context.Background(), models.ImportRecord{Type: "capture"})

	svc := NewService(fakeOpener{body: []byte(debtsCSV)}, map[string]ports.Processor{"capture": proc}, log, 2)
	res, err := svc.Import(context.Background(), Request{Type: "capture", FilePath: "debts.csv", ImportRecordID: recID})
	if err == nil {
		t.Fatal("expected error")
	}
	if res.RowsProcessed != 2 || len(proc.batches) != 1 {
		t.Fatalf("rows before failure should not be replayed: %+v %d", res, len(proc.batches))
	}
	rec, _ := log.FindRecord(context.Background(), recID)
	if rec.Status != models.ImportStatusFailed || !strings.Contains(rec.Errors, "processor down") {
		t.Fatalf("record: %+v", rec)
	}
}

func TestImportOpenError(t *testing.T) {
	svc := NewService(fakeOpener{err: errors.New("403")}, map[string]ports.Processor{"capture": &captureProcessor{}}, nil, 10)
	if _, err := svc.Import(context.Background(), Request{Type: "capture", FilePath: "x.csv"}); err == nil {
		t.Fatal("expected open error")
	}
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		path, contentType, want string
	}{
		{"s3://b/k/file.XLSX", "", "xlsx"},
		{"https://h/a.csv?sig=1", "", "csv"},
		{"blob", "text/csv; charset=utf-8", "csv"},
		{"blob", "application/octet-stream", ""},
		{"blob", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"},
	}
	for _, c := range cases {
		if got := detectFormat(c.path, c.contentType); got != c.want {
			t.Errorf("detectFormat(%q, %q) = %q, want %q", c.path, c.contentType, got, c.want)
		}
	}
}
