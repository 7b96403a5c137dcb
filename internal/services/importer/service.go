package importer

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"edudebt_collection/internal/models"
	"edudebt_collection/internal/ports"

	"github.com/xuri/excelize/v2"
)

type Request struct {
	Type           string
	FilePath       string
	BatchSize      int
	ImportRecordID string
	TenantID       string
}

type Result struct {
	Source        string `json:"source"`
	FilePath      string `json:"file_path"`
	Format        string `json:"format"`
	RowsProcessed int    `json:"rows_processed"`
	SHA256        string `json:"sha256"`
	ContentType   string `json:"content_type"`
	Bucket        string `json:"bucket,omitempty"`
	Key           string `json:"key,omitempty"`
	SizeBytes     int64  `json:"size_bytes"`
}

// Service streams a CSV or XLSX file in batches into the processor registered
// for the request type.
type Service struct {
	Opener     ports.FileOpener
	Processors map[string]ports.Processor
	Log        ports.ImportLog
	DefaultBS  int
}

func NewService(opener ports.FileOpener, registry map[string]ports.Processor, importLog ports.ImportLog, defaultBatch int) *Service {
	if defaultBatch <= 0 {
		defaultBatch = 1000
	}
	return &Service{Opener: opener, Processors: registry, Log: importLog, DefaultBS: defaultBatch}
}

func (s *Service) Import(ctx context.Context, req Request) (Result, error) {
	t0 := time.Now()
	ctx = context.WithValue(ctx, ports.CtxImportRecordID, req.ImportRecordID)
	ctx = context.WithValue(ctx, ports.CtxImportTenantID, req.TenantID)
	log.Printf("[IMP][START] type=%q path=%q batch_size=%d import_record_id=%q tenant=%q",
		req.Type, req.FilePath, req.BatchSize, req.ImportRecordID, req.TenantID)

	proc, ok := s.Processors[req.Type]
	if !ok {
		log.Printf("[IMP][ERR] no processor for type=%q", req.Type)
		return Result{}, fmt.Errorf("%w: no processor for type %q", models.ErrInvalidInput, req.Type)
	}

	s.status(ctx, req.ImportRecordID, models.ImportStatusProcessing, 0, "")
	res, err := s.run(ctx, req, proc)
	if err != nil {
		log.Printf("[IMP][ERR] %v", err)
		s.status(ctx, req.ImportRecordID, models.ImportStatusFailed, res.RowsProcessed, err.Error())
		return res, err
	}
	s.status(ctx, req.ImportRecordID, models.ImportStatusDone, res.RowsProcessed, "")

	log.Printf("[IMP][DONE] type=%q fmt=%s rows=%d sha256=%s duration=%s",
		req.Type, res.Format, res.RowsProcessed, res.SHA256, time.Since(t0))
	return res, nil
}

func (s *Service) run(ctx context.Context, req Request, proc ports.Processor) (Result, error) {
	rc, meta, err := s.Opener.Open(ctx, req.FilePath)
	if err != nil {
		return Result{}, fmt.Errorf("open: %w", err)
	}
	defer rc.Close()

	format := detectFormat(req.FilePath, meta.ContentType)
	log.Printf("[IMP] source=%s content_type=%q size=%d detected_format=%q", meta.Source, meta.ContentType, meta.Size, format)

	// Buffer the body so the fallback reader can start over from byte zero.
	hasher := sha256.New()
	body, err := io.ReadAll(io.TeeReader(rc, hasher))
	if err != nil {
		return Result{}, fmt.Errorf("read: %w", err)
	}

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.DefaultBS
	}

	readers := map[string]func(context.Context, io.Reader, *batcher) error{
		"csv":  readCSV,
		"xlsx": readXLSXFirstSheet,
	}
	order := []string{"xlsx", "csv"}
	if format == "csv" {
		order = []string{"csv", "xlsx"}
	}

	var (
		b       *batcher
		readErr error
	)
	for _, f := range order {
		b = &batcher{proc: proc, size: batchSize}
		if readErr = readers[f](ctx, bytes.NewReader(body), b); readErr == nil {
			format = f
			break
		}
		if b.total > 0 {
			// rows already reached the processor; retrying would duplicate them
			break
		}
		log.Printf("[IMP][%s][ERR] %v, trying next reader", strings.ToUpper(f), readErr)
	}

	res := Result{
		Source:        meta.Source,
		FilePath:      req.FilePath,
		Format:        format,
		RowsProcessed: b.total,
		SHA256:        hex.EncodeToString(hasher.Sum(nil)),
		ContentType:   meta.ContentType,
		Bucket:        meta.Bucket,
		Key:           meta.Key,
		SizeBytes:     meta.Size,
	}
	if readErr != nil {
		return res, fmt.Errorf("read pipeline: %w", readErr)
	}
	return res, nil
}

func (s *Service) status(ctx context.Context, id, status string, count int, errs string) {
	if s.Log == nil || id == "" {
		return
	}
	if err := s.Log.SetStatus(ctx, id, status, count, errs); err != nil {
		log.Printf("[IMP][ERR] import_record %s -> %s: %v", id, status, err)
	}
}

// batcher groups rows and hands full batches to the processor.
type batcher struct {
	proc    ports.Processor
	size    int
	header  []string
	rows    []map[string]string
	total   int
	batches int
}

func (b *batcher) add(ctx context.Context, cols []string) error {
	b.rows = append(b.rows, toMap(b.header, cols))
	if len(b.rows) >= b.size {
		return b.flush(ctx)
	}
	return nil
}

func (b *batcher) flush(ctx context.Context) error {
	if len(b.rows) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Printf("[IMP] send batch #%d size=%d total_so_far=%d", b.batches+1, len(b.rows), b.total)
	if err := b.proc.ProcessBatch(ctx, b.rows); err != nil {
		return err
	}
	b.total += len(b.rows)
	b.batches++
	b.rows = make([]map[string]string, 0, b.size)
	return nil
}

func readCSV(ctx context.Context, r io.Reader, b *batcher) error {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return err
	}
	b.header = header
	log.Printf("[IMP][CSV] header=%v", header)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("[IMP][CSV][WARN] read row err: %v", err)
			continue
		}
		if err := b.add(ctx, record); err != nil {
			return err
		}
	}
	return b.flush(ctx)
}

func readXLSXFirstSheet(ctx context.Context, r io.Reader, b *batcher) error {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return errors.New("xlsx has no sheets")
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		return err
	}
	defer rows.Close()

	if !rows.Next() {
		return rows.Error()
	}
	if b.header, err = rows.Columns(); err != nil {
		return err
	}
	log.Printf("[IMP][XLSX] sheet=%q header=%v", sheets[0], b.header)

	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			log.Printf("[IMP][XLSX][WARN] read row err: %v", err)
			continue
		}
		if err := b.add(ctx, cols); err != nil {
			return err
		}
	}
	if err := rows.Error(); err != nil {
		return err
	}
	return b.flush(ctx)
}

func toMap(header []string, row []string) map[string]string {
	m := make(map[string]string, len(header))
	for i, key := range header {
		val := ""
		if i < len(row) {
			val = row[i]
		}
		m[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(val)
	}
	return m
}

func detectFormat(filePath, contentType string) string {
	p := filePath
	if u, err := url.Parse(filePath); err == nil && u != nil && u.Path != "" {
		p = u.Path
	}
	switch strings.ToLower(strings.TrimPrefix(path.Ext(p), ".")) {
	case "xlsx":
		return "xlsx"
	case "csv":
		return "csv"
	}
	med, _, _ := mime.ParseMediaType(contentType)
	switch med {
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return "xlsx"
	case "text/csv", "application/csv", "text/plain":
		return "csv"
	}
	return ""
}
