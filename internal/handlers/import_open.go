package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"edudebt_collection/internal/models"
	"edudebt_collection/internal/services/importer"
	auth "edudebt_collection/internal/transport/auth"
)

type importRequest struct {
	Type           string `json:"type"`
	FilePath       string `json:"file_path"`
	BatchSize      int    `json:"batch_size"`
	TimeoutMin     int    `json:"timeout_minutes,omitempty"`
	ImportRecordID string `json:"import_record_id"`
	TenantID       string `json:"tenant_id"`
}

// Import starts a bulk import in the background and answers 202 right away.
// Progress is visible through GET /imports/{id}.
func (h *Handlers) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.resolveImport(r, &req); err != nil {
		h.Logger.Printf("[IMPORT][REQ][ERR] %v", err)
		h.writeError(w, r, err)
		return
	}
	if _, ok := h.Importer.Processors[req.Type]; !ok {
		h.writeError(w, r, fmt.Errorf("%w: unknown import type %q", models.ErrInvalidInput, req.Type))
		return
	}

	reqCopy := req
	timeout := h.ImportTimeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	if reqCopy.TimeoutMin > 0 {
		timeout = time.Duration(reqCopy.TimeoutMin) * time.Minute
	}

	go func() {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		res, err := h.Importer.Import(ctx, importer.Request{
			Type:           reqCopy.Type,
			FilePath:       reqCopy.FilePath,
			BatchSize:      reqCopy.BatchSize,
			ImportRecordID: reqCopy.ImportRecordID,
			TenantID:       reqCopy.TenantID,
		})
		if err != nil {
			h.Logger.Printf("[IMPORT][ERR][BG] type=%q path=%q err=%v took=%s",
				reqCopy.Type, reqCopy.FilePath, err, time.Since(start))
			return
		}
		h.Logger.Printf("[IMPORT][OK][BG] type=%q src=%s fmt=%s rows=%d bucket=%q key=%q size=%d took=%s",
			reqCopy.Type, res.Source, res.Format, res.RowsProcessed, res.Bucket, res.Key, res.SizeBytes, time.Since(start))
	}()

	h.JSON(w, http.StatusAccepted, map[string]any{
		"status":           "started",
		"type":             req.Type,
		"file_path":        req.FilePath,
		"batch_size":       req.BatchSize,
		"import_record_id": req.ImportRecordID,
		"tenant_id":        req.TenantID,
	})
}

// resolveImport fills path, type and tenant from the import record when the
// caller only names the record, and pins the tenant for tenant-bound tokens.
func (h *Handlers) resolveImport(r *http.Request, req *importRequest) error {
	if req.ImportRecordID != "" && h.Imports != nil {
		rec, err := h.Imports.FindRecord(r.Context(), req.ImportRecordID)
		switch {
		case err == nil:
			if req.FilePath == "" {
				req.FilePath = rec.Path
			}
			if req.Type == "" {
				req.Type = rec.Type
			}
			if req.TenantID == "" {
				req.TenantID = rec.TenantID
			}
		case errors.Is(err, models.ErrNotFound) && req.FilePath != "":
		default:
			return err
		}
	}

	if tenant := auth.GetTenant(r.Context()); tenant != "" {
		if req.TenantID != "" && req.TenantID != tenant {
			return fmt.Errorf("tenant %s: %w", req.TenantID, models.ErrNotFound)
		}
		req.TenantID = tenant
	}

	if strings.TrimSpace(req.FilePath) == "" {
		return fmt.Errorf("%w: file_path is required", models.ErrInvalidInput)
	}
	if req.BatchSize <= 0 {
		req.BatchSize = 1000
	}
	return nil
}

func (h *Handlers) ImportStatus(w http.ResponseWriter, r *http.Request) {
	if h.Imports == nil {
		h.writeError(w, r, fmt.Errorf("imports: %w", models.ErrNotFound))
		return
	}
	rec, err := h.Imports.FindRecord(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.ownTenant(r, rec.TenantID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, rec)
}
