package handlers

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"edudebt_collection/internal/models"
	auth "edudebt_collection/internal/transport/auth"
)

// Upload accepts multipart/form-data with `file` and `type` fields, stores the
// file and opens an import record for it.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		h.JSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "use POST"})
		return
	}

	if h.Files == nil || h.Imports == nil {
		h.JSON(w, http.StatusServiceUnavailable, map[string]any{"error": "file storage not configured"})
		return
	}

	if err := r.ParseMultipartForm(128 << 20); err != nil {
		h.Logger.Printf("[UPLOAD][ERR] parse multipart: %v", err)
		h.JSON(w, http.StatusBadRequest, map[string]any{"error": "bad multipart: " + err.Error()})
		return
	}

	kind := r.FormValue("type")
	if kind == "" {
		kind = r.FormValue("action")
	}
	if kind == "" {
		h.JSON(w, http.StatusBadRequest, map[string]any{"error": "type is required"})
		return
	}

	tenant := auth.GetTenant(r.Context())
	if tenant == "" {
		tenant = strings.TrimSpace(r.FormValue("tenant_id"))
	}

	f, fh, err := r.FormFile("file")
	if err != nil {
		h.Logger.Printf("[UPLOAD][ERR] missing file: %v", err)
		h.JSON(w, http.StatusBadRequest, map[string]any{"error": "file is required"})
		return
	}
	defer f.Close()

	prefix := "imports"
	if tenant != "" {
		prefix += "/" + tenant
	}
	key := fmt.Sprintf("%s/%d-%s", prefix, time.Now().UnixNano(), path.Base(fh.Filename))

	meta, err := h.Files.Put(r.Context(), key, f, fh.Size, fh.Header.Get("Content-Type"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	s3path := fmt.Sprintf("s3://%s/%s", meta.Bucket, meta.Key)
	id, err := h.Imports.CreateRecord(r.Context(), models.ImportRecord{
		TenantID:  tenant,
		UserID:    actor(r),
		Type:      kind,
		Status:    models.ImportStatusParsed,
		Path:      s3path,
		Bucket:    meta.Bucket,
		Key:       meta.Key,
		SizeBytes: meta.Size,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.JSON(w, http.StatusCreated, map[string]any{"id": id, "path": s3path})
}
