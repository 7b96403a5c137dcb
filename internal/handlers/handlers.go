package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"edudebt_collection/internal/models"
	"edudebt_collection/internal/ports"
	"edudebt_collection/internal/services/agreement"
	"edudebt_collection/internal/services/importer"
	"edudebt_collection/internal/services/negotiation"
	"edudebt_collection/internal/services/settlement"
	auth "edudebt_collection/internal/transport/auth"
)

// Check is one named dependency check for /health.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type Handlers struct {
	Debts       ports.DebtStore
	Negotiation *negotiation.Service
	Agreements  *agreement.Service
	Settlement  *settlement.Service
	Importer    *importer.Service
	Imports     ports.ImportLog
	Files       ports.FileStore
	History     ports.EventHistory
	Checks      []Check

	ImportTimeout time.Duration
	Logger        *log.Logger
	Now           func() time.Time
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handlers) JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the collection error kinds onto HTTP statuses.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrInvalidInstallmentCount):
		code = http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, models.ErrStageTransitionRejected):
		code = http.StatusConflict
	case errors.Is(err, models.ErrStoreUnavailable):
		code = http.StatusServiceUnavailable
	}
	if code >= 500 {
		h.Logger.Printf("[HTTP][ERR] %s %s: %v", r.Method, r.URL.Path, err)
	}
	h.JSON(w, code, map[string]string{"error": err.Error()})
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.Logger.Printf("[HTTP][REQ][ERR] bad JSON: %v", err)
		h.JSON(w, http.StatusBadRequest, map[string]string{"error": "bad JSON: " + err.Error()})
		return false
	}
	return true
}

func actor(r *http.Request) string {
	if a, err := auth.GetActor(r.Context()); err == nil {
		return a
	}
	return "anonymous"
}

// evalDate reads ?at=YYYY-MM-DD, defaulting to now.
func (h *Handlers) evalDate(r *http.Request) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("at"))
	if raw == "" {
		return h.now(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: at must be YYYY-MM-DD", models.ErrInvalidInput)
	}
	return t, nil
}

// ownDebt hides debts of other tenants from tenant-bound callers.
func (h *Handlers) ownDebt(r *http.Request, debtID string) error {
	tenant := auth.GetTenant(r.Context())
	if tenant == "" || h.Debts == nil {
		return nil
	}
	d, err := h.Debts.GetDebt(r.Context(), debtID)
	if err != nil {
		return err
	}
	if d.TenantID != tenant {
		return fmt.Errorf("debt %s: %w", debtID, models.ErrNotFound)
	}
	return nil
}

func (h *Handlers) ownTenant(r *http.Request, tenantID string) error {
	if tenant := auth.GetTenant(r.Context()); tenant != "" && tenant != tenantID {
		return fmt.Errorf("tenant %s: %w", tenantID, models.ErrNotFound)
	}
	return nil
}
