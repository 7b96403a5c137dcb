package handlers

import (
	"net/http"
	"strconv"
)

func (h *Handlers) Case(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	eval, err := h.evalDate(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.ownDebt(r, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.Negotiation.Case(r.Context(), id, eval)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, c)
}

func (h *Handlers) Overdue(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("id")
	eval, err := h.evalDate(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.ownTenant(r, tenantID); err != nil {
		h.writeError(w, r, err)
		return
	}
	list, err := h.Negotiation.ListOverdue(r.Context(), tenantID, eval)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"tenant_id": tenantID, "count": len(list), "debts": list})
}

func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.ownDebt(r, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	if h.History == nil {
		h.JSON(w, http.StatusOK, map[string]any{"events": []any{}})
		return
	}
	events, err := h.History.ListByDebt(r.Context(), id, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"events": events})
}
