package handlers

import (
	"net/http"
	"time"

	"edudebt_collection/internal/services/agreement"
)

type agreementRequest struct {
	Installments int        `json:"installments"`
	Approved     bool       `json:"approved"`
	EvaluatedAt  *time.Time `json:"evaluated_at,omitempty"`
}

func (h *Handlers) CreateAgreement(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req agreementRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.ownDebt(r, id); err != nil {
		h.writeError(w, r, err)
		return
	}

	eval := h.now()
	if req.EvaluatedAt != nil {
		eval = *req.EvaluatedAt
	}
	agr, err := h.Agreements.Create(r.Context(), agreement.Request{
		DebtID:       id,
		Installments: req.Installments,
		EvaluatedAt:  eval,
		Approved:     req.Approved,
		Actor:        actor(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.JSON(w, http.StatusCreated, agr)
}

func (h *Handlers) Quote(w http.ResponseWriter, r *http.Request) {
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
	quotes, err := h.Agreements.Quotes(r.Context(), id, eval)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"debt_id": id, "evaluated_at": eval.Format("2006-01-02"), "options": quotes})
}
