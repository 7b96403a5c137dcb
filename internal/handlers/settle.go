package handlers

import (
	"fmt"
	"net/http"

	"edudebt_collection/internal/models"

	"github.com/shopspring/decimal"
)

type settleRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

func (h *Handlers) Settle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req settleRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Amount == nil {
		h.writeError(w, r, fmt.Errorf("%w: amount is required", models.ErrInvalidInput))
		return
	}
	if err := h.ownDebt(r, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Settlement.Settle(r.Context(), id, *req.Amount, actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, res)
}
