package handlers

import (
	"context"
	"net/http"
	"time"

	"edudebt_collection/internal/models"
	"edudebt_collection/internal/services/negotiation"
)

type attemptRequest struct {
	ID      string     `json:"id"`
	Channel string     `json:"channel"`
	Notes   string     `json:"notes"`
	At      *time.Time `json:"at,omitempty"`
}

func (h *Handlers) LogAttempt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req attemptRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.ownDebt(r, id); err != nil {
		h.writeError(w, r, err)
		return
	}

	in := negotiation.AttemptInput{
		ID:      req.ID,
		Channel: models.Channel(req.Channel),
		Notes:   req.Notes,
		Author:  actor(r),
	}
	if req.At != nil {
		in.At = *req.At
	}
	a, debt, err := h.Negotiation.LogAttempt(r.Context(), id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.JSON(w, http.StatusCreated, map[string]any{"attempt": a, "debt": debt})
}

type petitionRequest struct {
	Notes string `json:"notes"`
}

func (h *Handlers) Petition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req petitionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.ownDebt(r, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.Negotiation.RecordPetition(r.Context(), id, actor(r), req.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.JSON(w, http.StatusCreated, map[string]any{"attempt": a})
}

type stepFunc func(ctx context.Context, debtID, actor string) (models.Debt, error)

func (h *Handlers) step(fn func(*negotiation.Service) stepFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := h.ownDebt(r, id); err != nil {
			h.writeError(w, r, err)
			return
		}
		debt, err := fn(h.Negotiation)(r.Context(), id, actor(r))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.JSON(w, http.StatusOK, map[string]any{"debt": debt})
	}
}

func (h *Handlers) Advance() http.HandlerFunc {
	return h.step(func(s *negotiation.Service) stepFunc { return s.Advance })
}

func (h *Handlers) Retreat() http.HandlerFunc {
	return h.step(func(s *negotiation.Service) stepFunc { return s.Retreat })
}

func (h *Handlers) Decline() http.HandlerFunc {
	return h.step(func(s *negotiation.Service) stepFunc { return s.Decline })
}
