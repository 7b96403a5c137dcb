package handlers

import (
	"context"
	"net/http"
	"time"
)

type healthResp struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors,omitempty"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var errs []string
	for _, c := range h.Checks {
		if c.Ping == nil {
			errs = append(errs, c.Name+" not initialized")
			continue
		}
		if err := c.Ping(ctx); err != nil {
			errs = append(errs, c.Name+" ping failed: "+err.Error())
		}
	}

	resp := healthResp{OK: len(errs) == 0, Errors: errs}
	if len(errs) > 0 {
		h.JSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	h.JSON(w, http.StatusOK, resp)
}
