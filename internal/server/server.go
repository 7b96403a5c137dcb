package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"edudebt_collection/internal/handlers"
)

type Server struct {
	httpServer *http.Server
}

// Routes registers the collection API. Everything except /health goes through
// authn.
func Routes(h *handlers.Handlers, authn func(http.Handler) http.Handler) http.Handler {
	if authn == nil {
		authn = func(next http.Handler) http.Handler { return next }
	}
	api := http.NewServeMux()

	api.HandleFunc("GET /debts/{id}/case", h.Case)
	api.HandleFunc("GET /debts/{id}/events", h.Events)
	api.HandleFunc("POST /debts/{id}/attempts", h.LogAttempt)
	api.HandleFunc("POST /debts/{id}/petition", h.Petition)
	api.HandleFunc("POST /debts/{id}/stage/advance", h.Advance())
	api.HandleFunc("POST /debts/{id}/stage/retreat", h.Retreat())
	api.HandleFunc("POST /debts/{id}/decline", h.Decline())
	api.HandleFunc("POST /debts/{id}/agreement", h.CreateAgreement)
	api.HandleFunc("GET /debts/{id}/agreement/quote", h.Quote)
	api.HandleFunc("POST /debts/{id}/settle", h.Settle)
	api.HandleFunc("GET /tenants/{id}/overdue", h.Overdue)
	api.HandleFunc("POST /import", h.Import)
	api.HandleFunc("/upload", h.Upload)
	api.HandleFunc("GET /imports/{id}", h.ImportStatus)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("/", authn(api))
	return mux
}

func NewServer(port string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%s", port),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}
