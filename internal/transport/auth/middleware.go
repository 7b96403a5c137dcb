package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"edudebt_collection/internal/repository/database"
)

type ctxKey string

const (
	ActorKey  ctxKey = "actor"
	TenantKey ctxKey = "tenant"
)

type TokenRepo interface {
	FindTokenByPlainToken(ctx context.Context, plainToken string) (*database.AccessToken, error)
}

// BearerMiddleware resolves the bearer token (or the ?token= query parameter)
// and stores the token's subject and tenant in the request context.
func BearerMiddleware(tokenRepo TokenRepo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			var tok *database.AccessToken
			for _, plain := range candidates(r) {
				t, err := tokenRepo.FindTokenByPlainToken(r.Context(), plain)
				if err == nil {
					tok = t
					break
				}
				log.Printf("[AUTH] token lookup error: %v", err)
			}

			if tok == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if tok.ExpiresAt != nil && tok.ExpiresAt.Before(time.Now()) {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}

			ctx := WithIdentity(r.Context(), tok.Subject, tok.TenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Anonymous tags every request with a fixed actor. Used when auth is disabled.
func Anonymous(actor string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), actor, "")))
		})
	}
}

func candidates(r *http.Request) []string {
	var out []string
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if t := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); t != "" {
			out = append(out, t)
		}
	}
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		out = append(out, t)
	}
	return out
}

func WithIdentity(ctx context.Context, actor, tenant string) context.Context {
	ctx = context.WithValue(ctx, ActorKey, actor)
	return context.WithValue(ctx, TenantKey, tenant)
}

func GetActor(ctx context.Context) (string, error) {
	v, ok := ctx.Value(ActorKey).(string)
	if !ok || v == "" {
		return "", errors.New("actor not found in context")
	}
	return v, nil
}

// GetTenant returns the tenant the caller's token is bound to, or "" for
// cross-tenant operators.
func GetTenant(ctx context.Context) string {
	v, _ := ctx.Value(TenantKey).(string)
	return v
}
