package database

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"edudebt_collection/internal/config/connections/postgres"
	"edudebt_collection/internal/models"

	"github.com/jackc/pgx/v5"
)

// AccessToken is an operator API token. Only the sha256 of the secret part is
// stored.
type AccessToken struct {
	ID        int64
	TokenHash string
	Subject   string
	TenantID  string
	Abilities string
	ExpiresAt *time.Time
}

type AccessTokenRepo struct {
	pg    *postgres.Postgres
	table string
}

func NewAccessTokenRepo(pg *postgres.Postgres) *AccessTokenRepo {
	return &AccessTokenRepo{pg: pg, table: "access_tokens"}
}

// SplitToken parses "<id>|<secret>" or a bare secret and returns the id (0
// when absent) and the hex sha256 of the secret.
func SplitToken(plain string) (int64, string, error) {
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return 0, "", errors.New("empty token")
	}
	var id int64
	secret := plain
	if idx := strings.Index(plain, "|"); idx > 0 {
		if n, err := strconv.ParseInt(plain[:idx], 10, 64); err == nil {
			id, secret = n, plain[idx+1:]
		}
	}
	sum := sha256.Sum256([]byte(secret))
	return id, fmt.Sprintf("%x", sum), nil
}

func (r *AccessTokenRepo) FindTokenByPlainToken(ctx context.Context, plainToken string) (*AccessToken, error) {
	id, hash, err := SplitToken(plainToken)
	if err != nil {
		return nil, err
	}

	var row pgx.Row
	if id > 0 {
		row = r.pg.Pool.QueryRow(ctx, `
			SELECT id, token, subject, tenant_id, abilities, expires_at
			FROM `+r.table+`
			WHERE id = $1 AND token = $2 AND (expires_at IS NULL OR expires_at > $3)
		`, id, hash, time.Now())
	} else {
		row = r.pg.Pool.QueryRow(ctx, `
			SELECT id, token, subject, tenant_id, abilities, expires_at
			FROM `+r.table+`
			WHERE token = $1 AND (expires_at IS NULL OR expires_at > $2)
			ORDER BY created_at DESC
			LIMIT 1
		`, hash, time.Now())
	}

	var t AccessToken
	if err := row.Scan(&t.ID, &t.TokenHash, &t.Subject, &t.TenantID, &t.Abilities, &t.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Printf("[TOKEN] no active token id=%d", id)
			return nil, fmt.Errorf("token: %w", models.ErrNotFound)
		}
		return nil, storeErr("find token", err)
	}

	if _, err := r.pg.Pool.Exec(ctx, `UPDATE `+r.table+` SET last_used_at = NOW() WHERE id = $1`, t.ID); err != nil {
		log.Printf("[TOKEN] touch id=%d err=%v", t.ID, err)
	}
	return &t, nil
}
