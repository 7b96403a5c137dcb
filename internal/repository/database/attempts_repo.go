package database

import (
	"context"
	"fmt"

	"edudebt_collection/internal/config/connections/postgres"
	"edudebt_collection/internal/models"

	"github.com/google/uuid"
)

type AttemptsRepo struct {
	pg    *postgres.Postgres
	table string
}

func NewAttemptsRepo(pg *postgres.Postgres) *AttemptsRepo {
	return &AttemptsRepo{
		pg:    pg,
		table: "collection_attempts",
	}
}

// AppendAttempt inserts the attempt; a replay with the same id on the same
// debt is a no-op, the same id on another debt is rejected.
func (r *AttemptsRepo) AppendAttempt(ctx context.Context, a models.Attempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	op := "append attempt " + a.ID
	query := `
		INSERT INTO ` + r.table + ` (id, debt_id, at, kind, channel, notes, author)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := r.pg.Pool.Exec(ctx, query,
		a.ID, a.DebtID, a.At, string(a.Kind), string(a.Channel), a.Notes, a.Author,
	)
	if err != nil {
		return storeErr(op, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var owner string
	err = r.pg.Pool.QueryRow(ctx, `SELECT debt_id::text FROM `+r.table+` WHERE id = $1::uuid`, a.ID).Scan(&owner)
	if err != nil {
		return storeErr(op, err)
	}
	if owner != a.DebtID {
		return fmt.Errorf("%w: attempt %s belongs to debt %s", models.ErrInvalidInput, a.ID, owner)
	}
	return nil
}

func (r *AttemptsRepo) ListAttempts(ctx context.Context, debtID string) ([]models.Attempt, error) {
	query := `
		SELECT id::text, debt_id::text, at, kind, channel, notes, author
		FROM ` + r.table + `
		WHERE debt_id = $1::uuid
		ORDER BY at, id
	`
	rows, err := r.pg.Pool.Query(ctx, query, debtID)
	if err != nil {
		return nil, storeErr("list attempts "+debtID, err)
	}
	defer rows.Close()

	var out []models.Attempt
	for rows.Next() {
		var (
			a             models.Attempt
			kind, channel string
		)
		if err := rows.Scan(&a.ID, &a.DebtID, &a.At, &kind, &channel, &a.Notes, &a.Author); err != nil {
			return nil, storeErr("list attempts "+debtID, err)
		}
		a.Kind, a.Channel = models.AttemptKind(kind), models.Channel(channel)
		out = append(out, a)
	}
	return out, storeErr("list attempts "+debtID, rows.Err())
}
