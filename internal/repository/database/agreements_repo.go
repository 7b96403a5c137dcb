package database

import (
	"context"
	"fmt"

	"edudebt_collection/internal/config/connections/postgres"
	"edudebt_collection/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type AgreementRepo struct {
	pg    *postgres.Postgres
	debts *DebtsRepo
	table string
}

func NewAgreementRepo(pg *postgres.Postgres, debts *DebtsRepo) *AgreementRepo {
	return &AgreementRepo{
		pg:    pg,
		debts: debts,
		table: "agreements",
	}
}

// SaveAgreement moves the debt to next and inserts the agreement in one
// transaction. Either both land or neither does.
func (r *AgreementRepo) SaveAgreement(ctx context.Context, debtID string, a models.Agreement, next models.Stage, expectedVersion int64) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	tx, err := r.pg.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storeErr("save agreement "+debtID, err)
	}
	defer tx.Rollback(ctx)

	if err := r.debts.versioned(ctx, tx, "save agreement", debtID, expectedVersion, `stage = $3`, string(next)); err != nil {
		return err
	}

	query := `
		INSERT INTO ` + r.table + ` (
			id, debt_id, installment_count, installment_value, updated_value,
			total_value, protocol, approved, created_by, created_at
		) VALUES (
			$1::uuid, $2::uuid, $3, $4::numeric, $5::numeric,
			$6::numeric, $7, $8, $9, $10
		)
		ON CONFLICT (debt_id) DO NOTHING
	`
	tag, err := tx.Exec(ctx, query,
		a.ID, debtID, a.InstallmentCount, a.InstallmentValue.String(), a.UpdatedValue.String(),
		a.TotalValue.String(), a.Protocol, a.Approved, a.CreatedBy, a.CreatedAt,
	)
	if err != nil {
		return storeErr("save agreement "+debtID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save agreement %s: %w", debtID, models.ErrAgreementExists)
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("save agreement "+debtID, err)
	}
	return nil
}

func (r *AgreementRepo) FindAgreement(ctx context.Context, debtID string) (models.Agreement, error) {
	query := `
		SELECT id::text, debt_id::text, installment_count, installment_value::text,
			updated_value::text, total_value::text, protocol, approved, created_by, created_at
		FROM ` + r.table + `
		WHERE debt_id = $1::uuid
	`
	var a models.Agreement
	var inst, updated, total string
	err := r.pg.Pool.QueryRow(ctx, query, debtID).Scan(
		&a.ID, &a.DebtID, &a.InstallmentCount, &inst,
		&updated, &total, &a.Protocol, &a.Approved, &a.CreatedBy, &a.CreatedAt,
	)
	if err != nil {
		return models.Agreement{}, storeErr("find agreement "+debtID, err)
	}

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&a.InstallmentValue, inst}, {&a.UpdatedValue, updated}, {&a.TotalValue, total}} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return models.Agreement{}, fmt.Errorf("agreement %s: %w", a.ID, err)
		}
	}
	return a, nil
}
