package database

import (
	"context"
	"fmt"
	"time"

	"edudebt_collection/internal/config/connections/postgres"
	"edudebt_collection/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type DebtsRepo struct {
	pg    *postgres.Postgres
	table string
}

func NewDebtsRepo(pg *postgres.Postgres, table string) *DebtsRepo {
	if table == "" {
		table = "debts"
	}
	return &DebtsRepo{
		pg:    pg,
		table: table,
	}
}

const debtColumns = `
	id::text, tenant_id, debtor_id::text, school_id::text, number, amount::text, due_date,
	status, stage, commission::text, risk_score, version, created_at, updated_at`

func scanDebt(row pgx.Row) (models.Debt, error) {
	var (
		d          models.Debt
		amount     string
		commission *string
		stage      *string
		status     string
	)
	err := row.Scan(
		&d.ID, &d.TenantID, &d.DebtorID, &d.SchoolID, &d.Number, &amount, &d.DueDate,
		&status, &stage, &commission, &d.RiskScore, &d.Version, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return models.Debt{}, err
	}

	if d.Amount, err = decimal.NewFromString(amount); err != nil {
		return models.Debt{}, fmt.Errorf("debt %s amount %q: %w", d.ID, amount, err)
	}
	if commission != nil {
		c, err := decimal.NewFromString(*commission)
		if err != nil {
			return models.Debt{}, fmt.Errorf("debt %s commission %q: %w", d.ID, *commission, err)
		}
		d.Commission = &c
	}
	d.Status = models.Status(status)
	if stage != nil && *stage != "" {
		d.Stage = models.Stage(*stage).Ptr()
	}
	return d, nil
}

func (r *DebtsRepo) GetDebt(ctx context.Context, id string) (models.Debt, error) {
	query := `SELECT ` + debtColumns + ` FROM ` + r.table + ` WHERE id = $1::uuid`
	d, err := scanDebt(r.pg.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return models.Debt{}, storeErr("get debt "+id, err)
	}
	return d, nil
}

func (r *DebtsRepo) CreateDebt(ctx context.Context, d models.Debt) (models.Debt, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	var stage *string
	if d.Stage != nil {
		s := string(*d.Stage)
		stage = &s
	}

	query := `
		INSERT INTO ` + r.table + ` (
			id, tenant_id, debtor_id, school_id, number, amount, due_date,
			status, stage, risk_score, version, created_at, updated_at
		) VALUES (
			$1::uuid, $2, $3::uuid, $4::uuid, $5, $6::numeric, $7::date,
			$8, $9, $10, 1, NOW(), NOW()
		)
		RETURNING ` + debtColumns

	out, err := scanDebt(r.pg.Pool.QueryRow(ctx, query,
		d.ID, d.TenantID, d.DebtorID, d.SchoolID, d.Number, d.Amount.String(), d.DueDate,
		string(d.Status), stage, d.RiskScore,
	))
	if err != nil {
		return models.Debt{}, storeErr("create debt "+d.Number, err)
	}
	return out, nil
}

// versioned runs an UPDATE guarded by the expected version and tells a
// missing row apart from a stale one.
func (r *DebtsRepo) versioned(ctx context.Context, q querier, op, id string, expectedVersion int64, set string, args ...any) error {
	query := `UPDATE ` + r.table + ` SET ` + set + `, version = version + 1, updated_at = NOW()
		WHERE id = $1::uuid AND version = $2`

	tag, err := q.Exec(ctx, query, append([]any{id, expectedVersion}, args...)...)
	if err != nil {
		return storeErr(op+" "+id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM `+r.table+` WHERE id = $1::uuid)`, id).Scan(&exists); err != nil {
		return storeErr(op+" "+id, err)
	}
	if !exists {
		return fmt.Errorf("%s %s: %w", op, id, models.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, id, models.ErrVersionConflict)
}

func (r *DebtsRepo) UpdateDebtStage(ctx context.Context, id string, stage models.Stage, expectedVersion int64) error {
	return r.versioned(ctx, r.pg.Pool, "update stage", id, expectedVersion, `stage = $3`, string(stage))
}

func (r *DebtsRepo) MarkOverdue(ctx context.Context, id string, expectedVersion int64) error {
	return r.versioned(ctx, r.pg.Pool, "mark overdue", id, expectedVersion,
		`status = $3, stage = $4`, string(models.StatusOverdue), string(models.StageAwaitingContact))
}

// MarkPaid keeps a commission that was already stored.
func (r *DebtsRepo) MarkPaid(ctx context.Context, id string, commission decimal.Decimal, expectedVersion int64) error {
	return r.versioned(ctx, r.pg.Pool, "mark paid", id, expectedVersion,
		`status = $3, commission = COALESCE(commission, $4::numeric)`, string(models.StatusPaid), commission.String())
}

func (r *DebtsRepo) ListOverdueDebtsForTenant(ctx context.Context, tenantID string) ([]models.Debt, error) {
	query := `SELECT ` + debtColumns + ` FROM ` + r.table + `
		WHERE tenant_id = $1 AND status = $2
		ORDER BY due_date, number`
	return r.list(ctx, "list overdue "+tenantID, query, tenantID, string(models.StatusOverdue))
}

func (r *DebtsRepo) ListPendingDueBefore(ctx context.Context, asOf time.Time) ([]models.Debt, error) {
	query := `SELECT ` + debtColumns + ` FROM ` + r.table + `
		WHERE status = $1 AND due_date < $2::date
		ORDER BY due_date, number`
	return r.list(ctx, "list pending", query, string(models.StatusPending), asOf)
}

func (r *DebtsRepo) list(ctx context.Context, op, query string, args ...any) ([]models.Debt, error) {
	rows, err := r.pg.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	var out []models.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, storeErr(op, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}
