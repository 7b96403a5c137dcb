package database

import (
	"context"

	"edudebt_collection/internal/config/connections/postgres"

	"github.com/shopspring/decimal"
)

type TenantSettingsRepo struct {
	pg    *postgres.Postgres
	table string
}

func NewTenantSettingsRepo(pg *postgres.Postgres) *TenantSettingsRepo {
	return &TenantSettingsRepo{
		pg:    pg,
		table: "tenant_settings",
	}
}

// GetCommissionPercentage returns models.ErrNotFound when the tenant has no
// percentage configured.
func (r *TenantSettingsRepo) GetCommissionPercentage(ctx context.Context, tenantID string) (decimal.Decimal, error) {
	query := `
		SELECT commission_percentage::text
		FROM ` + r.table + `
		WHERE tenant_id = $1 AND commission_percentage IS NOT NULL
	`
	var pct string
	if err := r.pg.Pool.QueryRow(ctx, query, tenantID).Scan(&pct); err != nil {
		return decimal.Zero, storeErr("commission percentage "+tenantID, err)
	}
	return decimal.NewFromString(pct)
}

func (r *TenantSettingsRepo) SetCommissionPercentage(ctx context.Context, tenantID string, pct decimal.Decimal) error {
	query := `
		INSERT INTO ` + r.table + ` (tenant_id, commission_percentage, updated_at)
		VALUES ($1, $2::numeric, NOW())
		ON CONFLICT (tenant_id) DO UPDATE SET
			commission_percentage = EXCLUDED.commission_percentage,
			updated_at = NOW()
	`
	_, err := r.pg.Pool.Exec(ctx, query, tenantID, pct.String())
	return storeErr("set commission percentage "+tenantID, err)
}
