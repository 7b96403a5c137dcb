package database

import (
	"context"
	"fmt"
	"strings"

	"edudebt_collection/internal/config/connections/postgres"
	"edudebt_collection/internal/models"
)

type DirectoryRepo struct {
	pg      *postgres.Postgres
	debtors string
	schools string
}

func NewDirectoryRepo(pg *postgres.Postgres) *DirectoryRepo {
	return &DirectoryRepo{
		pg:      pg,
		debtors: "debtors",
		schools: "schools",
	}
}

func (r *DirectoryRepo) GetDebtor(ctx context.Context, id string) (models.Debtor, error) {
	query := `
		SELECT id::text, full_name, COALESCE(document, ''), COALESCE(email, ''), COALESCE(phone, '')
		FROM ` + r.debtors + `
		WHERE id = $1::uuid
	`
	var d models.Debtor
	err := r.pg.Pool.QueryRow(ctx, query, id).Scan(&d.ID, &d.FullName, &d.Document, &d.Email, &d.Phone)
	if err != nil {
		return models.Debtor{}, storeErr("get debtor "+id, err)
	}
	return d, nil
}

func (r *DirectoryRepo) GetSchool(ctx context.Context, id string) (models.School, error) {
	query := `SELECT id::text, tenant_id, name FROM ` + r.schools + ` WHERE id = $1::uuid`
	var s models.School
	if err := r.pg.Pool.QueryRow(ctx, query, id).Scan(&s.ID, &s.TenantID, &s.Name); err != nil {
		return models.School{}, storeErr("get school "+id, err)
	}
	return s, nil
}

// UpsertDebtor keys debtors by document and keeps existing values when the
// incoming ones are blank.
func (r *DirectoryRepo) UpsertDebtor(ctx context.Context, d models.Debtor) (models.Debtor, error) {
	d.FullName = strings.Join(strings.Fields(d.FullName), " ")
	d.Document = strings.TrimSpace(d.Document)
	if d.Document == "" {
		return models.Debtor{}, fmt.Errorf("upsert debtor: %w: empty document", models.ErrInvalidInput)
	}

	query := `
		INSERT INTO ` + r.debtors + ` (id, full_name, document, email, phone, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, NULLIF($3, ''), NULLIF($4, ''), NOW(), NOW())
		ON CONFLICT (document) DO UPDATE SET
			full_name = COALESCE(NULLIF(EXCLUDED.full_name, ''), ` + r.debtors + `.full_name),
			email = COALESCE(EXCLUDED.email, ` + r.debtors + `.email),
			phone = COALESCE(EXCLUDED.phone, ` + r.debtors + `.phone),
			updated_at = NOW()
		RETURNING id::text, full_name, document, COALESCE(email, ''), COALESCE(phone, '')
	`
	var out models.Debtor
	err := r.pg.Pool.QueryRow(ctx, query, d.FullName, d.Document, d.Email, d.Phone).
		Scan(&out.ID, &out.FullName, &out.Document, &out.Email, &out.Phone)
	if err != nil {
		return models.Debtor{}, storeErr("upsert debtor "+d.Document, err)
	}
	return out, nil
}
