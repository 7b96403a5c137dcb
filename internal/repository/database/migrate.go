package database

import (
	"context"
	_ "embed"
	"log"

	"edudebt_collection/internal/config/connections/postgres"
)

//go:embed schema.sql
var schema string

// Migrate creates the collection tables when they are missing.
func Migrate(ctx context.Context, pg *postgres.Postgres) error {
	if _, err := pg.Pool.Exec(ctx, schema); err != nil {
		return storeErr("migrate", err)
	}
	log.Printf("[PG] schema ready")
	return nil
}
