package database

import (
	"errors"
	"fmt"

	"edudebt_collection/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// storeErr maps driver errors onto the collection error kinds.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22P02", "23502", "23503", "23505", "23514":
			return fmt.Errorf("%s: %w: %s", op, models.ErrInvalidInput, pgErr.Message)
		}
	}
	return models.StoreError(op, err)
}
