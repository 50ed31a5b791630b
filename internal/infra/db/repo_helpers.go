package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var errDBUnavailable = errors.New("db unavailable")

const (
	pgUniqueViolation     = "23505"
	pgNotNullViolation    = "23502"
	pgInvalidTextRepr     = "22P02"
	pgUndefinedTable      = "42P01"
	pgInsufficientRes     = "53"
	pgOperatorIntervent   = "57"
	pgConnectionException = "08"
)

// describeError turns a write error into a per-item reason.
func describeError(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err.Error()
	}
	switch {
	case pgErr.Code == pgUndefinedTable:
		return fmt.Sprintf("table missing (run migrations): %s", pgErr.Message)
	case pgErr.Code == pgUniqueViolation:
		return fmt.Sprintf("unique constraint %s violated", pgErr.ConstraintName)
	case pgErr.Code == pgNotNullViolation:
		return fmt.Sprintf("column %s must not be null", pgErr.ColumnName)
	case pgErr.Code == pgInvalidTextRepr:
		return fmt.Sprintf("invalid value: %s", pgErr.Message)
	default:
		return fmt.Sprintf("postgres %s: %s", pgErr.Code, pgErr.Message)
	}
}

// isUnavailable reports errors that affect the whole connection rather than
// one row.
func isUnavailable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return true
	}
	class := pgErr.Code
	if len(class) >= 2 {
		class = class[:2]
	}
	switch class {
	case pgInsufficientRes, pgOperatorIntervent, pgConnectionException:
		return true
	}
	return false
}
