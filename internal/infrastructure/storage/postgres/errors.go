package postgres

import (
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"stockledger/internal/core/apperror"
)

// SQLSTATE codes the ledger reacts to.
const (
	CodeUniqueViolation = "23505"
	CodeCheckViolation  = "23514"
)

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || pgxscan.NotFound(err)
}

// PgErrorCode returns the SQLSTATE of err, or "" for non-server errors.
func PgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// ConstraintName returns the violated constraint, if any.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// MapError converts driver errors into domain errors where a meaning exists
// and wraps everything else with op.
func MapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}

	switch PgErrorCode(err) {
	case CodeCheckViolation:
		return apperror.NewInvalidAmount("stock quantities violate a ledger constraint").
			WithDetail("constraint", ConstraintName(err)).
			WithCause(err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
