package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"retailops/internal/core/apperror"
)

// SQLSTATE codes handled explicitly.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
)

// IsRetryable reports whether err aborted a transaction that may succeed
// when re-run.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

// MapError translates constraint violations into AppErrors. Other errors
// are returned unchanged.
func MapError(err error, entity string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return apperror.NewDuplicate(entity, pgErr.ConstraintName, "").WithCause(err)
	case codeCheckViolation:
		return apperror.NewInvalidArgument(entity + " violates " + pgErr.ConstraintName).WithCause(err)
	}
	return err
}
