package repository

import (
	"github.com/lib/pq"

	"library-catalog/internal/errors"
)

// Postgres SQLSTATE codes the repositories react to.
const (
	pqUniqueViolation      = "23505"
	pqCheckViolation       = "23514"
	pqForeignKeyViolation  = "23503"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
)

func pqError(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr, true
	}
	return nil, false
}

func isUniqueViolation(err error, constraint string) bool {
	pqErr, ok := pqError(err)
	if !ok || pqErr.Code != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

func isCheckViolation(err error) bool {
	pqErr, ok := pqError(err)
	return ok && pqErr.Code == pqCheckViolation
}

func isForeignKeyViolation(err error) bool {
	pqErr, ok := pqError(err)
	return ok && pqErr.Code == pqForeignKeyViolation
}

// isRetryable reports whether err means the atomic unit lost a race and can be
// run again from the start.
func isRetryable(err error) bool {
	pqErr, ok := pqError(err)
	if !ok {
		return false
	}
	switch pqErr.Code {
	case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable:
		return true
	}
	return false
}

// internalError hides driver errors behind an AppError, except the ones the
// store retries, which must stay visible to WithTransaction.
func internalError(message string, err error) error {
	if isRetryable(err) {
		return err
	}
	return errors.NewAppError(errors.InternalError, message).WithDetails(err.Error())
}
