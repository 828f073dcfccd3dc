package persistence

import (
	"errors"
	"fmt"

	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes the repositories translate into domain errors
const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
	pgSerialization      = "40001"
	pgLockNotAvailable   = "55P03"
	pgObjectState        = "55000"
)

// Exclusion constraint that keeps reconciliation periods of one account disjoint
const reconciliationOverlapConstraint = "reconciliations_no_overlap"

// translateError maps driver errors onto domain errors. Anything it does not
// recognise is wrapped with the operation for context.
func translateError(err error, op string) error {
	if err == nil {
		return nil
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgExclusionViolation:
			if pgErr.ConstraintName == reconciliationOverlapConstraint {
				return shared.NewConflictError("RECONCILIATION_OVERLAP", "A reconciliation already covers part of this period")
			}
			return shared.NewConflictError("CONSTRAINT_VIOLATION", pgErr.Message)
		case pgUniqueViolation:
			return shared.NewConflictError("DUPLICATE", fmt.Sprintf("Duplicate value violates %s", pgErr.ConstraintName))
		case pgSerialization, pgLockNotAvailable:
			return shared.NewConflictError("CONCURRENT_MODIFICATION", "The record is being modified by another process")
		case pgObjectState:
			return shared.NewConflictError("TRANSACTION_RECONCILED", pgErr.Message)
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.NewConflictError("DUPLICATE", "Duplicate record")
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
