package database

import (
	"strings"

	"github.com/lib/pq"

	"github.com/leaveflow/lms-core/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "total_days_positive"):
		return errors.Validation(map[string]string{
			"total_days": "must be greater than zero",
		})

	case strings.Contains(constraint, "end_date_after_start"):
		return errors.Validation(map[string]string{
			"end_date": "must not be before start_date",
		})

	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "not a recognized status for this entity",
		})

	case strings.Contains(constraint, "accrual_amount_non_negative"):
		return errors.Validation(map[string]string{
			"accrual_amount": "must not be negative",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "leave_types_org_code"):
		return "a leave type with this code already exists for this organization"
	case strings.Contains(constraint, "leave_request_dates_unique"):
		return "this request already has a row for that date"
	case strings.Contains(constraint, "workflow_step_order"):
		return "a step with this order already exists for this request"
	case strings.Contains(constraint, "vacation_balance") || strings.Contains(constraint, "leave_balances"):
		return "a balance record already exists for this user, leave type and period"
	default:
		return "a record with these values already exists"
	}
}
