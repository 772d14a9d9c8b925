package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/pinoerp/wms-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful
// messages. Errors that are not pq errors, or carry a code with no domain
// meaning, pass through unchanged so the cause is never lost.
func MapPQError(err error) error {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return err
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return mapUniqueConstraint(pqErr)

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
		return err
	}
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation, optionally scoped to a specific constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok || pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || strings.Contains(pqErr.Constraint, constraint)
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "qty_positive"):
		return errors.Validation(map[string]string{
			"quantity": "must be greater than zero",
		})

	case strings.Contains(constraint, "fulfilled_within_requested"):
		return errors.Validation(map[string]string{
			"fulfilled_qty": "must not exceed the requested quantity",
		})

	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "is not a recognized order status",
		})

	case strings.Contains(constraint, "pool_valid"):
		return errors.Validation(map[string]string{
			"pool": "must be one of: SALES_FLOOR, WAREHOUSE",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// mapUniqueConstraint creates a domain error for unique constraint violations.
func mapUniqueConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "order_number"):
		return errors.DuplicateNumber(detailValue(pqErr.Detail))
	case strings.Contains(constraint, "shipment_id"):
		return errors.Conflict("an order for this shipment already exists")
	case strings.Contains(constraint, "sku"):
		return errors.Conflict("a record with this sku already exists")
	default:
		return errors.Conflict("a record with these values already exists")
	}
}

// detailValue pulls the offending value out of a pq constraint detail
// such as "Key (order_number)=(EC-1) already exists.".
func detailValue(detail string) string {
	start := strings.Index(detail, ")=(")
	if start < 0 {
		return "unknown"
	}
	rest := detail[start+3:]
	end := strings.LastIndex(rest, ")")
	if end < 0 {
		return "unknown"
	}
	return rest[:end]
}
