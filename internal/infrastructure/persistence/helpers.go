package persistence

import (
	"errors"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/rfa/backend/internal/domain/shared"
)

// applyPagination applies page-based limits to a query. Page values below 1
// disable pagination so internal full scans stay possible.
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if page > 0 && pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	return query
}

// translateUniqueViolation maps a Postgres unique-constraint violation onto a
// domain error so handlers can answer 409 instead of 500. Any other error
// passes through unchanged.
func translateUniqueViolation(err error, code, message string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return shared.NewDomainError(code, message)
	}
	return err
}
