package storage

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"DecreeWatcher/internal/domain"
)

// integrityViolation is the SQLSTATE class for constraint violations.
const integrityViolation = "23"

// classify maps a driver error onto the storage error taxonomy.
// Errors that already carry a domain storage error pass through unchanged.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrStorageUnavailable) || errors.Is(err, domain.ErrStorageIntegrity) {
		return err
	}
	if isIntegrityViolation(err) {
		return fmt.Errorf("%w: %s: %w", domain.ErrStorageIntegrity, op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStorageUnavailable, op, err)
}

func isIntegrityViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code.Class()) == integrityViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
