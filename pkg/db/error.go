package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	// PostgreSQL (error code 23505)
	if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
		return true
	}

	// MySQL (error code 1062)
	if strings.Contains(err.Error(), "Error 1062") {
		return true
	}

	// SQLite (error code 2067)
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return true
	}

	return false
}

// IsIntegrityErr reports whether err is a referential or uniqueness
// violation. Used by the audit capture plugin to decide whether a failed log
// write must abort the surrounding transaction.
func IsIntegrityErr(err error) bool {
	if err == nil {
		return false
	}

	if IsDuplicateKeyErr(err) {
		return true
	}

	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}

	// PostgreSQL (error code 23503)
	if strings.Contains(err.Error(), "violates foreign key constraint") {
		return true
	}

	// MySQL (error codes 1451/1452)
	if strings.Contains(err.Error(), "a foreign key constraint fails") {
		return true
	}

	// SQLite
	if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
		return true
	}

	// PostgreSQL NOT NULL (error code 23502)
	if strings.Contains(err.Error(), "violates not-null constraint") {
		return true
	}

	return false
}
