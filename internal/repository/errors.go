package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors shared by the SQL stores. Lookups return sql.ErrNoRows when nothing matches.
var (
	ErrVersionConflict = errors.New("version conflict")
	ErrDuplicate       = errors.New("duplicate record")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
