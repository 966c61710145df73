package database

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a requested stock or observation does not exist
var ErrNotFound = errors.New("not found")

// PersistenceKind classifies a storage failure
type PersistenceKind string

// Persistence failure kinds
const (
	KindConnectionFailure   PersistenceKind = "connection_failure"
	KindConstraintViolation PersistenceKind = "constraint_violation"
)

// PersistenceError wraps a storage failure. A failed write never leaves a
// partially applied batch behind.
type PersistenceError struct {
	Kind PersistenceKind
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// integrity_constraint_violation
const pqClassIntegrity = "23"

func newPersistenceError(op string, err error) error {
	kind := KindConnectionFailure
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == pqClassIntegrity {
		kind = KindConstraintViolation
	}
	return &PersistenceError{Kind: kind, Op: op, Err: err}
}
