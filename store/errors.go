package store

import (
	"errors"
	"fmt"
	"strings"

	"teamsched/apperr"

	"github.com/jackc/pgx/v5/pgconn"
)

type violation int

const (
	violationNone violation = iota
	violationUnique
	violationExclusion
	violationSerialization
	violationCheck
)

// Postgres SQLSTATE codes.
const (
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgExclusionViolation   = "23P01"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

func classify(err error) violation {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return violationUnique
		case pgExclusionViolation:
			return violationExclusion
		case pgSerializationFailure, pgDeadlockDetected:
			return violationSerialization
		case pgCheckViolation:
			return violationCheck
		}
		return violationNone
	}

	// SQLite errors only expose their text.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return violationUnique
	case strings.Contains(msg, "CHECK constraint failed"):
		return violationCheck
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "SQLITE_BUSY"):
		return violationSerialization
	}
	return violationNone
}

func isAppError(err error) bool {
	var (
		ve *apperr.ValidationError
		ce *apperr.ConflictError
		ne *apperr.NotFoundError
		pe *apperr.PersistenceError
	)
	return errors.As(err, &ve) || errors.As(err, &ce) || errors.As(err, &ne) ||
		errors.As(err, &pe) || errors.Is(err, apperr.ErrForbidden)
}

// translate maps a driver error to an apperr kind. onUnique names the
// conflict reported for a unique violation; nil treats it as a persistence failure.
func translate(op string, err error, onUnique error) error {
	if err == nil {
		return nil
	}
	if isAppError(err) {
		return err
	}

	switch classify(err) {
	case violationUnique:
		if onUnique != nil {
			return &apperr.ConflictError{Reason: onUnique, Cause: err}
		}
	case violationExclusion:
		return &apperr.ConflictError{Reason: apperr.ErrOverlap, Cause: err}
	case violationSerialization:
		return &apperr.ConflictError{Reason: apperr.ErrConcurrentUpdate, Cause: err}
	case violationCheck:
		return apperr.Validation(fmt.Sprintf("%s: value rejected by a data constraint", op))
	}
	return apperr.Persistence(op, err)
}
