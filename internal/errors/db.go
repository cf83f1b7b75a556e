package errors

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapDBError maps outcome-journal database errors to AgentError instances.
// Journal writes are best-effort: callers log the mapped error and continue.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AgentError{Code: ErrCodeTimeout, Message: "journal write timed out", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &AgentError{Code: ErrCodeCanceled, Message: "journal write canceled", Cause: err}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &AgentError{Code: ErrCodeInternal, Message: "journal row not found", Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			// Re-recording the same range outcome is harmless.
			return &AgentError{Code: ErrCodeConflict, Message: "outcome already journaled", Cause: pgErr}
		case pgerrcode.InsufficientPrivilege, pgerrcode.InvalidAuthorizationSpecification:
			return &AgentError{Code: ErrCodeConfiguration, Message: "journal database rejected credentials", Cause: pgErr}
		default:
			return &AgentError{Code: ErrCodeInternal, Message: "journal database error", Cause: pgErr}
		}
	}

	return err
}
