package e

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func Wrap(message string, err error) error {
	return fmt.Errorf("%s: %w", message, err)
}

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInternal        = errors.New("internal error")
	ErrDeadline        = errors.New("deadline exceeded")
	ErrCanceled        = errors.New("context canceled")
	ErrUniqueViolation = errors.New("unique violation")
	ErrDependency      = errors.New("dependency unavailable")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrQueueEmpty      = errors.New("sms queue is empty")
)

// Domain errors wrap one of the classes above so transports only switch on classes.
var (
	ErrAlreadyFinalized          = fmt.Errorf("report already finalized: %w", ErrConflict)
	ErrMissingMedia              = fmt.Errorf("media is required: %w", ErrInvalidInput)
	ErrMissingLocation           = fmt.Errorf("valid location is required: %w", ErrInvalidInput)
	ErrInvalidCoordinates        = fmt.Errorf("invalid coordinates: %w", ErrInvalidInput)
	ErrClassificationUnavailable = fmt.Errorf("classifier unavailable: %w", ErrDependency)
	ErrInvalidCredentials        = fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
	ErrEmailTaken                = fmt.Errorf("email already registered: %w", ErrConflict)
)

// Retryable reports whether the caller may retry the same request later.
func Retryable(err error) bool {
	return errors.Is(err, ErrDependency) || errors.Is(err, ErrDeadline)
}

func WrapError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrDeadline)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, ErrCanceled)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", op, ErrUniqueViolation)
		case "23503", "23514", "22P02":
			return fmt.Errorf("%s: %w", op, ErrInvalidInput)
		default:
			return fmt.Errorf("%s: pg error %s: %w", op, pgErr.Code, ErrInternal)
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, ErrInternal)
}
