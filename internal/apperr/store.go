package apperr

import (
	"context"
	"errors"

	"github.com/jarvis/MissionControl/api/internal/db"
)

// FromStore translates a db error into the taxonomy. notFound is the message
// used when the record is absent.
func FromStore(err error, notFound string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, db.ErrNotFound):
		return NotFound(notFound)
	case errors.Is(err, db.ErrUniqueViolation):
		return &Error{Kind: KindConflict, Message: "record already exists", Err: err}
	case errors.Is(err, db.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return Unavailable(err)
	default:
		return Internal("storage failure", err)
	}
}
