package repositories

import (
	"log/slog"

	"github.com/myrjola/flowcast/internal/errors"
)

var (
	ErrNotFound = errors.NewSentinel("not found")
	// ErrStore marks failures of the underlying database.
	ErrStore = errors.NewSentinel("record store failure")
)

// storeError keeps the database error in the chain next to ErrStore.
type storeError struct {
	cause error
}

func (e *storeError) Error() string {
	return e.cause.Error()
}

func (e *storeError) Unwrap() []error {
	return []error{ErrStore, e.cause}
}

func wrapStore(err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(&storeError{cause: err}, msg, attrs...)
}
