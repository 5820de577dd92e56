// Package apperr holds the error kinds shared by services and handlers.
//
// Services wrap one of the sentinels with context:
//
//	return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, id)
//
// and handlers translate them to HTTP statuses with errors.Is. Any error that
// wraps none of them is treated as an internal failure.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthorized    = errors.New("unauthorized")
)

// IsClientError reports whether err is caused by the caller's input rather
// than by a backend failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrUnauthorized)
}
