package notification

import "errors"

var (
	ErrStoreNil     = errors.New("notification: store is nil")
	ErrInvalidInput = errors.New("notification: invalid input")
	ErrNotFound     = errors.New("notification: not found")
	ErrForbidden    = errors.New("notification: forbidden")
	ErrStoreFailure = errors.New("notification: store failure")
)
