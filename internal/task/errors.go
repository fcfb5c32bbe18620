package task

import "errors"

var (
	ErrStoreNil     = errors.New("task: store is nil")
	ErrEnqueuerNil  = errors.New("task: enqueuer is nil")
	ErrInvalidInput = errors.New("task: invalid input")
	ErrNotFound     = errors.New("task: not found")
	ErrForbidden    = errors.New("task: forbidden")
	ErrStoreFailure = errors.New("task: store failure")
)
