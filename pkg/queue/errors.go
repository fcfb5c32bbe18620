package queue

import "errors"

var (
	// ErrStorageNil is returned when a nil storage is provided to a constructor.
	ErrStorageNil = errors.New("queue storage cannot be nil")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload.
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrQueueUnavailable indicates the queue broker could not be reached.
	// Enqueue callers are expected to log it and continue; workers back off
	// and retry claiming.
	ErrQueueUnavailable = errors.New("queue storage unavailable")

	// ErrNoJobToClaim is returned by storages when no pending job is due.
	// It is a normal condition, not a failure.
	ErrNoJobToClaim = errors.New("no job available to claim")

	// ErrNoHandlers is returned when a worker is started without handlers.
	ErrNoHandlers = errors.New("no job handlers registered")

	// ErrJobNotFound is returned when a job or dead-letter entry does not exist.
	ErrJobNotFound = errors.New("job not found")
)

// permanentError marks a handler failure that must not be retried.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so the worker moves the job straight to the dead-letter
// queue instead of retrying. Use it for failures that cannot succeed on a
// later attempt, such as malformed payloads.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
