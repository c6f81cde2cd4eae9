package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	// User-facing validation outcomes. The command layer renders these
	// directly as reply text, so they must stay deterministic.
	ErrUnsupportedContext = fmt.Errorf("groups currently are not supported")
	ErrUnknownChannel     = fmt.Errorf("unknown channel")
	ErrAmbiguousChannel   = fmt.Errorf("ambiguous channel name")
	ErrAlreadySubscribed  = fmt.Errorf("already subscribed")
	ErrNotSubscribed      = fmt.Errorf("not subscribed")
	ErrSubscriptionLimit  = fmt.Errorf("subscription limit reached")

	// Internal signals.
	ErrCursorRegression = fmt.Errorf("cursor would regress")
	ErrWorkerPanic      = fmt.Errorf("worker panic")
)

// TransientError marks a delivery failure worth retrying with backoff.
type TransientError struct {
	Err error
}

func (e TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }
func (e TransientError) Unwrap() error { return e.Err }

// PermanentError marks a delivery failure that must not be retried.
// It is recorded and surfaced to logs only; fanout is asynchronous and
// the original subscriber is never notified interactively.
type PermanentError struct {
	Err error
}

func (e PermanentError) Error() string { return fmt.Sprintf("permanent: %v", e.Err) }
func (e PermanentError) Unwrap() error { return e.Err }

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return TransientError{Err: err}
}

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return PermanentError{Err: err}
}

func IsTransient(err error) bool {
	var t TransientError
	return stderrors.As(err, &t)
}

func IsPermanent(err error) bool {
	var p PermanentError
	return stderrors.As(err, &p)
}
