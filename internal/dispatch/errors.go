package dispatch

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrWaitTimeout marks a wait whose condition did not hold in time.
	ErrWaitTimeout = errors.New("condition not met before timeout")
	// ErrPredicateFailed marks a wait ended by an error or panic from the
	// predicate itself.
	ErrPredicateFailed = errors.New("wait predicate failed")
	// ErrWaitCanceled marks a wait abandoned because its context ended or
	// the coordinator was disposed.
	ErrWaitCanceled = errors.New("wait canceled")
	// ErrRenderFailed marks a wait ended by a failed render.
	ErrRenderFailed = errors.New("render failed while waiting")
	// ErrDisposed is returned for work submitted to a disposed coordinator.
	ErrDisposed = errors.New("coordinator disposed")
)

// WaitError is returned by WaitUntil. errors.Is matches its Kind; errors.As
// and Unwrap reach the Cause.
type WaitError struct {
	Kind        error
	Timeout     time.Duration
	Description string
	Cause       error
}

func (e *WaitError) Error() string {
	what := e.Description
	if what == "" {
		what = "condition"
	}
	var msg string
	switch e.Kind {
	case ErrWaitTimeout:
		msg = fmt.Sprintf("%s: waited %s for %s", ErrWaitTimeout, e.Timeout, what)
	default:
		msg = fmt.Sprintf("%s: %s", e.Kind, what)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *WaitError) Is(target error) bool {
	return target == e.Kind
}

func (e *WaitError) Unwrap() error {
	return e.Cause
}

// PanicError wraps a value recovered from a panicking action or predicate.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
