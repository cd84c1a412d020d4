// Package queueerrors implements the error taxonomy of spec §7: kinds,
// not types. The queue facade's lifecycle, enqueue and store
// operations return errors that wrap one of these kinds so callers can
// classify failures with errors.Is without depending on error message
// text; construction-time errors from queue.Build and the adapters'
// constructors are plain wrapped errors.
package queueerrors

import (
	"errors"
	"fmt"
)

// Kind groups errors the way spec.md §7 does, across state,
// configuration, channel, runtime, store, serialization and routine
// categories.
type Kind string

const (
	// State errors
	KindAlreadyRunning    Kind = "ALREADY_RUNNING"
	KindNotStarted        Kind = "NOT_STARTED"
	KindNotStopping       Kind = "NOT_STOPPING"
	KindStopped           Kind = "STOPPED"
	KindMissingJoinHandle Kind = "MISSING_JOIN_HANDLE"

	// Configuration errors
	KindInvalidThreadPoolSize Kind = "INVALID_THREAD_POOL_SIZE"

	// Channel errors
	KindCannotAccessSender   Kind = "CANNOT_ACCESS_SENDER"
	KindCannotAccessReceiver Kind = "CANNOT_ACCESS_RECEIVER"
	KindSendFailed           Kind = "SEND_FAILED"

	// Runtime errors
	KindCannotAccessRuntime Kind = "CANNOT_ACCESS_RUNTIME"
	KindCannotJoinThread    Kind = "CANNOT_JOIN_THREAD"

	// Store errors
	KindUnknownJob        Kind = "UNKNOWN_JOB"
	KindAlreadyExists     Kind = "ALREADY_EXISTS"
	KindNotFinished       Kind = "NOT_FINISHED"
	KindBusy              Kind = "BUSY"
	KindIllegalTransition Kind = "ILLEGAL_TRANSITION"

	// Serialization errors
	KindPrivateDataEncode Kind = "PRIVATE_DATA_ENCODE"
	KindPrivateDataDecode Kind = "PRIVATE_DATA_DECODE"

	// Routine error
	KindCustom Kind = "CUSTOM"
)

// Error is a kinded error: the kind drives caller classification, the
// wrapped cause (if any) carries the underlying detail.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, queueerrors.New(KindUnknownJob, "")) match any
// Error of the same Kind, regardless of message or cause.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds a bare Error of the given kind.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind around an existing cause.
func Wrap(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Custom wraps a routine-supplied error as KindCustom, per spec §4.5:
// "errors are classified as ErrorKind::Custom unless they originate
// from the store or channel, in which case the corresponding kind is
// used".
func Custom(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := KindOf(err); ok {
		return err
	}
	return Wrap(KindCustom, err.Error(), err)
}
