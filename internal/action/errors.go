package action

import (
	"errors"
	"fmt"

	"github.com/nhle/worklist/internal/model"
)

// ErrUnsupportedAction matches any DispatchError of KindUnsupportedAction.
var ErrUnsupportedAction = errors.New("unsupported action")

// ErrorKind classifies a dispatch failure.
type ErrorKind int

const (
	// KindUnsupportedAction means the action has no meaning for the
	// source. No remote call was made.
	KindUnsupportedAction ErrorKind = iota + 1

	// KindUnknownSource means no adapter is registered for the source.
	KindUnknownSource

	// KindInvalidRequest means the request itself is incomplete.
	KindInvalidRequest

	// KindInvalidDuration means the snooze would not wake in the future.
	// Nothing was written.
	KindInvalidDuration

	// KindAdapterFailure wraps a *source.AdapterError from the remote
	// call.
	KindAdapterFailure

	// KindStoreFailure wraps a snooze store error.
	KindStoreFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnsupportedAction:
		return "unsupported_action"
	case KindUnknownSource:
		return "unknown_source"
	case KindInvalidRequest:
		return "invalid_request"
	case KindInvalidDuration:
		return "invalid_duration"
	case KindAdapterFailure:
		return "adapter_failure"
	case KindStoreFailure:
		return "store_failure"
	default:
		return "unknown"
	}
}

// DispatchError is returned by PerformAction.
type DispatchError struct {
	Action Action
	Key    model.TaskKey
	Kind   ErrorKind
	Err    error
}

func (e *DispatchError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Action, e.Key, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrUnsupportedAction) match by kind.
func (e *DispatchError) Is(target error) bool {
	return target == ErrUnsupportedAction && e.Kind == KindUnsupportedAction
}

// KindOf returns the ErrorKind of the first DispatchError in err's chain,
// or 0 if there is none.
func KindOf(err error) ErrorKind {
	var dispatchErr *DispatchError
	if errors.As(err, &dispatchErr) {
		return dispatchErr.Kind
	}
	return 0
}
