package hooks

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned at subscribe time for an empty channel
	// or a nil handler. Handlers also wrap it when given arguments of the
	// wrong shape.
	ErrInvalidArgument = errors.New("hooks: invalid argument")

	// ErrHandlerFailure matches every *HandlerError.
	ErrHandlerFailure = errors.New("hooks: handler failure")
)

// HandlerError describes a subscriber that returned an error or panicked
// during Call. It is logged and traced, never returned from Call.
type HandlerError struct {
	Channel  Channel
	Position int
	Err      error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("hooks: handler %d on %q failed: %v", e.Position, e.Channel, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

func (e *HandlerError) Is(target error) bool { return target == ErrHandlerFailure }
