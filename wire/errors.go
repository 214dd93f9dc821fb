package wire

import (
	"errors"
	"fmt"
)

// Sentinel errors for registration, skip and publish validation.
var (
	// ErrChannelRequired is returned when no channel name is supplied.
	ErrChannelRequired = errors.New("channel name required, use \"*\" to match any channel")

	// ErrBadChannel is returned when the wildcard marker is not the last character.
	ErrBadChannel = errors.New("wildcard must be the last character of a channel name")

	// ErrWildcardPublish is returned (through the dispatch outcome) when a
	// publish target contains the wildcard marker.
	ErrWildcardPublish = errors.New("wildcard not allowed in publish channel")

	// ErrNilHandler is returned when a nil or shapeless handler is registered.
	ErrNilHandler = errors.New("handler must be built with Sync, Async, Callback or Coroutine")

	// ErrBadPriority is returned when Before/After receive a priority of the wrong sign.
	ErrBadPriority = errors.New("priority sign does not match registration kind")

	// ErrUnknownHook is returned when hooking an unsupported lifecycle event.
	ErrUnknownHook = errors.New("unknown hook event")

	// ErrNilHook is returned when a nil hook function is added.
	ErrNilHook = errors.New("hook function required")

	// ErrSkipNames is returned when Skip is called without handler names.
	ErrSkipNames = errors.New("at least one handler name required")

	// ErrHandlerPanic is matched by every *PanicError.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrHandlerTimeout is returned when a handler does not settle within its timeout.
	ErrHandlerTimeout = errors.New("handler timeout exceeded")
)

// ValidationError describes a rejected registration, skip, hook or publish target.
type ValidationError struct {
	Op      string
	Channel string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Channel == "" {
		return fmt.Sprintf("wire: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("wire: %s %q: %v", e.Op, e.Channel, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// HandlerError wraps the first failure produced by a handler during a dispatch.
type HandlerError struct {
	// Channel is the concrete channel being dispatched when the handler failed.
	Channel string

	// Handler is the display name of the failing handler.
	Handler string

	// Err is the handler's own error.
	Err error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s on channel %q: %v", e.Handler, e.Channel, e.Err)
}

// Unwrap returns the handler's own error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError wraps a value recovered from a panicking handler or hook.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}

func validationErr(op, channel string, err error) error {
	return &ValidationError{Op: op, Channel: channel, Err: err}
}
