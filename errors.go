// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package sockmux

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrShutdown indicates the multiplexer has been shut down.
	ErrShutdown = errors.New("sockmux: multiplexer shut down")

	// ErrAlreadyRegistered indicates a descriptor is already in the descriptor table.
	ErrAlreadyRegistered = errors.New("sockmux: fd already registered")

	// ErrNotRegistered indicates a handle is not (or no longer) registered.
	ErrNotRegistered = errors.New("sockmux: handle not registered")

	// ErrFailed is the default cause passed to OnFail by [Handle.Fail].
	ErrFailed = errors.New("sockmux: handle failed")

	// ErrWouldBlock is returned by [Handle.Read] when no data is available.
	ErrWouldBlock = errors.New("sockmux: operation would block")

	// ErrInvalidArgument indicates a nil or otherwise unusable argument.
	ErrInvalidArgument = errors.New("sockmux: invalid argument")

	// ErrWrongGoroutine indicates an operation was attempted from a goroutine
	// other than the one currently inside Wait.
	ErrWrongGoroutine = errors.New("sockmux: called from outside the dispatch goroutine")

	// ErrReentrantWait indicates Wait was called from within a callback.
	ErrReentrantWait = errors.New("sockmux: cannot call Wait from within a callback")

	// ErrNotSupported is returned by New on platforms without epoll.
	ErrNotSupported = errors.New("sockmux: platform not supported")
)

// InvariantError is the panic value used for programmer errors, e.g. use
// after Shutdown. It is never recovered by the multiplexer.
type InvariantError struct {
	Err error
	Op  string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("%v (in %s)", e.Err, e.Op)
}

// Unwrap returns the underlying sentinel, for use with [errors.Is].
func (e *InvariantError) Unwrap() error {
	return e.Err
}

// SocketError is passed to OnFail when the kernel reports an error or hangup
// condition for a descriptor.
type SocketError struct {
	FD     int
	Events IOEvents
}

// Error implements the error interface.
func (e *SocketError) Error() string {
	return fmt.Sprintf("sockmux: unexpected event %s on fd:%d", e.Events, e.FD)
}

// Hangup reports whether the peer hung up.
func (e *SocketError) Hangup() bool {
	return e.Events&EventHangup != 0
}

// PanicError wraps a value recovered from a panicking callback.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("sockmux: callback panicked: %v", e.Value)
}

// Unwrap returns the panic value, if it is an error.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func invariant(op string, err error) *InvariantError {
	return &InvariantError{Op: op, Err: err}
}

// rethrowInvariant re-panics r if it is an invariant violation, which must
// reach the caller of the violated operation.
func rethrowInvariant(r any) {
	if err, ok := r.(*InvariantError); ok {
		panic(err)
	}
}
