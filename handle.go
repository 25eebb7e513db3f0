// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package sockmux

import (
	"fmt"
	"io"
)

// Handler receives the events of one registered socket. Methods are invoked
// on the dispatch goroutine, and must not block.
type Handler interface {
	// OnRead is invoked when the socket is readable. It typically calls
	// Handle.Read until ErrWouldBlock. Readability is level-triggered, so
	// data left unread is reported again by the next Wait.
	OnRead(h *Handle)

	// OnFail is invoked at most once, when the socket fails (OS error,
	// hangup, end of stream, Handle.Fail, or Shutdown). The handle is
	// deregistered and closed as soon as OnFail returns.
	OnFail(h *Handle, err error)
}

// DrainHandler may be implemented by a Handler to be notified each time
// both outbound queues have been fully written.
type DrainHandler interface {
	OnDrain(h *Handle)
}

// HandlerFuncs adapts plain functions to Handler (and DrainHandler). Nil
// fields are ignored.
type HandlerFuncs struct {
	Read  func(h *Handle)
	Fail  func(h *Handle, err error)
	Drain func(h *Handle)
}

var (
	_ Handler      = HandlerFuncs{}
	_ DrainHandler = HandlerFuncs{}
)

// OnRead calls x.Read, if set.
func (x HandlerFuncs) OnRead(h *Handle) {
	if x.Read != nil {
		x.Read(h)
	}
}

// OnFail calls x.Fail, if set.
func (x HandlerFuncs) OnFail(h *Handle, err error) {
	if x.Fail != nil {
		x.Fail(h, err)
	}
}

// OnDrain calls x.Drain, if set.
func (x HandlerFuncs) OnDrain(h *Handle) {
	if x.Drain != nil {
		x.Drain(h)
	}
}

// Handle is a socket registered with a Multiplexer, and its pending
// outbound data. It is owned by the Multiplexer, and must only be used from
// the dispatch goroutine.
type Handle struct { // betteralign:ignore
	mux      *Multiplexer
	handler  Handler
	failErr  error
	priority outQueue
	normal   outQueue
	fd       int
	interest IOEvents
	// failed is set once a failure is known, closed once deregistered
	failed   bool
	notified bool
	closed   bool
}

func newHandle(m *Multiplexer, fd int, handler Handler) *Handle {
	return &Handle{
		mux:      m,
		handler:  handler,
		priority: newOutQueue(),
		normal:   newOutQueue(),
		fd:       fd,
	}
}

// FD returns the registered file descriptor. It remains the same after the
// handle is closed, but must no longer be used.
func (h *Handle) FD() int {
	return h.fd
}

// Multiplexer returns the owning multiplexer.
func (h *Handle) Multiplexer() *Multiplexer {
	return h.mux
}

// Registered reports whether the handle is still in the descriptor table.
func (h *Handle) Registered() bool {
	return !h.closed
}

// Failed reports whether the handle has failed (or is about to).
func (h *Handle) Failed() bool {
	return h.failed
}

// Pending returns the number of queued outbound bytes, across both queues.
func (h *Handle) Pending() int {
	return h.priority.size + h.normal.size
}

// Send queues a copy of b for writing, to the priority queue if priority is
// set, otherwise the normal queue, and arms write interest. It never blocks.
// Write errors surface later, via OnFail.
//
// Send is a no-op once the handle has failed or been unregistered.
func (h *Handle) Send(b []byte, priority bool) {
	if h.failed || h.closed || len(b) == 0 {
		return
	}
	buf := make([]byte, len(b))
	copy(buf, b)
	if priority {
		h.priority.push(buf)
	} else {
		h.normal.push(buf)
	}
	if h.interest&EventWrite == 0 {
		h.mux.setInterest(h, h.interest|EventWrite)
	}
}

// Read reads available data from the socket, without blocking. It returns
// ErrWouldBlock if nothing is available, and io.EOF at end of stream. Once
// the handle has failed, the failure cause is returned.
//
// End of stream, or any other read error, fails the handle: OnFail is
// invoked once the current callback returns.
func (h *Handle) Read(p []byte) (int, error) {
	if h.failed || h.closed {
		if h.failErr != nil {
			return 0, h.failErr
		}
		return 0, ErrNotRegistered
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := readFD(h.fd, p)
	switch {
	case err == ErrWouldBlock:
		return 0, err
	case err != nil:
		err = fmt.Errorf("sockmux: read fd %d: %w", h.fd, err)
		h.mux.failLater(h, err)
		return 0, err
	case n == 0:
		h.mux.failLater(h, io.EOF)
		return 0, io.EOF
	}
	h.mux.counters.bytesRead.Add(uint64(n))
	return n, nil
}

// Fail marks the handle as failed, e.g. on a protocol error. OnFail is
// invoked with err (ErrFailed if nil) on the dispatch goroutine, once the
// current callback returns, or by the next Wait. Fail is a no-op if the
// handle has already failed or been unregistered.
func (h *Handle) Fail(err error) {
	if err == nil {
		err = ErrFailed
	}
	h.mux.failLater(h, err)
}

// writeReady drains the priority queue, then the normal queue, until both
// are empty or the socket would block. Write interest is disarmed once both
// queues are empty.
func (h *Handle) writeReady() {
	for _, q := range [...]*outQueue{&h.priority, &h.normal} {
		for !q.empty() {
			n, err := writeFD(h.fd, q.head())
			if n > 0 {
				q.advance(n)
				h.mux.counters.bytesWritten.Add(uint64(n))
			}
			if err == ErrWouldBlock || (err == nil && n == 0) {
				return
			}
			if err != nil {
				h.mux.failHandle(h, fmt.Errorf("sockmux: write fd %d: %w", h.fd, err))
				return
			}
		}
	}

	h.mux.setInterest(h, h.interest&^EventWrite)

	if d, ok := h.handler.(DrainHandler); ok && !h.failed {
		h.mux.callDrain(h, d)
	}
}
