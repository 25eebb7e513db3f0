// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package sockmux implements a single-goroutine, readiness-based I/O
// multiplexer, coordinating many non-blocking sockets and deferred one-shot
// timers through one blocking wait.
//
// # Architecture
//
// A [Multiplexer] owns an epoll instance, a descriptor table mapping each
// registered file descriptor to its [Handle], and a min-heap of pending
// one-shot timers. Each call to [Multiplexer.Wait] performs exactly one
// poll-and-dispatch cycle, and returns. The caller drives the loop, either
// directly or via [Multiplexer.Run].
//
// A [Handle] wraps one registered socket, with two outbound queues (normal
// and priority). [Handle.Send] queues data and arms write interest, the
// multiplexer drains the priority queue before the normal queue once the
// socket is writable, and disarms write interest as soon as both queues are
// empty.
//
// # Dispatch Order
//
// Within one Wait:
//  1. Due timers, in ascending deadline order (ties in scheduling order)
//  2. Tasks queued by [Multiplexer.Submit]
//  3. Ready descriptors, in the order reported by the kernel
//
// For a single descriptor, an error or hangup takes precedence: only
// [Handler.OnFail] runs, followed by deregistration.
//
// # Goroutine Model
//
// All callbacks run on the goroutine calling Wait, never concurrently.
// Register, Unregister, ScheduleOneshot, CancelTimers and Shutdown must be
// called from that goroutine (or while no Wait is in progress). Use
// [Multiplexer.Submit] to marshal work from other goroutines.
//
// # Failure Model
//
// Errors on one socket are isolated: OnFail is invoked at most once, then
// the handle is deregistered and its descriptor closed. Programmer errors
// (use after Shutdown, duplicate registration, wrong goroutine, re-entrant
// Wait) panic with an [*InvariantError].
//
// # Usage
//
//	mux, err := sockmux.New(sockmux.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer mux.Shutdown()
//
//	h, err := mux.Register(fd, sockmux.HandlerFuncs{
//	    Read: func(h *sockmux.Handle) { /* h.Read(...) */ },
//	    Fail: func(h *sockmux.Handle, err error) { /* cleanup */ },
//	})
//
//	for {
//	    if err := mux.Wait(100 * time.Millisecond); err != nil {
//	        return err
//	    }
//	}
package sockmux
