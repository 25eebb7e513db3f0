// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package sockmux

// readyEvent is one descriptor reported by a poll.
type readyEvent struct {
	fd     int
	events IOEvents
}

// poller is the OS readiness facility consumed by the Multiplexer.
//
// All methods but wake are called from the dispatch goroutine. wake must be
// safe for concurrent use, including concurrently with close.
type poller interface {
	add(fd int, events IOEvents) error
	modify(fd int, events IOEvents) error
	remove(fd int) error
	// wait blocks for at most msec milliseconds, -1 meaning indefinitely.
	// The returned slice is only valid until the next call.
	wait(msec int) ([]readyEvent, error)
	wake() error
	close() error
}
