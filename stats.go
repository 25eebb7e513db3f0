// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package sockmux

import (
	"sync/atomic"
)

// Stats is a point-in-time copy of the multiplexer's counters.
type Stats struct {
	// Registered is the number of handles in the descriptor table.
	Registered int
	// PendingTimers is the number of one-shot timers not yet fired.
	PendingTimers int

	Polls         uint64
	ReadEvents    uint64
	WriteEvents   uint64
	Failures      uint64
	TimersFired   uint64
	TimersDropped uint64
	TasksRun      uint64
	BytesRead     uint64
	BytesWritten  uint64
}

// counters are updated on the dispatch goroutine, and read from any.
type counters struct {
	registered    atomic.Int64
	pendingTimers atomic.Int64
	polls         atomic.Uint64
	readEvents    atomic.Uint64
	writeEvents   atomic.Uint64
	failures      atomic.Uint64
	timersFired   atomic.Uint64
	timersDropped atomic.Uint64
	tasksRun      atomic.Uint64
	bytesRead     atomic.Uint64
	bytesWritten  atomic.Uint64
}

// Stats returns a copy of the current counters. Safe for concurrent use.
func (m *Multiplexer) Stats() Stats {
	c := &m.counters
	return Stats{
		Registered:    int(c.registered.Load()),
		PendingTimers: int(c.pendingTimers.Load()),
		Polls:         c.polls.Load(),
		ReadEvents:    c.readEvents.Load(),
		WriteEvents:   c.writeEvents.Load(),
		Failures:      c.failures.Load(),
		TimersFired:   c.timersFired.Load(),
		TimersDropped: c.timersDropped.Load(),
		TasksRun:      c.tasksRun.Load(),
		BytesRead:     c.bytesRead.Load(),
		BytesWritten:  c.bytesWritten.Load(),
	}
}
