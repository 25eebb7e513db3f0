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

// Shutdown tears the multiplexer down: each registered handle has OnFail
// invoked (with its pending failure cause, or ErrShutdown), then its
// descriptor closed. Pending timers are dropped without firing, queued tasks
// are discarded, and the OS poller is released.
//
// Afterwards, every method other than Submit, Len, Lookup, NextDeadline and
// Stats panics, including a second Shutdown. Submit returns ErrShutdown.
//
// Shutdown may be called from a callback, in which case the current Wait
// returns without dispatching anything further.
func (m *Multiplexer) Shutdown() error {
	m.checkOp("Shutdown")
	if m.shutting {
		panic(invariant("Shutdown", ErrShutdown))
	}
	m.shutting = true

	handles := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}

	var errs []error
	for _, h := range handles {
		err := h.failErr
		if err == nil {
			err = ErrShutdown
		}
		h.failed = true
		m.notifyFail(h, err)
		if h.closed {
			// unregistered by its own OnFail
			continue
		}
		h.closed = true
		h.priority.reset()
		h.normal.reset()
		if err := closeFD(h.fd); err != nil {
			errs = append(errs, fmt.Errorf("sockmux: close fd %d: %w", h.fd, err))
		}
	}
	clear(m.handles)
	m.counters.registered.Store(0)
	m.pendingFail = nil
	m.clearTimers()

	m.taskMu.Lock()
	m.shut.Store(true)
	dropped := len(m.tasks)
	m.tasks = nil
	m.taskBuf = nil
	m.taskMu.Unlock()

	if err := m.poller.close(); err != nil {
		errs = append(errs, fmt.Errorf("sockmux: close poller: %w", err))
	}

	m.logger.Info().
		Int(`handles`, len(handles)).
		Int(`dropped_tasks`, dropped).
		Log(`shut down`)

	return errors.Join(errs...)
}
