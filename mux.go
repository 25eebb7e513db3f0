// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package sockmux

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Multiplexer is a single-goroutine readiness multiplexer, see the package
// documentation.
type Multiplexer struct { // betteralign:ignore
	// Prevent copying
	_ [0]func()

	poller  poller
	logger  *logiface.Logger[logiface.Event]
	limiter *catrate.Limiter
	now     func() time.Time

	// descriptor table, fd -> handle, mirrors the poller's registrations
	handles map[int]*Handle

	// one-shot timers, and the timers of each handle, for cancellation
	timers   timerHeap
	owned    map[*Handle][]*timer
	timerSeq uint64

	// handles marked failed, awaiting OnFail and deregistration
	pendingFail []*Handle

	// tasks marshalled from other goroutines
	taskMu      sync.Mutex
	tasks       []func()
	taskBuf     []func()
	wakePending atomic.Bool

	// goroutine currently inside Wait, 0 if none
	dispatchGID atomic.Uint64

	counters counters

	shutting bool
	shut     atomic.Bool
}

// New creates a Multiplexer. It fails if the OS polling facility cannot be
// created, in which case nothing is leaked.
func New(opts ...Option) (*Multiplexer, error) {
	cfg, err := resolveMuxOptions(opts)
	if err != nil {
		return nil, err
	}

	p := cfg.poller
	if p == nil {
		if p, err = newPoller(cfg.maxEvents); err != nil {
			return nil, fmt.Errorf("sockmux: create poller: %w", err)
		}
	}

	m := &Multiplexer{
		poller:  p,
		logger:  cfg.logger,
		now:     cfg.now,
		handles: make(map[int]*Handle),
		owned:   make(map[*Handle][]*timer),
	}
	if len(cfg.failureLogRates) != 0 {
		m.limiter = catrate.NewLimiter(cfg.failureLogRates)
	}

	return m, nil
}

// Register adds fd to the descriptor table, and arms it for readability
// (errors and hangups are always reported). The descriptor is put in
// non-blocking mode. On success the multiplexer owns fd, and closes it when
// the handle is unregistered, fails, or on Shutdown. On error, fd remains
// owned by the caller.
//
// Registering a descriptor that is already registered panics.
func (m *Multiplexer) Register(fd int, handler Handler) (*Handle, error) {
	m.checkOp("Register")
	if m.shutting {
		panic(invariant("Register", ErrShutdown))
	}

	if fd < 0 || handler == nil {
		return nil, ErrInvalidArgument
	}
	if _, ok := m.handles[fd]; ok {
		panic(invariant("Register", fmt.Errorf("%w: fd %d", ErrAlreadyRegistered, fd)))
	}

	if err := setNonblock(fd); err != nil {
		return nil, fmt.Errorf("sockmux: set nonblock fd %d: %w", fd, err)
	}

	h := newHandle(m, fd, handler)
	if err := m.poller.add(fd, EventRead); err != nil {
		return nil, fmt.Errorf("sockmux: register fd %d: %w", fd, err)
	}
	h.interest = EventRead
	m.handles[fd] = h
	m.counters.registered.Add(1)

	m.logger.Debug().
		Int(`fd`, fd).
		Log(`registered`)

	return h, nil
}

// Unregister removes h from the poller and the descriptor table, cancels
// its timers, discards its queued data, and closes its descriptor. OnFail is
// not invoked. Unregistering an already unregistered handle is a no-op.
func (m *Multiplexer) Unregister(h *Handle) error {
	m.checkOp("Unregister")
	if h == nil || h.mux != m {
		return ErrInvalidArgument
	}
	if h.closed {
		return nil
	}
	return m.release(h)
}

// Len returns the number of registered handles.
func (m *Multiplexer) Len() int {
	return len(m.handles)
}

// Lookup returns the handle registered for fd, if any.
func (m *Multiplexer) Lookup(fd int) (*Handle, bool) {
	h, ok := m.handles[fd]
	return h, ok
}

// Wait performs exactly one poll-and-dispatch cycle:
//
//  1. Poll for at most timeout. A zero timeout does not block. A negative
//     timeout blocks until a descriptor is ready, or until the earliest
//     pending timer deadline (indefinitely, if there are no timers).
//  2. Fire every due timer, in deadline order.
//  3. Run tasks queued by Submit.
//  4. Dispatch each ready descriptor.
//
// An error is only returned if the poll itself failed. Socket errors are
// reported via OnFail, and never returned.
func (m *Multiplexer) Wait(timeout time.Duration) error {
	if m.shut.Load() {
		panic(invariant("Wait", ErrShutdown))
	}
	gid := getGoroutineID()
	if !m.dispatchGID.CompareAndSwap(0, gid) {
		if m.dispatchGID.Load() == gid {
			panic(invariant("Wait", ErrReentrantWait))
		}
		panic(invariant("Wait", ErrWrongGoroutine))
	}
	defer m.dispatchGID.Store(0)

	// failures flagged between calls (e.g. Handle.Fail) are handled first
	m.flushFailures()

	ready, err := m.poller.wait(m.pollTimeout(timeout))
	m.counters.polls.Add(1)
	if err != nil {
		m.logger.Err().
			Err(err).
			Log(`poll failed`)
		return fmt.Errorf("sockmux: poll: %w", err)
	}

	m.runTimers()
	m.runTasks()
	m.dispatch(ready)
	m.flushFailures()

	return nil
}

// Run calls Wait repeatedly, blocking until ctx is done (returning
// ctx.Err()), Wait fails, or the multiplexer is shut down from a callback
// (returning ErrShutdown). Run does not shut the multiplexer down.
func (m *Multiplexer) Run(ctx context.Context) error {
	// wake the poll on cancellation
	ctxDone := make(chan struct{})
	defer close(ctxDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = m.poller.wake()
		case <-ctxDone:
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.shut.Load() {
			return ErrShutdown
		}
		if err := m.Wait(-1); err != nil {
			return err
		}
	}
}

// Submit queues fn to run on the dispatch goroutine, during the current or
// next Wait, waking it if blocked. It is the only method safe to call from
// any goroutine. Returns ErrShutdown once the multiplexer has shut down.
func (m *Multiplexer) Submit(fn func()) error {
	if fn == nil {
		return ErrInvalidArgument
	}

	m.taskMu.Lock()
	defer m.taskMu.Unlock()

	if m.shut.Load() {
		return ErrShutdown
	}

	m.tasks = append(m.tasks, fn)

	if m.wakePending.CompareAndSwap(false, true) {
		if err := m.poller.wake(); err != nil {
			m.wakePending.Store(false)
			return fmt.Errorf("sockmux: wake: %w", err)
		}
	}

	return nil
}

func (m *Multiplexer) runTasks() {
	m.wakePending.Store(false)

	m.taskMu.Lock()
	if len(m.tasks) == 0 {
		m.taskMu.Unlock()
		return
	}
	tasks := m.tasks
	m.tasks = m.taskBuf[:0]
	m.taskMu.Unlock()

	for i, fn := range tasks {
		tasks[i] = nil
		if m.shut.Load() {
			continue
		}
		m.counters.tasksRun.Add(1)
		m.callTask(fn)
	}

	m.taskMu.Lock()
	m.taskBuf = tasks[:0]
	m.taskMu.Unlock()
}

// dispatch delivers one poll result. Handles are resolved up front, so that
// events for a descriptor closed (and possibly reused) by an earlier
// callback in the same batch are dropped.
func (m *Multiplexer) dispatch(ready []readyEvent) {
	type target struct {
		h      *Handle
		events IOEvents
	}
	var buf [64]target
	targets := buf[:0]
	for _, ev := range ready {
		if h, ok := m.handles[ev.fd]; ok {
			targets = append(targets, target{h, ev.events})
		}
	}

	for _, t := range targets {
		if m.shut.Load() {
			return
		}
		h := t.h
		if h.closed {
			continue
		}

		if t.events.failing() {
			m.failHandle(h, &SocketError{FD: h.fd, Events: t.events})
			continue
		}

		if t.events&EventRead != 0 && !h.failed {
			m.counters.readEvents.Add(1)
			m.callRead(h)
			m.flushFailures()
		}

		if t.events&EventWrite != 0 && !h.failed && !h.closed {
			m.counters.writeEvents.Add(1)
			h.writeReady()
			m.flushFailures()
		}
	}
}

// pollTimeout converts a Wait timeout to milliseconds, rounding up.
func (m *Multiplexer) pollTimeout(timeout time.Duration) int {
	if timeout < 0 {
		when, ok := m.NextDeadline()
		if !ok {
			return -1
		}
		if timeout = when.Sub(m.now()); timeout < 0 {
			timeout = 0
		}
	}
	if timeout == 0 {
		return 0
	}
	ms := (timeout + time.Millisecond - 1) / time.Millisecond
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}

// checkOp panics if the multiplexer is shut down, or if called from a
// goroutine other than the one inside Wait.
func (m *Multiplexer) checkOp(op string) {
	if m.shut.Load() {
		panic(invariant(op, ErrShutdown))
	}
	if gid := m.dispatchGID.Load(); gid != 0 && gid != getGoroutineID() {
		panic(invariant(op, ErrWrongGoroutine))
	}
}

// setInterest re-arms h with the given interest mask, if it changed. A
// failure to re-arm fails the handle.
func (m *Multiplexer) setInterest(h *Handle, events IOEvents) {
	if h.closed || h.interest == events {
		return
	}
	if err := m.poller.modify(h.fd, events); err != nil {
		m.failLater(h, fmt.Errorf("sockmux: modify fd %d: %w", h.fd, err))
		return
	}
	h.interest = events
}

// failLater marks h as failed, deferring OnFail and deregistration to the
// next flushFailures.
func (m *Multiplexer) failLater(h *Handle, err error) {
	if h.failed || h.closed {
		return
	}
	h.failed = true
	h.failErr = err
	m.pendingFail = append(m.pendingFail, h)
}

func (m *Multiplexer) flushFailures() {
	for len(m.pendingFail) != 0 && !m.shut.Load() {
		h := m.pendingFail[0]
		m.pendingFail[0] = nil
		m.pendingFail = m.pendingFail[1:]
		if !h.closed {
			m.failHandle(h, h.failErr)
		}
	}
	if len(m.pendingFail) == 0 {
		m.pendingFail = nil
	}
}

// failHandle invokes OnFail (once), then deregisters h. If h was already
// marked failed, the original cause wins.
func (m *Multiplexer) failHandle(h *Handle, err error) {
	if h.closed {
		return
	}
	if !h.failed {
		h.failed = true
		h.failErr = err
	}
	m.notifyFail(h, h.failErr)
	if !h.closed && !m.shut.Load() {
		if err := m.release(h); err != nil {
			m.logger.Warning().
				Int(`fd`, h.fd).
				Err(err).
				Log(`release after failure`)
		}
	}
}

// release removes h everywhere, and closes its descriptor.
func (m *Multiplexer) release(h *Handle) error {
	h.closed = true
	h.failed = true
	cancelled := m.cancelTimers(h)
	if m.handles[h.fd] == h {
		delete(m.handles, h.fd)
		m.counters.registered.Add(-1)
	}
	h.priority.reset()
	h.normal.reset()

	var errs []error
	if err := m.poller.remove(h.fd); err != nil {
		errs = append(errs, fmt.Errorf("sockmux: deregister fd %d: %w", h.fd, err))
	}
	if err := closeFD(h.fd); err != nil {
		errs = append(errs, fmt.Errorf("sockmux: close fd %d: %w", h.fd, err))
	}

	m.logger.Debug().
		Int(`fd`, h.fd).
		Int(`cancelled_timers`, cancelled).
		Log(`unregistered`)

	return errors.Join(errs...)
}
