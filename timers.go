// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package sockmux

import (
	"container/heap"
	"fmt"
	"time"
)

// timer is a pending one-shot callback, owned by a handle.
type timer struct {
	when  time.Time
	owner *Handle
	fn    func()
	seq   uint64
	index int // position in the heap, -1 once removed
}

// timerHeap is a min-heap of timers, ordered by deadline, then by
// scheduling order.
type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// ScheduleOneshot schedules fn to run once, on the dispatch goroutine, after
// delay has elapsed. The timer is owned by h: it never fires once h has been
// unregistered (or failed), see also CancelTimers.
//
// Timers fire during Wait, before any socket callbacks, in ascending deadline
// order, ties firing in scheduling order.
func (m *Multiplexer) ScheduleOneshot(h *Handle, delay time.Duration, fn func()) error {
	m.checkOp("ScheduleOneshot")

	if h == nil || fn == nil {
		return ErrInvalidArgument
	}
	if h.mux != m || h.closed {
		return ErrNotRegistered
	}
	if delay < 0 {
		delay = 0
	}

	m.timerSeq++
	t := &timer{
		when:  m.now().Add(delay),
		owner: h,
		fn:    fn,
		seq:   m.timerSeq,
	}
	heap.Push(&m.timers, t)
	m.owned[h] = append(m.owned[h], t)
	m.counters.pendingTimers.Add(1)

	m.logger.Trace().
		Int(`fd`, h.fd).
		Dur(`delay`, delay).
		Log(`scheduled timer`)

	return nil
}

// CancelTimers removes every pending timer owned by h, returning the number
// removed. None of them will fire.
func (m *Multiplexer) CancelTimers(h *Handle) int {
	m.checkOp("CancelTimers")
	if h == nil {
		return 0
	}
	return m.cancelTimers(h)
}

func (m *Multiplexer) cancelTimers(h *Handle) int {
	owned := m.owned[h]
	if len(owned) == 0 {
		return 0
	}
	delete(m.owned, h)
	for _, t := range owned {
		if t.index >= 0 {
			heap.Remove(&m.timers, t.index)
		}
	}
	n := len(owned)
	m.counters.pendingTimers.Add(-int64(n))
	m.counters.timersDropped.Add(uint64(n))
	return n
}

// disown removes t from its owner's index, after it was popped.
func (m *Multiplexer) disown(t *timer) {
	owned := m.owned[t.owner]
	for i, v := range owned {
		if v == t {
			owned = append(owned[:i], owned[i+1:]...)
			break
		}
	}
	if len(owned) == 0 {
		delete(m.owned, t.owner)
	} else {
		m.owned[t.owner] = owned
	}
}

// runTimers fires every timer due at the start of the call. Timers scheduled
// by the callbacks themselves wait for the next Wait.
func (m *Multiplexer) runTimers() {
	now := m.now()
	limit := m.timerSeq
	for len(m.timers) != 0 && !m.shut.Load() {
		t := m.timers[0]
		if t.seq > limit || t.when.After(now) {
			break
		}
		heap.Pop(&m.timers)
		m.disown(t)
		m.counters.pendingTimers.Add(-1)

		if t.owner.closed {
			panic(invariant("Wait", fmt.Errorf("%w: timer fired for fd %d", ErrNotRegistered, t.owner.fd)))
		}

		m.counters.timersFired.Add(1)
		m.callTimer(t)
	}
}

// NextDeadline returns the earliest pending timer deadline, if any.
func (m *Multiplexer) NextDeadline() (time.Time, bool) {
	if len(m.timers) == 0 {
		return time.Time{}, false
	}
	return m.timers[0].when, true
}

// clearTimers drops every pending timer, without firing any.
func (m *Multiplexer) clearTimers() {
	n := len(m.timers)
	for _, t := range m.timers {
		t.index = -1
	}
	m.timers = nil
	clear(m.owned)
	m.counters.pendingTimers.Add(-int64(n))
	m.counters.timersDropped.Add(uint64(n))
}
