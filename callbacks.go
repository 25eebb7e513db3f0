// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package sockmux

// Callback invocation, with panic recovery. Invariant violations raised
// inside callbacks are re-panicked, every other panic is contained.

func (m *Multiplexer) callRead(h *Handle) {
	defer func() {
		if r := recover(); r != nil {
			rethrowInvariant(r)
			m.logPanic(`OnRead`, h, r)
			m.failLater(h, PanicError{Value: r})
		}
	}()
	h.handler.OnRead(h)
}

func (m *Multiplexer) callDrain(h *Handle, d DrainHandler) {
	defer func() {
		if r := recover(); r != nil {
			rethrowInvariant(r)
			m.logPanic(`OnDrain`, h, r)
			m.failLater(h, PanicError{Value: r})
		}
	}()
	d.OnDrain(h)
}

// notifyFail invokes OnFail at most once per handle.
func (m *Multiplexer) notifyFail(h *Handle, err error) {
	if h.notified {
		return
	}
	h.notified = true
	m.counters.failures.Add(1)
	m.logFailure(h, err)

	defer func() {
		if r := recover(); r != nil {
			rethrowInvariant(r)
			m.logPanic(`OnFail`, h, r)
		}
	}()
	h.handler.OnFail(h, err)
}

func (m *Multiplexer) callTimer(t *timer) {
	defer func() {
		if r := recover(); r != nil {
			rethrowInvariant(r)
			m.logPanic(`timer`, t.owner, r)
		}
	}()
	t.fn()
}

func (m *Multiplexer) callTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			rethrowInvariant(r)
			m.logPanic(`task`, nil, r)
		}
	}()
	fn()
}
