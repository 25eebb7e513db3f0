// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package sockmux

import (
	"errors"
	"fmt"
	"io"
)

// failureCategory buckets failure causes, for log rate limiting.
func failureCategory(err error) string {
	var (
		sockErr  *SocketError
		panicErr PanicError
	)
	switch {
	case errors.Is(err, ErrShutdown):
		return `shutdown`
	case errors.Is(err, io.EOF):
		return `eof`
	case errors.As(err, &sockErr):
		if sockErr.Hangup() {
			return `hangup`
		}
		return `error`
	case errors.As(err, &panicErr):
		return `panic`
	default:
		return `other`
	}
}

// logFailure logs a socket failure, subject to the per-category rate limit.
// Failures caused by Shutdown are summarized by Shutdown instead.
func (m *Multiplexer) logFailure(h *Handle, err error) {
	category := failureCategory(err)
	if category == `shutdown` {
		return
	}
	b := m.logger.Warning()
	if !b.Enabled() {
		return
	}
	if _, ok := m.limiter.Allow(category); !ok {
		b.Release()
		return
	}
	b.Int(`fd`, h.fd).
		Str(`category`, category).
		Err(err).
		Log(`socket failed`)
}

func (m *Multiplexer) logPanic(callback string, h *Handle, r any) {
	b := m.logger.Err().
		Str(`callback`, callback).
		Str(`panic`, fmt.Sprint(r))
	if h != nil {
		b = b.Int(`fd`, h.fd)
	}
	b.Log(`callback panicked`)
}
