// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package sockmux

import (
	"github.com/eapache/queue"
)

// outQueue is a FIFO of outbound byte slices. The head slice may be
// partially written, off tracks how much of it has been consumed.
type outQueue struct {
	q    *queue.Queue
	off  int
	size int
}

func newOutQueue() outQueue {
	return outQueue{q: queue.New()}
}

func (x *outQueue) push(b []byte) {
	x.q.Add(b)
	x.size += len(b)
}

func (x *outQueue) empty() bool {
	return x.q.Length() == 0
}

// head returns the unwritten remainder of the first slice. The queue must
// not be empty.
func (x *outQueue) head() []byte {
	return x.q.Peek().([]byte)[x.off:]
}

// advance consumes n bytes of the head slice, popping it once exhausted.
func (x *outQueue) advance(n int) {
	x.off += n
	x.size -= n
	if x.off >= len(x.q.Peek().([]byte)) {
		x.q.Remove()
		x.off = 0
	}
}

// reset discards everything queued.
func (x *outQueue) reset() {
	x.q = queue.New()
	x.off = 0
	x.size = 0
}
