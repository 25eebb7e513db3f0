// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package sockmux

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// testSocketpair returns a connected AF_UNIX stream pair. The first end is
// meant to be registered (the multiplexer then owns it), the second is the
// peer, blocking, closed on cleanup.
func testSocketpair(t *testing.T) (fd, peer int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = unix.Close(fds[1]) })
	return fds[0], fds[1]
}

// testLogger returns a stumpy JSON logger, at trace level, writing to w.
func testLogger(w io.Writer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(stumpy.L.LevelTrace()),
	).Logger()
}

// newTestMux creates a multiplexer logging to the returned buffer, shut down
// on cleanup unless the test already did so.
func newTestMux(t *testing.T, opts ...Option) (*Multiplexer, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	m, err := New(append([]Option{WithLogger(testLogger(&buf))}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		if !m.shut.Load() {
			_ = m.Shutdown()
		}
	})
	return m, &buf
}

// requireInvariant asserts that fn panics with an *InvariantError matching
// target.
func requireInvariant(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected a panic")
		err, ok := r.(*InvariantError)
		require.Truef(t, ok, "unexpected panic value (%T): %v", r, r)
		require.ErrorIs(t, err, target)
	}()
	fn()
}

// readAll reads n bytes from a blocking descriptor.
func readAll(t *testing.T, fd int, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	var off int
	for off < n {
		c, err := unix.Read(fd, buf[off:])
		require.NoError(t, err)
		require.NotZero(t, c, "unexpected EOF after %d bytes", off)
		off += c
	}
	return buf
}

// recorder is a Handler recording every callback.
type recorder struct {
	reads  int
	drains int
	fails  []error
	data   []byte
	onRead func(h *Handle)
}

func (x *recorder) OnRead(h *Handle) {
	x.reads++
	if x.onRead != nil {
		x.onRead(h)
		return
	}
	var buf [512]byte
	for {
		n, err := h.Read(buf[:])
		if err != nil {
			return
		}
		x.data = append(x.data, buf[:n]...)
	}
}

func (x *recorder) OnFail(h *Handle, err error) {
	x.fails = append(x.fails, err)
}

func (x *recorder) OnDrain(h *Handle) {
	x.drains++
}

// fakePoller is a scripted poller, each wait returns the next batch.
type fakePoller struct {
	mu        sync.Mutex
	interest  map[int]IOEvents
	batches   [][]readyEvent
	modifies  int
	removes   int
	wakes     int
	waits     []int
	modifyErr error
	closed    bool
}

func newFakePoller() *fakePoller {
	return &fakePoller{interest: make(map[int]IOEvents)}
}

func (x *fakePoller) push(batch ...readyEvent) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.batches = append(x.batches, batch)
}

func (x *fakePoller) add(fd int, events IOEvents) error {
	if _, ok := x.interest[fd]; ok {
		return unix.EEXIST
	}
	x.interest[fd] = events
	return nil
}

func (x *fakePoller) modify(fd int, events IOEvents) error {
	x.modifies++
	if x.modifyErr != nil {
		return x.modifyErr
	}
	if _, ok := x.interest[fd]; !ok {
		return unix.ENOENT
	}
	x.interest[fd] = events
	return nil
}

func (x *fakePoller) remove(fd int) error {
	x.removes++
	if _, ok := x.interest[fd]; !ok {
		return unix.ENOENT
	}
	delete(x.interest, fd)
	return nil
}

func (x *fakePoller) wait(msec int) ([]readyEvent, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.waits = append(x.waits, msec)
	if len(x.batches) == 0 {
		return nil, nil
	}
	batch := x.batches[0]
	x.batches = x.batches[1:]
	return batch, nil
}

func (x *fakePoller) wake() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.wakes++
	return nil
}

func (x *fakePoller) close() error {
	x.closed = true
	return nil
}

// testClock is a manually advanced clock, for withNow.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (x *testClock) Now() time.Time { return x.now }

func (x *testClock) Advance(d time.Duration) { x.now = x.now.Add(d) }
