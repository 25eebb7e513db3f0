// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package epoll

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Readiness flags, as reported by EpollWait.
const (
	In  = uint32(unix.EPOLLIN)
	Out = uint32(unix.EPOLLOUT)
	Err = uint32(unix.EPOLLERR)
	Hup = uint32(unix.EPOLLHUP)
)

// DefaultMaxEvents is the size of the event buffer passed to EpollWait.
const DefaultMaxEvents = 256

// ErrClosed is returned by operations on a closed Poller.
var ErrClosed = errors.New("epoll: poller closed")

// Event is a single readiness notification.
type Event struct {
	FD     int
	Events uint32
}

// Poller owns one epoll instance and one eventfd.
//
// Add, Modify, Delete, Wait and Close must be called from a single goroutine.
// Wake may be called from any goroutine, including concurrently with Close.
type Poller struct { // betteralign:ignore
	eventBuf []unix.EpollEvent
	ready    []Event
	mu       sync.RWMutex // guards closed vs Wake
	epfd     int
	wakefd   int
	wakeBuf  [8]byte
	closed   bool
}

// New creates an epoll instance sized to return at most maxEvents per Wait,
// and registers its wake-up eventfd.
func New(maxEvents int) (*Poller, error) {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll: create: %w", err)
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll: eventfd: %w", err)
	}

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakefd),
	}); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll: register eventfd: %w", err)
	}

	return &Poller{
		eventBuf: make([]unix.EpollEvent, maxEvents),
		ready:    make([]Event, 0, maxEvents),
		epfd:     epfd,
		wakefd:   wakefd,
	}, nil
}

// Add starts watching fd for the given flags. Err and Hup are always
// reported by the kernel, and need not be requested.
func (p *Poller) Add(fd int, events uint32) error {
	return p.ctl(unix.EPOLL_CTL_ADD, fd, events)
}

// Modify replaces the watched flags of fd.
func (p *Poller) Modify(fd int, events uint32) error {
	return p.ctl(unix.EPOLL_CTL_MOD, fd, events)
}

// Delete stops watching fd.
func (p *Poller) Delete(fd int) error {
	if p.closed {
		return ErrClosed
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *Poller) ctl(op int, fd int, events uint32) error {
	if p.closed {
		return ErrClosed
	}
	if fd == p.wakefd {
		return unix.EEXIST
	}
	return unix.EpollCtl(p.epfd, op, fd, &unix.EpollEvent{
		Events: events,
		Fd:     int32(fd),
	})
}

// Wait blocks for at most msec milliseconds (-1 is infinite, 0 returns
// immediately). The returned slice is reused by the next call.
//
// Wake-ups are consumed internally, and never reported. An interrupted wait
// (EINTR) returns no events and no error.
func (p *Poller) Wait(msec int) ([]Event, error) {
	if p.closed {
		return nil, ErrClosed
	}

	n, err := unix.EpollWait(p.epfd, p.eventBuf, msec)
	if err != nil {
		if err == unix.EINTR {
			return p.ready[:0], nil
		}
		return nil, fmt.Errorf("epoll: wait: %w", err)
	}

	ready := p.ready[:0]
	for i := 0; i < n; i++ {
		ev := p.eventBuf[i]
		fd := int(ev.Fd)
		if fd == p.wakefd {
			p.drainWake()
			continue
		}
		ready = append(ready, Event{FD: fd, Events: ev.Events})
	}
	p.ready = ready

	return ready, nil
}

// Wake interrupts a blocked (or the next) Wait. Safe for concurrent use.
func (p *Poller) Wake() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	var one uint64 = 1
	buf := (*[8]byte)(unsafe.Pointer(&one))[:]
	_, err := unix.Write(p.wakefd, buf)
	if err == unix.EAGAIN {
		// counter saturated, a wake-up is already pending
		return nil
	}
	return err
}

func (p *Poller) drainWake() {
	for {
		if _, err := unix.Read(p.wakefd, p.wakeBuf[:]); err != nil {
			return
		}
	}
}

// Close releases the epoll instance and the eventfd. Subsequent calls
// return ErrClosed.
func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.closed = true

	return errors.Join(unix.Close(p.wakefd), unix.Close(p.epfd))
}
