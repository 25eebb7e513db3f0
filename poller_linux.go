// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package sockmux

import (
	"github.com/joeycumines/go-sockmux/internal/epoll"
)

// epollPoller adapts epoll.Poller to the poller interface.
type epollPoller struct {
	p     *epoll.Poller
	ready []readyEvent
}

func newPoller(maxEvents int) (poller, error) {
	p, err := epoll.New(maxEvents)
	if err != nil {
		return nil, err
	}
	return &epollPoller{p: p}, nil
}

func (x *epollPoller) add(fd int, events IOEvents) error {
	return x.p.Add(fd, eventsToEpoll(events))
}

func (x *epollPoller) modify(fd int, events IOEvents) error {
	return x.p.Modify(fd, eventsToEpoll(events))
}

func (x *epollPoller) remove(fd int) error {
	return x.p.Delete(fd)
}

func (x *epollPoller) wait(msec int) ([]readyEvent, error) {
	events, err := x.p.Wait(msec)
	if err != nil {
		return nil, err
	}
	ready := x.ready[:0]
	for _, ev := range events {
		ready = append(ready, readyEvent{fd: ev.FD, events: epollToEvents(ev.Events)})
	}
	x.ready = ready
	return ready, nil
}

func (x *epollPoller) wake() error {
	return x.p.Wake()
}

func (x *epollPoller) close() error {
	return x.p.Close()
}

// eventsToEpoll converts IOEvents to epoll flags. Error and hangup are always
// reported, and are not requested.
func eventsToEpoll(events IOEvents) uint32 {
	var v uint32
	if events&EventRead != 0 {
		v |= epoll.In
	}
	if events&EventWrite != 0 {
		v |= epoll.Out
	}
	return v
}

// epollToEvents converts epoll flags to IOEvents.
func epollToEvents(v uint32) IOEvents {
	var events IOEvents
	if v&epoll.In != 0 {
		events |= EventRead
	}
	if v&epoll.Out != 0 {
		events |= EventWrite
	}
	if v&epoll.Err != 0 {
		events |= EventError
	}
	if v&epoll.Hup != 0 {
		events |= EventHangup
	}
	return events
}
