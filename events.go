// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package sockmux

import (
	"fmt"
	"strings"
)

// IOEvents is a set of readiness conditions.
type IOEvents uint32

const (
	// EventRead indicates the descriptor is readable.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the descriptor is writable.
	EventWrite
	// EventError indicates an error condition on the descriptor.
	EventError
	// EventHangup indicates the peer closed the connection.
	EventHangup
)

var eventNames = [...]struct {
	name string
	ev   IOEvents
}{
	{"EventRead", EventRead},
	{"EventWrite", EventWrite},
	{"EventError", EventError},
	{"EventHangup", EventHangup},
}

// String returns the set names joined by "|", e.g. "EventRead|EventHangup".
// Unknown bits are appended in hex.
func (e IOEvents) String() string {
	if e == 0 {
		return "0"
	}
	var s []string
	for _, v := range eventNames {
		if e&v.ev != 0 {
			e &^= v.ev
			s = append(s, v.name)
		}
	}
	if e != 0 {
		s = append(s, fmt.Sprintf("0x%x", uint32(e)))
	}
	return strings.Join(s, "|")
}

// failing reports whether the set contains an error or hangup condition.
func (e IOEvents) failing() bool {
	return e&(EventError|EventHangup) != 0
}
