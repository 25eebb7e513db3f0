// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package sockmux

import (
	"fmt"
	"syscall"
)

// DupFD returns a duplicate of the descriptor behind conn (e.g. a
// *net.TCPConn or *net.UnixConn), suitable for [Multiplexer.Register].
//
// The duplicate is owned by the caller until registered, after which the
// multiplexer owns it. The original conn remains owned by the caller, and
// should be closed once no longer needed, note that closing it does not
// affect the duplicate.
func DupFD(conn syscall.Conn) (int, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return -1, fmt.Errorf("sockmux: syscall conn: %w", err)
	}
	var (
		fd     = -1
		dupErr error
	)
	if err := raw.Control(func(s uintptr) {
		fd, dupErr = dupFD(int(s))
	}); err != nil {
		return -1, fmt.Errorf("sockmux: control: %w", err)
	}
	if dupErr != nil {
		return -1, fmt.Errorf("sockmux: dup: %w", dupErr)
	}
	return fd, nil
}
