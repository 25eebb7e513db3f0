// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package echoserver implements a TCP echo server on top of a
// [sockmux.Multiplexer], used by the sockmux-echo command.
//
// The listening socket and every accepted connection share the one dispatch
// goroutine. Connections idle for longer than the configured timeout are
// closed, as are connections whose peer stops reading (see
// Config.MaxPending).
package echoserver
