// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package epoll wraps the Linux epoll(7) facility, together with an eventfd
// used to wake a blocked EpollWait from other goroutines.
//
// The package is only implemented on Linux, other platforms get an empty
// package.
package epoll
