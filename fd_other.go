// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build !linux

package sockmux

func readFD(int, []byte) (int, error) { return 0, ErrNotSupported }

func writeFD(int, []byte) (int, error) { return 0, ErrNotSupported }

func closeFD(int) error { return ErrNotSupported }

func setNonblock(int) error { return ErrNotSupported }

func dupFD(int) (int, error) { return -1, ErrNotSupported }
