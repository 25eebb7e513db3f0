// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build !linux

package cli

import (
	"context"
	"io"

	"github.com/joeycumines/go-sockmux"
	"github.com/joeycumines/go-sockmux/internal/echoserver"
)

func runServe(context.Context, echoserver.Config, io.Writer) error {
	return sockmux.ErrNotSupported
}
