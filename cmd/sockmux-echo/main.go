// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Command sockmux-echo runs a TCP echo server on a sockmux.Multiplexer.
package main

import (
	"context"
	"os"

	"github.com/joeycumines/go-sockmux/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
