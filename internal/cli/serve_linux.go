// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package cli

import (
	"context"
	"io"

	"github.com/joeycumines/go-sockmux/internal/echoserver"
	"github.com/joeycumines/stumpy"
)

func runServe(ctx context.Context, cfg echoserver.Config, logOutput io.Writer) error {
	level, err := echoserver.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(logOutput)),
		stumpy.L.WithLevel(level),
	).Logger()

	server, err := echoserver.New(cfg, logger)
	if err != nil {
		return err
	}

	return server.Serve(ctx)
}
