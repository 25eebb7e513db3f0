// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package cli implements the sockmux-echo command line.
package cli

import (
	"time"

	"github.com/joeycumines/go-sockmux/internal/echoserver"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands. Flags left unset do not
// override the config file.
type RootOptions struct {
	ConfigPath  string
	Listen      string
	LogLevel    string
	IdleTimeout time.Duration
	MaxPending  int
	MaxEvents   int
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	defaults := echoserver.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "sockmux-echo",
		Short: "TCP echo server on a single-threaded readiness multiplexer",
		Long: `A TCP echo server, every connection handled by one epoll-driven
dispatch goroutine.

Configuration is read from an optional YAML file (--config), then
overridden by any flags given explicitly.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&opts.Listen, "listen", defaults.Listen, "TCP address to listen on")
	flags.DurationVar(&opts.IdleTimeout, "idle-timeout", defaults.IdleTimeout, "close connections idle for this long (0 disables)")
	flags.IntVar(&opts.MaxPending, "max-pending", defaults.MaxPending, "max queued bytes per connection")
	flags.IntVar(&opts.MaxEvents, "max-events", defaults.MaxEvents, "max readiness events per poll")
	flags.StringVar(&opts.LogLevel, "log-level", defaults.LogLevel, "log level (trace|debug|info|notice|warning|err|crit|alert|emerg|disabled)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// resolveConfig loads the config file, if any, then applies the flags set on
// the command line.
func (x *RootOptions) resolveConfig(cmd *cobra.Command) (echoserver.Config, error) {
	cfg := echoserver.DefaultConfig()
	if x.ConfigPath != "" {
		var err error
		if cfg, err = echoserver.LoadConfig(x.ConfigPath); err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Listen = x.Listen
	}
	if flags.Changed("idle-timeout") {
		cfg.IdleTimeout = x.IdleTimeout
	}
	if flags.Changed("max-pending") {
		cfg.MaxPending = x.MaxPending
	}
	if flags.Changed("max-events") {
		cfg.MaxEvents = x.MaxEvents
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = x.LogLevel
	}

	return cfg, cfg.Validate()
}
