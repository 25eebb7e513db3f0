// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package echoserver

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joeycumines/logiface"
	"gopkg.in/yaml.v3"
)

// Config configures a Server. The zero value is not valid, start from
// DefaultConfig.
type Config struct {
	// Listen is the TCP address to listen on.
	Listen string `yaml:"listen"`
	// IdleTimeout closes connections that receive nothing for this long,
	// zero disables it.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	// MaxPending is the most echoed bytes queued for a single connection,
	// before it is closed as a slow consumer.
	MaxPending int `yaml:"max_pending"`
	// MaxEvents is the readiness batch size, see sockmux.WithMaxEvents.
	MaxEvents int `yaml:"max_events"`
	// LogLevel is one of the syslog level keywords, e.g. "info" or "debug".
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Listen:      `127.0.0.1:7007`,
		IdleTimeout: 30 * time.Second,
		MaxPending:  1 << 20,
		MaxEvents:   256,
		LogLevel:    `info`,
	}
}

// LoadConfig reads a YAML config file, over the defaults. Unknown fields are
// rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks every field.
func (c Config) Validate() error {
	var errs []error
	if c.Listen == `` {
		errs = append(errs, errors.New(`listen: must not be empty`))
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("idle_timeout: must not be negative, got %s", c.IdleTimeout))
	}
	if c.MaxPending <= 0 {
		errs = append(errs, fmt.Errorf("max_pending: must be positive, got %d", c.MaxPending))
	}
	if c.MaxEvents <= 0 {
		errs = append(errs, fmt.Errorf("max_events: must be positive, got %d", c.MaxEvents))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// ParseLevel parses a level keyword, as returned by [logiface.Level.String].
func ParseLevel(s string) (logiface.Level, error) {
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if level.String() == s {
			return level, nil
		}
	}
	return logiface.LevelDisabled, fmt.Errorf("unknown level %q", s)
}
