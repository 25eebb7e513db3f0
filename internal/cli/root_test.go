// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cli

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigCommand_golden(t *testing.T) {
	out, err := execute(t, `config`, `--config`, `testdata/echo.yaml`, `--max-pending`, `4096`)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "config", []byte(out))
}

func TestConfigCommand_defaults(t *testing.T) {
	out, err := execute(t, `config`)
	require.NoError(t, err)
	assert.Contains(t, out, "listen: 127.0.0.1:7007\n")
	assert.Contains(t, out, "idle_timeout: 30s\n")
	assert.Contains(t, out, "log_level: info\n")
}

func TestConfigCommand_flagsOverrideFile(t *testing.T) {
	out, err := execute(t, `config`, `-c`, `testdata/echo.yaml`, `--listen`, `127.0.0.1:1`, `--idle-timeout`, `0s`, `--log-level`, `trace`)
	require.NoError(t, err)
	assert.Contains(t, out, "listen: 127.0.0.1:1\n")
	assert.Contains(t, out, "idle_timeout: 0s\n")
	assert.Contains(t, out, "max_events: 64\n")
	assert.Contains(t, out, "log_level: trace\n")
}

func TestConfigCommand_invalid(t *testing.T) {
	_, err := execute(t, `config`, `--max-events`, `0`)
	assert.ErrorContains(t, err, `max_events: must be positive`)

	_, err = execute(t, `config`, `--log-level`, `chatty`)
	assert.ErrorContains(t, err, `unknown level "chatty"`)

	_, err = execute(t, `config`, `--config`, `testdata/missing.yaml`)
	assert.ErrorContains(t, err, `failed to read config file`)
}

func TestServeCommand_invalidConfig(t *testing.T) {
	_, err := execute(t, `serve`, `--max-pending`, `-1`)
	assert.ErrorContains(t, err, `max_pending: must be positive`)
}
