// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package echoserver

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), `config.yaml`)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "listen: 0.0.0.0:9000\nidle_timeout: 1m30s\nlog_level: debug\n"))
	require.NoError(t, err)

	want := DefaultConfig()
	want.Listen = `0.0.0.0:9000`
	want.IdleTimeout = 90 * time.Second
	want.LogLevel = `debug`
	assert.Equal(t, want, cfg)
}

func TestLoadConfig_empty(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ``))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_errors(t *testing.T) {
	for _, tc := range [...]struct {
		name    string
		content string
		want    string
	}{
		{`unknown field`, "listen: 127.0.0.1:1\nidel_timeout: 1s\n", `field idel_timeout not found`},
		{`bad duration`, "idle_timeout: soon\n", `failed to parse config file`},
		{`invalid value`, "max_pending: -1\n", `max_pending: must be positive`},
		{`bad level`, "log_level: loud\n", `unknown level "loud"`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.content))
			assert.ErrorContains(t, err, tc.want)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), `missing.yaml`))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{IdleTimeout: -time.Second}
	err := cfg.Validate()
	require.Error(t, err)
	for _, field := range [...]string{`listen`, `idle_timeout`, `max_pending`, `max_events`, `log_level`} {
		assert.ErrorContains(t, err, field+`:`)
	}
}

func TestParseLevel(t *testing.T) {
	for _, level := range [...]logiface.Level{
		logiface.LevelDisabled,
		logiface.LevelEmergency,
		logiface.LevelError,
		logiface.LevelWarning,
		logiface.LevelInformational,
		logiface.LevelDebug,
		logiface.LevelTrace,
	} {
		got, err := ParseLevel(level.String())
		require.NoError(t, err)
		assert.Equal(t, level, got)
	}

	_, err := ParseLevel(`verbose`)
	assert.Error(t, err)
}
