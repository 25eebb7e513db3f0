// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package echoserver

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mutate func(cfg *Config)) *Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Listen = `127.0.0.1:0`
	if mutate != nil {
		mutate(&cfg)
	}

	s, err := New(cfg, stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(io.Discard))).Logger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error(`serve did not return`)
		}
	})

	return s
}

func dial(t *testing.T, s *Server) net.Conn {
	t.Helper()
	c, err := net.Dial(`tcp`, s.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.SetDeadline(time.Now().Add(10*time.Second)))
	return c
}

func TestServer_echo(t *testing.T) {
	s := newTestServer(t, nil)

	c1 := dial(t, s)
	c2 := dial(t, s)

	for _, v := range [...]struct {
		c   net.Conn
		msg string
	}{
		{c1, `hello`},
		{c2, `world`},
		{c1, `again`},
	} {
		_, err := v.c.Write([]byte(v.msg))
		require.NoError(t, err)
		reply := make([]byte, len(v.msg))
		_, err = io.ReadFull(v.c, reply)
		require.NoError(t, err)
		assert.Equal(t, v.msg, string(reply))
	}

	assert.Equal(t, 2, s.Connections())
	assert.EqualValues(t, 2, s.Accepted())

	require.NoError(t, c2.Close())
	require.Eventually(t, func() bool { return s.Connections() == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 15, s.Stats().BytesWritten)
}

func TestServer_largePayload(t *testing.T) {
	s := newTestServer(t, nil)
	c := dial(t, s)

	payload := bytes.Repeat([]byte(`sockmux!`), 64*1024)
	go func() { _, _ = c.Write(payload) }()

	reply := make([]byte, len(payload))
	_, err := io.ReadFull(c, reply)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, reply))
}

func TestServer_idleTimeout(t *testing.T) {
	s := newTestServer(t, func(cfg *Config) { cfg.IdleTimeout = 50 * time.Millisecond })
	c := dial(t, s)

	_, err := c.Write([]byte(`ping`))
	require.NoError(t, err)

	start := time.Now()
	got, err := io.ReadAll(c)
	require.NoError(t, err)
	assert.Equal(t, `ping`, string(got))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	require.Eventually(t, func() bool { return s.Connections() == 0 }, 5*time.Second, 5*time.Millisecond)
}

func TestServer_slowConsumer(t *testing.T) {
	s := newTestServer(t, func(cfg *Config) {
		cfg.MaxPending = 4096
		cfg.IdleTimeout = 0
	})
	c := dial(t, s)

	// never read, so the echo backs up
	chunk := make([]byte, 64*1024)
	go func() {
		for {
			if _, err := c.Write(chunk); err != nil {
				return
			}
		}
	}()

	require.Eventually(t, func() bool {
		return s.Accepted() == 1 && s.Connections() == 0
	}, 10*time.Second, 10*time.Millisecond)
}

func TestServer_Serve_cancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Listen = `127.0.0.1:0`
	s, err := New(cfg, nil)
	require.NoError(t, err)

	c, err := net.Dial(`tcp`, s.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Serve(ctx))
	assert.Zero(t, s.Connections())

	// shut down, so the peer sees end of stream
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = c.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestNew_invalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEvents = 0
	_, err := New(cfg, nil)
	assert.ErrorContains(t, err, `max_events`)

	cfg = DefaultConfig()
	cfg.Listen = `not an address`
	_, err = New(cfg, nil)
	assert.ErrorContains(t, err, `listen`)
}
