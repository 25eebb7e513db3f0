// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package echoserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/joeycumines/go-sockmux"
	"github.com/joeycumines/logiface"
	"golang.org/x/sys/unix"
)

var (
	// ErrIdle is the failure cause of connections closed for inactivity.
	ErrIdle = errors.New("echoserver: connection idle")

	// ErrSlowConsumer is the failure cause of connections closed because
	// the peer stopped reading.
	ErrSlowConsumer = errors.New("echoserver: peer not reading")
)

// Server echoes everything it receives back to the sender.
type Server struct {
	mux      *sockmux.Multiplexer
	logger   *logiface.Logger[logiface.Event]
	addr     net.Addr
	failure  error
	buf      []byte
	cfg      Config
	conns    atomic.Int64
	accepted atomic.Uint64
}

// New validates cfg and starts listening. The returned Server does nothing
// until Serve is called.
func New(cfg Config, logger *logiface.Logger[logiface.Event]) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("echoserver: invalid config: %w", err)
	}

	mux, err := sockmux.New(
		sockmux.WithLogger(logger),
		sockmux.WithMaxEvents(cfg.MaxEvents),
	)
	if err != nil {
		return nil, err
	}

	s := &Server{
		mux:    mux,
		logger: logger,
		buf:    make([]byte, 32*1024),
		cfg:    cfg,
	}

	if err := s.listen(); err != nil {
		return nil, errors.Join(err, mux.Shutdown())
	}

	return s, nil
}

func (s *Server) listen() error {
	ln, err := net.Listen(`tcp`, s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("echoserver: listen: %w", err)
	}
	defer ln.Close()

	fd, err := sockmux.DupFD(ln.(*net.TCPListener))
	if err != nil {
		return err
	}

	if _, err := s.mux.Register(fd, sockmux.HandlerFuncs{
		Read: s.accept,
		Fail: s.listenerFailed,
	}); err != nil {
		_ = unix.Close(fd)
		return err
	}

	s.addr = ln.Addr()
	return nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Connections returns the number of open connections. Safe for concurrent
// use.
func (s *Server) Connections() int {
	return int(s.conns.Load())
}

// Accepted returns the number of connections accepted so far. Safe for
// concurrent use.
func (s *Server) Accepted() uint64 {
	return s.accepted.Load()
}

// Stats returns the multiplexer statistics. Safe for concurrent use.
func (s *Server) Stats() sockmux.Stats {
	return s.mux.Stats()
}

// Serve runs the server until ctx is done (returning nil), or the listening
// socket fails. Every connection is closed before it returns. Serve may only
// be called once.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info().
		Str(`addr`, s.addr.String()).
		Log(`serving`)

	err := s.mux.Run(ctx)

	if s.failure != nil {
		// already shut down, by listenerFailed
		return s.failure
	}

	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		err = nil
	}

	return errors.Join(err, s.mux.Shutdown())
}

func (s *Server) accept(h *sockmux.Handle) {
	for {
		fd, _, err := unix.Accept4(h.FD(), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch err {
		case nil:
			s.open(fd)
		case unix.EAGAIN:
			return
		case unix.EINTR, unix.ECONNABORTED:
			continue
		default:
			h.Fail(fmt.Errorf("echoserver: accept: %w", err))
			return
		}
	}
}

func (s *Server) listenerFailed(h *sockmux.Handle, err error) {
	if errors.Is(err, sockmux.ErrShutdown) {
		return
	}
	s.logger.Err().
		Err(err).
		Log(`listener failed`)
	s.failure = err
	if shutdownErr := s.mux.Shutdown(); shutdownErr != nil {
		s.failure = errors.Join(err, shutdownErr)
	}
}

func (s *Server) open(fd int) {
	c := &conn{
		server: s,
		id:     uuid.Must(uuid.NewV7()).String(),
	}

	h, err := s.mux.Register(fd, c)
	if err != nil {
		_ = unix.Close(fd)
		s.logger.Warning().
			Err(err).
			Log(`register connection`)
		return
	}
	c.h = h

	s.conns.Add(1)
	s.accepted.Add(1)

	s.logger.Debug().
		Str(`conn`, c.id).
		Int(`fd`, fd).
		Log(`accepted`)

	c.touch()
}

// conn is a single accepted connection.
type conn struct {
	server *Server
	h      *sockmux.Handle
	id     string
}

var _ sockmux.Handler = (*conn)(nil)

func (c *conn) OnRead(h *sockmux.Handle) {
	buf := c.server.buf
	for {
		n, err := h.Read(buf)
		if err != nil {
			break
		}
		h.Send(buf[:n], false)
		if h.Pending() > c.server.cfg.MaxPending {
			h.Fail(ErrSlowConsumer)
			return
		}
	}
	c.touch()
}

func (c *conn) OnFail(h *sockmux.Handle, err error) {
	c.server.conns.Add(-1)

	b := c.server.logger.Debug()
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, sockmux.ErrShutdown):
	default:
		b = b.Err(err)
	}
	b.Str(`conn`, c.id).
		Log(`closed`)
}

// touch restarts the idle timer.
func (c *conn) touch() {
	idle := c.server.cfg.IdleTimeout
	if idle <= 0 || c.h.Failed() {
		return
	}
	mux := c.server.mux
	mux.CancelTimers(c.h)
	if err := mux.ScheduleOneshot(c.h, idle, func() { c.h.Fail(ErrIdle) }); err != nil {
		c.h.Fail(err)
	}
}
