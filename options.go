// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package sockmux

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// muxOptions holds configuration options for Multiplexer creation.
type muxOptions struct {
	logger          *logiface.Logger[logiface.Event]
	failureLogRates map[time.Duration]int
	poller          poller
	now             func() time.Time
	maxEvents       int
}

// DefaultFailureLogRates limits socket failure warnings to 10 per second and
// 100 per minute, per failure category.
var DefaultFailureLogRates = map[time.Duration]int{
	time.Second: 10,
	time.Minute: 100,
}

// Option configures a Multiplexer instance.
type Option interface {
	applyMux(*muxOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyMuxFunc func(*muxOptions) error
}

func (x *optionImpl) applyMux(opts *muxOptions) error {
	return x.applyMuxFunc(opts)
}

// WithLogger sets the structured logger. A nil logger (the default) disables
// logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *muxOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMaxEvents sets the maximum number of readiness events returned by a
// single poll. Defaults to 256.
func WithMaxEvents(n int) Option {
	return &optionImpl{func(opts *muxOptions) error {
		if n <= 0 {
			return fmt.Errorf("%w: max events must be positive, got %d", ErrInvalidArgument, n)
		}
		opts.maxEvents = n
		return nil
	}}
}

// WithFailureLogRates configures the rate limits applied to socket failure
// warnings, per failure category, in the format accepted by
// [catrate.NewLimiter]. An empty map disables rate limiting.
func WithFailureLogRates(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *muxOptions) (err error) {
		if len(rates) != 0 {
			// catrate panics on invalid rates
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %v", ErrInvalidArgument, r)
				}
			}()
			_ = catrate.NewLimiter(rates)
		}
		opts.failureLogRates = rates
		return nil
	}}
}

// withPoller replaces the OS poller, for tests.
func withPoller(p poller) Option {
	return &optionImpl{func(opts *muxOptions) error {
		opts.poller = p
		return nil
	}}
}

// withNow replaces the clock used for timer deadlines, for tests.
func withNow(now func() time.Time) Option {
	return &optionImpl{func(opts *muxOptions) error {
		opts.now = now
		return nil
	}}
}

// resolveMuxOptions applies Option instances to muxOptions.
func resolveMuxOptions(opts []Option) (*muxOptions, error) {
	cfg := &muxOptions{
		failureLogRates: DefaultFailureLogRates,
		now:             time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyMux(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
