// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package await

import (
	"errors"

	"github.com/joeycumines/logiface"
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger          *logiface.Logger[logiface.Event]
	ingressCapacity int
}

// Option configures a [Loop] instance.
type Option interface {
	applyLoop(*loopOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (x *optionImpl) applyLoop(opts *loopOptions) error {
	return x.applyLoopFunc(opts)
}

// WithLogger configures structured logging for the loop. The logger may be
// nil (the default), in which case logging is disabled; logiface loggers
// are nil-safe, so no guard sites are necessary.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithIngressCapacity sets the buffer size of the cross-goroutine ingress
// queue used by [Loop.Submit]. Defaults to 1024, if unset. Values < 1 are
// rejected.
func WithIngressCapacity(n int) Option {
	return &optionImpl{func(opts *loopOptions) error {
		if n < 1 {
			return errors.New(`await: ingress capacity must be at least 1`)
		}
		opts.ingressCapacity = n
		return nil
	}}
}

func resolveLoopOptions(opts []Option) (*loopOptions, error) {
	o := &loopOptions{
		ingressCapacity: 1024,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}
