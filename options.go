// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import "os"

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	pollBatchSize     int
	metricsEnabled    bool
	signalsConfigured bool
	stopSignals       []os.Signal
	reloadSignals     []os.Signal
}

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithPollBatchSize bounds how many ready Callbacks are performed per
// iteration before yielding to a poll check. The default (1) performs
// exactly one Callback per tick.
func WithPollBatchSize(n int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if n <= 0 {
			return &OperationError{Op: "option.WithPollBatchSize", Errno: 0}
		}
		opts.pollBatchSize = n
		return nil
	}}
}

// WithMetrics enables runtime counter collection on the Loop, accessible
// via Loop.Metrics().
func WithMetrics(enabled bool) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// WithSignals overrides the OS signals that drain the Stop and Reload
// interest queues (SIGINT and SIGTERM for stop, SIGHUP for reload by
// default on Unix; see signals.go).
// Passing nil for either slice disables that lifecycle wiring entirely.
func WithSignals(stop, reload []os.Signal) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.signalsConfigured = true
		opts.stopSignals = stop
		opts.reloadSignals = reload
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		pollBatchSize: 1, // one Callback performed per tick
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
