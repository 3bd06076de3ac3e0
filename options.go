// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import "time"

// selectorOptions holds configuration resolved from SelectorOption values
// passed to New.
type selectorOptions struct {
	logger          Logger
	invariantRates  map[time.Duration]int
	eventBufferSize int
}

// --- Selector Options ---

// SelectorOption configures a Selector at construction time.
type SelectorOption interface {
	applySelector(*selectorOptions) error
}

// selectorOptionImpl implements SelectorOption.
type selectorOptionImpl struct {
	applySelectorFunc func(*selectorOptions) error
}

func (o *selectorOptionImpl) applySelector(opts *selectorOptions) error {
	return o.applySelectorFunc(opts)
}

// WithLogger sets the Logger used for this Selector's diagnostics. If not
// given, the package-level global logger (set via SetStructuredLogger) is
// used.
func WithLogger(logger Logger) SelectorOption {
	return &selectorOptionImpl{func(opts *selectorOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithInvariantRateLimit overrides the sliding-window rates used to
// throttle internal-invariant-violation logging. See
// defaultInvariantRates for the default.
func WithInvariantRateLimit(rates map[time.Duration]int) SelectorOption {
	return &selectorOptionImpl{func(opts *selectorOptions) error {
		opts.invariantRates = rates
		return nil
	}}
}

// WithEventBufferSize sets the number of OS events a single Select call
// may dequeue in one poll syscall. Larger buffers amortize syscall
// overhead under load at the cost of per-shard memory.
func WithEventBufferSize(n int) SelectorOption {
	return &selectorOptionImpl{func(opts *selectorOptions) error {
		opts.eventBufferSize = n
		return nil
	}}
}

// resolveSelectorOptions applies SelectorOption instances to selectorOptions.
func resolveSelectorOptions(opts []SelectorOption) (*selectorOptions, error) {
	cfg := &selectorOptions{
		eventBufferSize: 256,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applySelector(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
