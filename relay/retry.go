// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nostrforge/nostrforge/lib/clock"
)

// RetryConfig parameterizes the shared retry combinator.
type RetryConfig struct {
	// Attempts is the total number of tries. Default 3.
	Attempts int
	// BaseDelay is the first backoff delay; each subsequent delay
	// doubles. Default 1 second.
	BaseDelay time.Duration
	// Clock supplies the backoff timer. If nil, clock.Real() is used.
	Clock clock.Clock
	// Logger records retried failures. If nil, slog.Default() is used.
	Logger *slog.Logger
}

func (c RetryConfig) normalized() RetryConfig {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.BaseDelay < 0 {
		c.BaseDelay = 0
	} else if c.BaseDelay == 0 {
		c.BaseDelay = time.Second
	}
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// transientError marks an error as worth retrying. Produced by
// Transient, detected by IsTransient.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err to mark it as transient: a failure that a
// bounded retry may resolve (relay unreachable, connection reset,
// subprocess hiccup). A nil err returns nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err carries the transient marker
// anywhere in its chain.
func IsTransient(err error) bool {
	var marker *transientError
	return errors.As(err, &marker)
}

// Retry runs fn with bounded attempts and exponential backoff. Only
// errors marked Transient are retried; permanent errors (validation,
// authorization, cryptographic rejection) return immediately. The
// context bounds the total retry time — cancellation stops the loop
// between attempts.
//
// This is the one retry loop in the codebase: publish, fetch, and push
// paths all parameterize it rather than hand-rolling their own.
func Retry(ctx context.Context, config RetryConfig, operation string, fn func(context.Context) error) error {
	config = config.normalized()

	var lastError error
	for attempt := 0; attempt < config.Attempts; attempt++ {
		if attempt > 0 {
			backoff := config.BaseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-config.Clock.After(backoff):
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastError = err

		if !IsTransient(err) {
			return err
		}
		config.Logger.Warn("transient failure, retrying",
			"operation", operation,
			"attempt", attempt+1,
			"max_attempts", config.Attempts,
			"error", err,
		)
	}
	return lastError
}
