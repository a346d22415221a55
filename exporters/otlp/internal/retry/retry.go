// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package retry provides the exponential-backoff request decorator the
// OTLP clients use when retries are enabled.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Throttle is implemented by errors carrying a server-imposed retry
// delay, such as a Retry-After header or gRPC RetryInfo detail.
type Throttle interface {
	Delay() time.Duration
}

// EvaluateFunc reports whether an export error is retryable and, when
// the server imposed a throttle delay, how long to wait.
type EvaluateFunc func(error) (retryable bool, throttle time.Duration)

// RequestFunc wraps a request with retry logic.
type RequestFunc func(context.Context, func(context.Context) error) error

// Config models the retry policy of one client.
type Config struct {
	// Enabled turns retrying on. When false the request runs exactly
	// once.
	Enabled bool
	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration
	// MaxInterval caps the delay between retries.
	MaxInterval time.Duration
	// MaxElapsedTime caps the total time spent on one request including
	// retries. Zero means retry until ctx expires.
	MaxElapsedTime time.Duration
}

// RequestFunc returns a RequestFunc applying c's policy to requests,
// consulting evaluate to distinguish retryable from permanent failures.
func (c Config) RequestFunc(evaluate EvaluateFunc) RequestFunc {
	if !c.Enabled {
		return func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		}
	}

	return func(ctx context.Context, fn func(context.Context) error) error {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = c.InitialInterval
		b.MaxInterval = c.MaxInterval
		b.MaxElapsedTime = c.MaxElapsedTime
		b.Reset()

		for {
			err := fn(ctx)
			if err == nil {
				return nil
			}

			retryable, throttle := evaluate(err)
			if !retryable {
				return err
			}

			delay := b.NextBackOff()
			if delay == backoff.Stop {
				return fmt.Errorf("max retry time elapsed: %w", err)
			}
			if throttle > delay {
				delay = throttle
			}

			if waitErr := wait(ctx, delay); waitErr != nil {
				return errors.Join(waitErr, err)
			}
		}
	}
}

func wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	return nil
}
