// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package retry provides a bounded, linear-backoff retry executor.

It is shared by the chapter ingestion pipeline (content-store uploads) and by
the reader client (chapter fetches).

Policy:

  - Linear: the wait after the n-th failed attempt is BaseDelay * n.
  - Bounded: at most MaxRetries retries follow the first attempt.
  - Transparent: after exhaustion the last error is returned unchanged.

With the defaults (3 retries, 1s) the waits are 1s, 2s, 3s and the worst-case
total wait is BaseDelay * MaxRetries * (MaxRetries + 1) / 2.
*/
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// # Policy

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3

	// DefaultBaseDelay is the wait after the first failed attempt.
	DefaultBaseDelay = 1 * time.Second
)

// Policy configures a single [Do] call.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration

	// OnRetry, when set, is called before each wait with the attempt number
	// that just failed (1-based), its error and the upcoming delay.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns the documented default policy (3 retries, 1s base).
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
	}
}

// TotalWait returns the worst-case cumulative wait of the policy.
func (policy Policy) TotalWait() time.Duration {
	retries := time.Duration(max(policy.MaxRetries, 0))
	return policy.BaseDelay * retries * (retries + 1) / 2
}

// # Executor

// Do runs operation until it succeeds, the retry budget is exhausted, or the
// context is cancelled.
//
// The error returned after exhaustion is the one produced by the last attempt,
// without wrapping. A cancelled context returns the context error.
func Do(ctx context.Context, policy Policy, operation func(context.Context) error) error {
	schedule := backoff.WithMaxRetries(
		backoff.WithContext(&linearBackOff{base: policy.BaseDelay}, ctx),
		uint64(max(policy.MaxRetries, 0)),
	)

	attempt := 0
	return backoff.RetryNotify(
		func() error {
			attempt++
			return operation(ctx)
		},
		schedule,
		func(err error, delay time.Duration) {
			if policy.OnRetry != nil {
				policy.OnRetry(attempt, err, delay)
			}
		},
	)
}

// Value is the value-returning form of [Do].
func Value[T any](ctx context.Context, policy Policy, operation func(context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, policy, func(ctx context.Context) error {
		value, err := operation(ctx)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	return result, err
}

// Permanent marks err as non-retryable; [Do] returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// # Linear Schedule

// linearBackOff implements [backoff.BackOff] with waits base, 2*base, 3*base...
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func (schedule *linearBackOff) NextBackOff() time.Duration {
	schedule.attempt++
	return schedule.base * time.Duration(schedule.attempt)
}

func (schedule *linearBackOff) Reset() {
	schedule.attempt = 0
}
