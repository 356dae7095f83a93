// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultReadyTimeout bounds how long callers wait for a container to report running.
	DefaultReadyTimeout = 3 * time.Second

	// DefaultReadyInterval is the pause between readiness checks.
	DefaultReadyInterval = 100 * time.Millisecond
)

// ErrNotReady is returned by WaitRunning when the deadline passes first.
var ErrNotReady = errors.New("container did not reach running state")

// PollUntil calls check every interval until it reports done, returns an
// error, or timeout elapses. The first check happens immediately. On
// timeout the last check error (if any) is wrapped with context.DeadlineExceeded.
func PollUntil(ctx context.Context, timeout, interval time.Duration, check func() (done bool, err error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		done, err := check()
		if done {
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %w)", ctx.Err(), lastErr)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// WaitRunning polls InspectState until name reports running. Inspect errors
// are retried because the container may not be visible yet.
func WaitRunning(ctx context.Context, engine Engine, name string, timeout, interval time.Duration) error {
	err := PollUntil(ctx, timeout, interval, func() (bool, error) {
		state, err := engine.InspectState(ctx, name)
		if err != nil {
			return false, err
		}
		return state.Running, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %s after %s: %w", ErrNotReady, name, timeout, err)
	}
	return nil
}
