// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// retryDelays is the fixed backoff schedule for storage-transient errors
// (spec.md §4.4: "retry transient storage errors up to 3 times with
// short backoff before surfacing a failure").
var retryDelays = []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond}

// WithRetry runs fn up to len(retryDelays)+1 times, sleeping the schedule
// between attempts, as long as the error it returns is transient. A
// non-transient error (corruption, constraint violation) returns
// immediately on first occurrence.
func WithRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !isTransient(err) || attempt >= len(retryDelays) {
			return err
		}
		select {
		case <-time.After(retryDelays[attempt]):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// isTransient reports whether err looks like a contention or lock error
// that a retry could plausibly resolve, as opposed to a corrupt database
// or a logic error that retrying cannot fix.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"locked", "busy", "timeout"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
