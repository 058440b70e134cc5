// Package ratelimit provides fixed-window request counters keyed by caller
// identifier. The default store is process-local; a Redis-backed store with
// the same contract exists for multi-instance deployments.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of counting one request against a caller's window.
type Decision struct {
	Allowed    bool
	Remaining  int           // requests left in the current window
	RetryAfter time.Duration // time until the window resets; set on denial
}

// Store counts requests per caller key. Allow records the request and reports
// whether it fits under the ceiling. Implementations must be safe for
// concurrent use and must never let a counter exceed the ceiling without
// producing a denial.
type Store interface {
	Allow(ctx context.Context, key string) (Decision, error)
}
