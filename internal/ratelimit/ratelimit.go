// Package ratelimit provides per-key fixed-window request limiting behind
// a storage-agnostic interface. The in-memory store suits a single
// process; the effective limit multiplies with every instance unless the
// Redis store is used instead.
package ratelimit

import (
	"context"
	"time"
)

// Result reports one Check decision. ResetAt is stable within a window so
// callers can surface it as a Retry-After hint.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window resets, never
// below 1 for a denied check.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Limiter grants at most limit checks per key within any window. Keys are
// typically "operation:client-ip".
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}
