package alist

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/sly67/alist-mirror/internal/metrics"
)

// Limiter throttles outbound API calls to a steady requests-per-second
// quota. One instance is shared by every caller in the process; it is safe
// for concurrent use. A nil *Limiter never blocks, which is what tests use.
type Limiter struct {
	lim         *rate.Limiter
	waitTimeout time.Duration
}

// NewLimiter builds a token-bucket limiter for rps requests per second.
// waitTimeout bounds how long Acquire may block; it is a safety net distinct
// from the steady-state rate so a misconfigured limiter cannot stall a run
// indefinitely.
func NewLimiter(rps float64, waitTimeout time.Duration) *Limiter {
	return &Limiter{
		lim:         rate.NewLimiter(rate.Limit(rps), 1),
		waitTimeout: waitTimeout,
	}
}

// NewUnlimited returns a limiter that always admits immediately.
func NewUnlimited() *Limiter {
	return &Limiter{lim: rate.NewLimiter(rate.Inf, 1)}
}

// Acquire blocks until a request token is available, the context is
// canceled, or the bounded wait expires (ErrRateLimitTimeout).
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil || l.lim == nil {
		return nil
	}

	waitCtx := ctx
	if l.waitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.waitTimeout)
		defer cancel()
	}

	if err := l.lim.Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metrics.ObserveRateLimitTimeout()
		return ErrRateLimitTimeout
	}
	return nil
}
